package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/letterpress/internal/config"
	"github.com/letterpress/internal/db"
	"github.com/letterpress/internal/handler"
	"github.com/letterpress/internal/mail"
	"github.com/letterpress/internal/router"
	"github.com/letterpress/internal/service"
	"github.com/letterpress/internal/storage"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	gin.SetMode(cfg.GinMode)

	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		ClientID:     cfg.MailClientID,
		ClientSecret: cfg.MailClientSecret,
		RefreshToken: cfg.MailRefreshToken,
		Account:      cfg.MailAccount,
		FromName:     cfg.MailFromName,
		Host:         cfg.SMTPHost,
		Port:         cfg.SMTPPort,
	})

	var media *storage.Store
	if cfg.ObjectStorageEnabled() {
		media, err = storage.New(context.Background(), storage.Options{
			Key:      cfg.S3Key,
			Secret:   cfg.S3Secret,
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			Bucket:   cfg.S3Bucket,
		})
		if err != nil {
			logger.Fatal("object storage client", zap.Error(err))
		}
	} else {
		logger.Warn("object storage not configured, uploads disabled")
	}

	scheduler := service.NewSchedulerService(gdb, logger)
	api := handler.NewAPI(handler.Deps{
		DB:          gdb,
		Posts:       service.NewPostService(gdb),
		Scheduler:   scheduler,
		Newsletter:  service.NewNewsletterService(gdb, sender, cfg.SiteBaseURL, logger),
		Tracking:    service.NewTrackingService(gdb, logger),
		Subscribers: service.NewSubscriberService(gdb),
		Analytics:   service.NewAnalyticsService(gdb),
		Media:       media,
		Log:         logger,
	})

	// The scheduled-publish sweep runs server-side on a cron cadence so
	// posts go live even when no client is polling the admin UI.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.PromoteSchedule, func() {
		promoted, err := scheduler.PromoteDue(time.Now())
		if err != nil {
			logger.Error("scheduled-publish sweep", zap.Error(err))
			return
		}
		if promoted > 0 {
			logger.Info("scheduled-publish sweep", zap.Int("promoted", promoted))
		}
	}); err != nil {
		logger.Fatal("register sweep job", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router.Setup(api, cfg.AdminAPIKey),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
