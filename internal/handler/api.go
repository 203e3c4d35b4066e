package handler

import (
	"github.com/letterpress/internal/service"
	"github.com/letterpress/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers. Services are built
// once at startup and injected here; handlers never reach for globals.
type API struct {
	db          *gorm.DB
	posts       *service.PostService
	scheduler   *service.SchedulerService
	newsletter  *service.NewsletterService
	tracking    *service.TrackingService
	subscribers *service.SubscriberService
	analytics   *service.AnalyticsService
	media       *storage.Store
	log         *zap.Logger
}

// Deps lists everything NewAPI needs; media may be nil when object
// storage is not configured.
type Deps struct {
	DB          *gorm.DB
	Posts       *service.PostService
	Scheduler   *service.SchedulerService
	Newsletter  *service.NewsletterService
	Tracking    *service.TrackingService
	Subscribers *service.SubscriberService
	Analytics   *service.AnalyticsService
	Media       *storage.Store
	Log         *zap.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(d Deps) *API {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		db:          d.DB,
		posts:       d.Posts,
		scheduler:   d.Scheduler,
		newsletter:  d.Newsletter,
		tracking:    d.Tracking,
		subscribers: d.Subscribers,
		analytics:   d.Analytics,
		media:       d.Media,
		log:         log,
	}
}
