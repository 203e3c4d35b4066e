package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config collects everything the server reads from the environment.
//
// The mail credentials are deliberately not required: a deployment that
// never sends newsletters can run without them, and the mail package
// reports the missing configuration when a send is attempted.
type Config struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR"`
	Port         string `envconfig:"PORT" default:"8080"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"letterpress.db"`
	GinMode      string `envconfig:"GIN_MODE" default:"release"`
	SiteBaseURL  string `envconfig:"SITE_BASE_URL" default:"http://localhost:8080"`
	AdminAPIKey  string `envconfig:"ADMIN_API_KEY"`

	// Scheduled-publish sweep cadence (cron spec, minute resolution).
	PromoteSchedule string `envconfig:"PROMOTE_SCHEDULE" default:"* * * * *"`

	// Gmail XOAUTH2 SMTP credentials.
	MailClientID     string `envconfig:"MAIL_CLIENT_ID"`
	MailClientSecret string `envconfig:"MAIL_CLIENT_SECRET"`
	MailRefreshToken string `envconfig:"MAIL_REFRESH_TOKEN"`
	MailAccount      string `envconfig:"MAIL_ACCOUNT"`
	MailFromName     string `envconfig:"MAIL_FROM_NAME" default:"Letterpress"`
	SMTPHost         string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort         int    `envconfig:"SMTP_PORT" default:"587"`

	// Object storage for cover images and audio.
	S3Key      string `envconfig:"S3_KEY"`
	S3Secret   string `envconfig:"S3_SECRET"`
	S3Endpoint string `envconfig:"S3_ENDPOINT"`
	S3Region   string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket   string `envconfig:"S3_BUCKET"`
}

// Load reads the configuration from the environment, honoring a local
// .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if c.ListenAddr == "" {
		c.ListenAddr = fmt.Sprintf(":%s", c.Port)
	}
	return &c, nil
}

// ObjectStorageEnabled reports whether the S3 credentials are complete.
func (c *Config) ObjectStorageEnabled() bool {
	return c.S3Key != "" && c.S3Secret != "" && c.S3Endpoint != "" && c.S3Bucket != ""
}
