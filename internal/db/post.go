package db

import (
	"time"

	"gorm.io/gorm"
)

// Scheduling statuses a post moves through. The scheduled-publish sweep
// only ever acts on StatusScheduled rows.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
)

// Post categories accepted by the lifecycle operations.
var PostCategories = []string{"tech", "life", "books", "community", "announcements"}

// Post is a publishable content item with a scheduling state machine.
//
// The status fields obey a fixed truth table: published implies
// IsPublished=true and no ScheduledPublishAt; scheduled implies
// IsPublished=false and a future ScheduledPublishAt; draft implies
// IsPublished=false and ScheduledPublishAt=nil.
type Post struct {
	gorm.Model
	Title              string
	Slug               string `gorm:"uniqueIndex;size:255"`
	Body               string `gorm:"type:text"`
	CoverURL           string
	AudioURL           string
	Category           string `gorm:"index"`
	Keywords           string
	IsPublished        bool   `gorm:"index"`
	SchedulingStatus   string `gorm:"index;default:draft"`
	ScheduledPublishAt *time.Time
	IsEmailSent        bool
	EmailSentAt        *time.Time
	ViewCount          int64
	LikeCount          int64
	AuthorID           uint
	Author             Author
}

// Author is the profile entity posts point at.
type Author struct {
	gorm.Model
	DisplayName string
	Bio         string `gorm:"type:text"`
	AvatarURL   string
}
