package db

import (
	"time"

	"gorm.io/gorm"
)

// EmailDelivery records one newsletter send to one subscriber. The log is
// append-only: a resend writes a fresh row with its own tracking token,
// and OpenedAt/ClickedAt are set at most once (first engagement wins).
type EmailDelivery struct {
	gorm.Model
	SubscriberID  uint `gorm:"index"`
	Subscriber    Subscriber
	PostID        uint `gorm:"index"`
	Post          Post
	TrackingToken string `gorm:"uniqueIndex;size:64"`
	SentAt        time.Time
	OpenedAt      *time.Time
	ClickedAt     *time.Time
}
