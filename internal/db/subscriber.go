package db

import (
	"time"

	"gorm.io/gorm"
)

// Subscriber is one newsletter recipient. There is exactly one row per
// email; unsubscribing flips IsSubscribed instead of deleting the row, so
// the UnsubscribeToken stays valid across resubscriptions.
type Subscriber struct {
	gorm.Model
	Email            string `gorm:"uniqueIndex;size:255"`
	IsSubscribed     bool   `gorm:"index"`
	UnsubscribeToken string `gorm:"uniqueIndex;size:64"`
	Categories       string
	SubscribedAt     time.Time
	UnsubscribedAt   *time.Time
}
