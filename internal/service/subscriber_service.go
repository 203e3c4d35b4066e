package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/letterpress/internal/db"
	"gorm.io/gorm"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// SubscriberService keeps the one-row-per-email subscriber registry. The
// unsubscribe token is issued once on first signup and survives
// unsubscribe/resubscribe cycles, so old emails keep working links.
type SubscriberService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubscriberService creates a SubscriberService instance.
func NewSubscriberService(gdb *gorm.DB) *SubscriberService {
	return &SubscriberService{db: gdb, now: time.Now}
}

// WithClock overrides the time source, used by tests.
func (s *SubscriberService) WithClock(now func() time.Time) *SubscriberService {
	if now != nil {
		s.now = now
	}
	return s
}

// Subscribe registers email, or reactivates the existing row if the
// address signed up before. Categories are optional interest tags.
func (s *SubscriberService) Subscribe(email string, categories []string) (*db.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrEmailRequired
	}

	var sub db.Subscriber
	err := s.db.Where("email = ?", email).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = db.Subscriber{
			Email:            email,
			IsSubscribed:     true,
			UnsubscribeToken: uuid.NewString(),
			Categories:       strings.Join(categories, ","),
			SubscribedAt:     s.now(),
		}
		if err := s.db.Create(&sub).Error; err != nil {
			return nil, err
		}
		return &sub, nil
	case err != nil:
		return nil, err
	}

	sub.IsSubscribed = true
	sub.UnsubscribedAt = nil
	sub.SubscribedAt = s.now()
	if len(categories) > 0 {
		sub.Categories = strings.Join(categories, ",")
	}
	if err := s.db.Save(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// UnsubscribeByToken flips the subscription flag for the subscriber
// holding token. The token is the sole credential; no login involved.
// Repeating the request is a no-op.
func (s *SubscriberService) UnsubscribeByToken(token string) (*db.Subscriber, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSubscriberNotFound
	}

	var sub db.Subscriber
	if err := s.db.Where("unsubscribe_token = ?", token).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}

	if !sub.IsSubscribed {
		return &sub, nil
	}

	now := s.now()
	sub.IsSubscribed = false
	sub.UnsubscribedAt = &now
	if err := s.db.Save(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Get fetches a subscriber by id.
func (s *SubscriberService) Get(id uint) (*db.Subscriber, error) {
	var sub db.Subscriber
	if err := s.db.First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ListSubscribed returns all active subscribers ordered by signup time.
func (s *SubscriberService) ListSubscribed() ([]db.Subscriber, error) {
	var subs []db.Subscriber
	if err := s.db.Where("is_subscribed = ?", true).
		Order("subscribed_at asc").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// Counts returns total and active subscriber tallies for the dashboard.
func (s *SubscriberService) Counts() (total, active int64, err error) {
	if err := s.db.Model(&db.Subscriber{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.Model(&db.Subscriber{}).
		Where("is_subscribed = ?", true).
		Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}
