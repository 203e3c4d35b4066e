package service

import (
	"time"

	"github.com/letterpress/internal/db"
	"github.com/letterpress/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TrackingService turns pixel loads and link clicks into delivery-record
// mutations. Both writes are set-if-null, so duplicate requests (mail
// clients pre-fetch pixels) keep the first engagement time, and the two
// columns are independent because a client that blocks images can still
// click through.
type TrackingService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewTrackingService creates a TrackingService instance.
func NewTrackingService(gdb *gorm.DB, log *zap.Logger) *TrackingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrackingService{db: gdb, log: log, now: time.Now}
}

// WithClock overrides the time source, used by tests.
func (s *TrackingService) WithClock(now func() time.Time) *TrackingService {
	if now != nil {
		s.now = now
	}
	return s
}

// RecordOpen stamps opened_at for the delivery matching token, if it is
// still unset. Unknown tokens and repeats are not errors; tracking is
// best-effort and the caller always serves the pixel.
func (s *TrackingService) RecordOpen(token string) {
	s.stampIfNull(token, "opened_at", metrics.EmailOpens)
}

// RecordClick stamps clicked_at for the delivery matching token, if it
// is still unset.
func (s *TrackingService) RecordClick(token string) {
	s.stampIfNull(token, "clicked_at", metrics.EmailClicks)
}

func (s *TrackingService) stampIfNull(token, column string, counter interface{ Inc() }) {
	if token == "" {
		return
	}
	res := s.db.Model(&db.EmailDelivery{}).
		Where("tracking_token = ? AND "+column+" IS NULL", token).
		UpdateColumn(column, s.now())
	if res.Error != nil {
		s.log.Warn("record engagement",
			zap.String("column", column),
			zap.Error(res.Error))
		return
	}
	if res.RowsAffected == 1 {
		counter.Inc()
	}
}
