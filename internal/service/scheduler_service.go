package service

import (
	"time"

	"github.com/letterpress/internal/db"
	"github.com/letterpress/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchedulerService promotes posts whose scheduled time has elapsed. It is
// driven by a periodic job in cmd/server rather than by incoming traffic,
// so posts go live even when nobody is looking.
type SchedulerService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSchedulerService creates a SchedulerService instance.
func NewSchedulerService(gdb *gorm.DB, log *zap.Logger) *SchedulerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SchedulerService{db: gdb, log: log}
}

// ListScheduled partitions all scheduled posts into upcoming and overdue
// relative to now. The overdue set is what the admin dashboard surfaces
// as needing attention between sweeps.
func (s *SchedulerService) ListScheduled(now time.Time) (upcoming, overdue []db.Post, err error) {
	var posts []db.Post
	if err := s.db.Where("scheduling_status = ?", db.StatusScheduled).
		Order("scheduled_publish_at asc").
		Find(&posts).Error; err != nil {
		return nil, nil, err
	}

	for _, p := range posts {
		if p.ScheduledPublishAt != nil && !p.ScheduledPublishAt.After(now) {
			overdue = append(overdue, p)
		} else {
			upcoming = append(upcoming, p)
		}
	}
	return upcoming, overdue, nil
}

// PromoteDue transitions every overdue post to published and returns how
// many transitions happened. The update is conditional on the row still
// being scheduled, so two concurrent sweeps promoting the same post end
// with exactly one winner and the loser is a silent no-op. One post
// failing does not stop the rest; its status is unchanged and the next
// sweep retries it.
func (s *SchedulerService) PromoteDue(now time.Time) (int, error) {
	_, overdue, err := s.ListScheduled(now)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, post := range overdue {
		res := s.db.Model(&db.Post{}).
			Where("id = ? AND scheduling_status = ?", post.ID, db.StatusScheduled).
			Updates(map[string]interface{}{
				"is_published":         true,
				"scheduling_status":    db.StatusPublished,
				"scheduled_publish_at": nil,
				"updated_at":           now,
			})
		if res.Error != nil {
			s.log.Error("promote scheduled post",
				zap.Uint("post_id", post.ID),
				zap.Error(res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			// lost the race to a concurrent sweep
			continue
		}
		promoted++
		metrics.PostsPromoted.Inc()
		s.log.Info("post promoted to published",
			zap.Uint("post_id", post.ID),
			zap.String("slug", post.Slug))
	}
	return promoted, nil
}
