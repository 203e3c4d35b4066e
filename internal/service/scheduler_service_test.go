package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/letterpress/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSchedulerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:scheduler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func seedScheduledPost(t *testing.T, gdb *gorm.DB, slug string, at time.Time) *db.Post {
	t.Helper()
	post := db.Post{
		Title:              "Post " + slug,
		Slug:               slug,
		Category:           "tech",
		SchedulingStatus:   db.StatusScheduled,
		ScheduledPublishAt: &at,
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return &post
}

func TestSchedulerService_ListScheduledPartition(t *testing.T) {
	gdb := setupSchedulerTestDB(t)
	svc := NewSchedulerService(gdb, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedScheduledPost(t, gdb, "overdue-1", now.Add(-time.Hour))
	seedScheduledPost(t, gdb, "due-exactly", now)
	seedScheduledPost(t, gdb, "upcoming-1", now.Add(time.Hour))

	upcoming, overdue, err := svc.ListScheduled(now)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(overdue) != 2 {
		t.Fatalf("expected 2 overdue posts, got %d", len(overdue))
	}
	if len(upcoming) != 1 {
		t.Fatalf("expected 1 upcoming post, got %d", len(upcoming))
	}
	if upcoming[0].Slug != "upcoming-1" {
		t.Fatalf("unexpected upcoming post %q", upcoming[0].Slug)
	}
}

func TestSchedulerService_PromoteDue(t *testing.T) {
	gdb := setupSchedulerTestDB(t)
	svc := NewSchedulerService(gdb, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	overdue := seedScheduledPost(t, gdb, "overdue", now.Add(-time.Minute))
	upcoming := seedScheduledPost(t, gdb, "upcoming", now.Add(time.Minute))

	promoted, err := svc.PromoteDue(now)
	if err != nil {
		t.Fatalf("promote due: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected 1 promotion, got %d", promoted)
	}

	var got db.Post
	if err := gdb.First(&got, overdue.ID).Error; err != nil {
		t.Fatalf("reload overdue post: %v", err)
	}
	if !got.IsPublished || got.SchedulingStatus != db.StatusPublished {
		t.Fatalf("overdue post not published: %+v", got)
	}
	if got.ScheduledPublishAt != nil {
		t.Fatal("expected scheduled_publish_at cleared after promotion")
	}

	got = db.Post{}
	if err := gdb.First(&got, upcoming.ID).Error; err != nil {
		t.Fatalf("reload upcoming post: %v", err)
	}
	if got.SchedulingStatus != db.StatusScheduled {
		t.Fatalf("upcoming post should stay scheduled, got %q", got.SchedulingStatus)
	}
}

func TestSchedulerService_PromoteDueIdempotent(t *testing.T) {
	gdb := setupSchedulerTestDB(t)
	svc := NewSchedulerService(gdb, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedScheduledPost(t, gdb, "once-only", now.Add(-time.Minute))

	first, err := svc.PromoteDue(now)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	second, err := svc.PromoteDue(now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if first != 1 || second != 0 {
		t.Fatalf("expected exactly one transition across sweeps, got %d then %d", first, second)
	}

	var count int64
	if err := gdb.Model(&db.Post{}).
		Where("scheduling_status = ?", db.StatusPublished).
		Count(&count).Error; err != nil {
		t.Fatalf("count published: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 published post, got %d", count)
	}
}
