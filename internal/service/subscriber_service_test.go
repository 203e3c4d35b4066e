package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/letterpress/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSubscriberTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:subscriber-%d?mode=memory&cache=shared", time.Now().UnixNano())
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

func TestSubscriberService_OneRowPerEmail(t *testing.T) {
	gdb := setupSubscriberTestDB(t)
	svc := NewSubscriberService(gdb)

	first, err := svc.Subscribe("Reader@Example.com", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if first.Email != "reader@example.com" {
		t.Fatalf("email not normalized: %q", first.Email)
	}
	if first.UnsubscribeToken == "" {
		t.Fatal("expected an unsubscribe token on signup")
	}

	second, err := svc.Subscribe("reader@example.com", []string{"tech"})
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("resubscribing must reuse the existing row")
	}
	if second.UnsubscribeToken != first.UnsubscribeToken {
		t.Fatal("unsubscribe token must be stable once issued")
	}

	var count int64
	if err := gdb.Model(&db.Subscriber{}).Count(&count).Error; err != nil {
		t.Fatalf("count subscribers: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row per email, got %d", count)
	}
}

func TestSubscriberService_UnsubscribeByToken(t *testing.T) {
	gdb := setupSubscriberTestDB(t)
	svc := NewSubscriberService(gdb)

	sub, err := svc.Subscribe("reader@example.com", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	gone, err := svc.UnsubscribeByToken(sub.UnsubscribeToken)
	if err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if gone.IsSubscribed || gone.UnsubscribedAt == nil {
		t.Fatalf("unexpected state after unsubscribe: %+v", gone)
	}

	// Repeating the request is a no-op and keeps the first timestamp.
	again, err := svc.UnsubscribeByToken(sub.UnsubscribeToken)
	if err != nil {
		t.Fatalf("repeat unsubscribe: %v", err)
	}
	if !again.UnsubscribedAt.Equal(*gone.UnsubscribedAt) {
		t.Fatal("repeat unsubscribe must not move the timestamp")
	}

	if _, err := svc.UnsubscribeByToken("bogus"); !errors.Is(err, ErrSubscriberNotFound) {
		t.Fatalf("expected ErrSubscriberNotFound, got %v", err)
	}

	// Resubscribing reactivates and keeps the token.
	back, err := svc.Subscribe("reader@example.com", nil)
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if !back.IsSubscribed || back.UnsubscribedAt != nil {
		t.Fatalf("unexpected state after resubscribe: %+v", back)
	}
	if back.UnsubscribeToken != sub.UnsubscribeToken {
		t.Fatal("token changed across unsubscribe/resubscribe")
	}
}

func TestSubscriberService_ListAndCounts(t *testing.T) {
	gdb := setupSubscriberTestDB(t)
	svc := NewSubscriberService(gdb)

	if _, err := svc.Subscribe("one@example.com", nil); err != nil {
		t.Fatalf("subscribe one: %v", err)
	}
	two, err := svc.Subscribe("two@example.com", nil)
	if err != nil {
		t.Fatalf("subscribe two: %v", err)
	}
	if _, err := svc.UnsubscribeByToken(two.UnsubscribeToken); err != nil {
		t.Fatalf("unsubscribe two: %v", err)
	}

	subs, err := svc.ListSubscribed()
	if err != nil {
		t.Fatalf("list subscribed: %v", err)
	}
	if len(subs) != 1 || subs[0].Email != "one@example.com" {
		t.Fatalf("unexpected active list: %+v", subs)
	}

	total, active, err := svc.Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if total != 2 || active != 1 {
		t.Fatalf("counts = (%d, %d), want (2, 1)", total, active)
	}

	if _, err := svc.Subscribe("not-an-email", nil); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
}
