package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/letterpress/internal/db"
	"github.com/letterpress/internal/handler"
	"github.com/letterpress/internal/router"
	"github.com/letterpress/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// nopSender satisfies mail.Sender for handler tests that never assert on
// mail contents.
type nopSender struct{}

func (nopSender) Send(context.Context, string, string, string) error { return nil }

func setupPostAPITest(t *testing.T, adminKey string) (*gorm.DB, *gin.Engine) {
	t.Helper()

	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	dsn := fmt.Sprintf("file:post-api-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	api := handler.NewAPI(handler.Deps{
		DB:          gdb,
		Posts:       service.NewPostService(gdb),
		Scheduler:   service.NewSchedulerService(gdb, nil),
		Newsletter:  service.NewNewsletterService(gdb, nopSender{}, "https://example.com", nil),
		Tracking:    service.NewTrackingService(gdb, nil),
		Subscribers: service.NewSubscriberService(gdb),
		Analytics:   service.NewAnalyticsService(gdb),
	})
	return gdb, router.Setup(api, adminKey)
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePostEndpoint(t *testing.T) {
	gdb, r := setupPostAPITest(t, "")

	w := postJSON(t, r, "/api/posts", gin.H{
		"title":         "First Post",
		"body":          "<p>hello</p>",
		"category":      "tech",
		"publishIntent": "immediate",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Post db.Post `json:"post"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Post.IsPublished || resp.Post.Slug == "" {
		t.Fatalf("unexpected created post: %+v", resp.Post)
	}

	var count int64
	if err := gdb.Model(&db.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 post, got %d", count)
	}
}

func TestCreatePostScheduleTooSoonIs400(t *testing.T) {
	_, r := setupPostAPITest(t, "")

	soon := time.Now().Add(2 * time.Minute).Format(time.RFC3339)
	w := postJSON(t, r, "/api/posts", gin.H{
		"title":         "Soon",
		"body":          "<p>x</p>",
		"category":      "tech",
		"publishIntent": "scheduled",
		"scheduledAt":   soon,
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
	}
}

func TestPublishNowEndpoint(t *testing.T) {
	gdb, r := setupPostAPITest(t, "")

	at := time.Now().Add(time.Hour)
	post := db.Post{
		Title:              "Scheduled",
		Slug:               "scheduled-1",
		Category:           "tech",
		SchedulingStatus:   db.StatusScheduled,
		ScheduledPublishAt: &at,
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}

	w := postJSON(t, r, fmt.Sprintf("/api/posts/%d/publish-now", post.ID), gin.H{}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var got db.Post
	if err := gdb.First(&got, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if !got.IsPublished || got.SchedulingStatus != db.StatusPublished || got.ScheduledPublishAt != nil {
		t.Fatalf("unexpected state after publish-now: %+v", got)
	}
}

func TestAdminAPIKeyGuard(t *testing.T) {
	_, r := setupPostAPITest(t, "sekrit")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("X-API-KEY", "sekrit")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("with key: status = %d, want 200", w.Code)
	}

	// Tracking endpoints stay open for mail clients.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/track/open?token=x", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("tracking pixel behind auth: status = %d, want 200", w.Code)
	}
}

func TestPublicPostViewCounting(t *testing.T) {
	gdb, r := setupPostAPITest(t, "")

	post := db.Post{
		Title:            "Public",
		Slug:             "public-post",
		Category:         "life",
		IsPublished:      true,
		SchedulingStatus: db.StatusPublished,
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/posts/public-post", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	}

	var got db.Post
	if err := gdb.First(&got, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if got.ViewCount != 2 {
		t.Fatalf("view count = %d, want 2", got.ViewCount)
	}

	// Drafts are not visible on the public route.
	draft := db.Post{Title: "Hidden", Slug: "hidden-draft", Category: "life", SchedulingStatus: db.StatusDraft}
	if err := gdb.Create(&draft).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/posts/hidden-draft", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("draft visible: status = %d, want 404", w.Code)
	}
}
