package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/letterpress/internal/db"
	"github.com/letterpress/internal/service"
	"go.uber.org/zap"
)

type postRequest struct {
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Category    string     `json:"category"`
	Keywords    []string   `json:"keywords"`
	CoverURL    string     `json:"coverUrl"`
	AudioURL    string     `json:"audioUrl"`
	AuthorID    uint       `json:"authorId"`
	Intent      string     `json:"publishIntent"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

func (r postRequest) toInput() service.PostInput {
	return service.PostInput{
		Title:       r.Title,
		Body:        r.Body,
		Category:    r.Category,
		Keywords:    r.Keywords,
		CoverURL:    r.CoverURL,
		AudioURL:    r.AudioURL,
		AuthorID:    r.AuthorID,
		Intent:      r.Intent,
		ScheduledAt: r.ScheduledAt,
	}
}

// CreatePost handles POST /api/posts.
func (a *API) CreatePost(c *gin.Context) {
	var req postRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}

	post, err := a.posts.Create(req.toInput())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// UpdatePost handles PATCH /api/posts/:id.
func (a *API) UpdatePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req postRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}

	post, err := a.posts.Update(id, req.toInput())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// PublishNow handles POST /api/posts/:id/publish-now.
func (a *API) PublishNow(c *gin.Context) {
	a.transitionPost(c, a.posts.PublishNow)
}

// Unschedule handles POST /api/posts/:id/unschedule.
func (a *API) Unschedule(c *gin.Context) {
	a.transitionPost(c, a.posts.Unschedule)
}

func (a *API) transitionPost(c *gin.Context, op func(uint) (*db.Post, error)) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := op(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// GetPosts handles GET /api/posts with optional status/category/search
// filters and pagination.
func (a *API) GetPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "20"))

	result, err := a.posts.List(service.PostFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":          result.Posts,
		"total":          result.Total,
		"totalPages":     result.TotalPages,
		"page":           result.Page,
		"perPage":        result.PerPage,
		"publishedCount": result.PublishedCount,
		"scheduledCount": result.ScheduledCount,
		"draftCount":     result.DraftCount,
	})
}

// GetPost handles GET /api/posts/:id.
func (a *API) GetPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := a.posts.Get(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// GetScheduledPosts handles GET /api/posts/scheduled: the upcoming and
// overdue partition the admin dashboard shows between sweeps.
func (a *API) GetScheduledPosts(c *gin.Context) {
	upcoming, overdue, err := a.scheduler.ListScheduled(time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upcoming": upcoming, "overdue": overdue})
}

// LikePostBySlug handles POST /posts/:slug/like from the public site.
func (a *API) LikePostBySlug(c *gin.Context) {
	post, err := a.posts.GetBySlug(c.Param("slug"))
	if err != nil || !post.IsPublished {
		respondError(c, http.StatusNotFound, "post not found")
		return
	}
	if err := a.posts.Like(post.ID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetPublicPost handles GET /posts/:slug for readers and bumps the view
// counter.
func (a *API) GetPublicPost(c *gin.Context) {
	post, err := a.posts.GetBySlug(c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !post.IsPublished {
		respondError(c, http.StatusNotFound, "post not found")
		return
	}
	if err := a.posts.IncrementViews(post.ID); err != nil {
		a.log.Warn("bump view count", zap.Uint("post_id", post.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}
