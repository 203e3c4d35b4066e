package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/letterpress/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// Publish intents an author can choose when creating or editing a post.
const (
	IntentImmediate = "immediate"
	IntentScheduled = "scheduled"
	IntentDraft     = "draft"
)

// minScheduleLead is the minimum distance between submission time and a
// scheduled publish time.
const minScheduleLead = 5 * time.Minute

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrTitleRequired    = errors.New("title is required")
	ErrInvalidCategory  = errors.New("unknown post category")
	ErrInvalidIntent    = errors.New("unknown publish intent")
	ErrScheduleRequired = errors.New("scheduled publish time is required")
	ErrScheduleTooSoon  = errors.New("scheduling time too soon")
)

// PostService owns the post scheduling state machine: it validates the
// author's publish intent and keeps the status fields consistent.
type PostService struct {
	db       *gorm.DB
	sanitize *bluemonday.Policy
	now      func() time.Time
}

// PostInput represents fields accepted when creating or updating a post.
type PostInput struct {
	Title       string
	Body        string
	Category    string
	Keywords    []string
	CoverURL    string
	AudioURL    string
	AuthorID    uint
	Intent      string
	ScheduledAt *time.Time
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Status   string
	Category string
	Search   string
	Page     int
	PerPage  int
}

// PostListResult aggregates paginated list data and counters.
type PostListResult struct {
	Posts          []db.Post
	Total          int64
	PublishedCount int64
	ScheduledCount int64
	DraftCount     int64
	TotalPages     int
	Page           int
	PerPage        int
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB) *PostService {
	return &PostService{
		db:       gdb,
		sanitize: bluemonday.UGCPolicy(),
		now:      time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *PostService) WithClock(now func() time.Time) *PostService {
	if now != nil {
		s.now = now
	}
	return s
}

// Create validates the input and persists a new post. The generated slug
// embeds the creation epoch millis, so two posts with the same title
// still get distinct slugs without a database round-trip.
func (s *PostService) Create(input PostInput) (*db.Post, error) {
	now := s.now()
	if err := validateInput(input, now); err != nil {
		return nil, err
	}

	slug := slugify(input.Title)
	if slug == "" {
		// titles without any latin alphanumerics still need a valid slug
		slug = "post"
	}

	post := db.Post{
		Title:    strings.TrimSpace(input.Title),
		Slug:     fmt.Sprintf("%s-%d", slug, now.UnixMilli()),
		Body:     s.sanitize.Sanitize(input.Body),
		CoverURL: input.CoverURL,
		AudioURL: input.AudioURL,
		Category: input.Category,
		Keywords: strings.Join(input.Keywords, ","),
		AuthorID: input.AuthorID,
	}
	applyIntent(&post, input)

	if err := s.db.Create(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// Update applies the same validation and status truth table to an
// existing post. The slug is immutable once set. Moving a published post
// back to scheduled takes it offline until the new time arrives.
func (s *PostService) Update(id uint, input PostInput) (*db.Post, error) {
	post, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input, s.now()); err != nil {
		return nil, err
	}

	post.Title = strings.TrimSpace(input.Title)
	post.Body = s.sanitize.Sanitize(input.Body)
	post.CoverURL = input.CoverURL
	post.AudioURL = input.AudioURL
	post.Category = input.Category
	post.Keywords = strings.Join(input.Keywords, ",")
	applyIntent(post, input)

	if err := s.db.Save(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// PublishNow is the administrative override that takes a scheduled or
// draft post live immediately. Re-applying it to an already published
// post is a no-op.
func (s *PostService) PublishNow(id uint) (*db.Post, error) {
	return s.transition(id, db.StatusPublished, true)
}

// Unschedule cancels a pending schedule and parks the post as a draft.
// Idempotent for posts already in draft.
func (s *PostService) Unschedule(id uint) (*db.Post, error) {
	return s.transition(id, db.StatusDraft, false)
}

func (s *PostService) transition(id uint, status string, published bool) (*db.Post, error) {
	post, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if post.SchedulingStatus == status {
		return post, nil
	}

	post.SchedulingStatus = status
	post.IsPublished = published
	post.ScheduledPublishAt = nil
	if err := s.db.Save(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// Get fetches a post by id.
func (s *PostService) Get(id uint) (*db.Post, error) {
	var post db.Post
	if err := s.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetBySlug fetches a post by its public slug.
func (s *PostService) GetBySlug(slug string) (*db.Post, error) {
	var post db.Post
	if err := s.db.Where("slug = ?", slug).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// List returns a filtered, paginated page of posts with status counters.
func (s *PostService) List(filter PostFilter) (*PostListResult, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}

	query := s.db.Model(&db.Post{})
	if filter.Status != "" {
		query = query.Where("scheduling_status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title LIKE ?", like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var posts []db.Post
	if err := query.Order("created_at desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	result := &PostListResult{
		Posts:   posts,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
	result.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))

	counts := map[string]*int64{
		db.StatusPublished: &result.PublishedCount,
		db.StatusScheduled: &result.ScheduledCount,
		db.StatusDraft:     &result.DraftCount,
	}
	for status, dest := range counts {
		if err := s.db.Model(&db.Post{}).
			Where("scheduling_status = ?", status).
			Count(dest).Error; err != nil {
			return nil, err
		}
	}
	return result, nil
}

// IncrementViews bumps the view counter without touching updated_at.
func (s *PostService) IncrementViews(id uint) error {
	return s.db.Model(&db.Post{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// Like bumps the like counter.
func (s *PostService) Like(id uint) error {
	return s.db.Model(&db.Post{}).Where("id = ?", id).
		UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
}

func validateInput(input PostInput, now time.Time) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrTitleRequired
	}
	if !validCategory(input.Category) {
		return ErrInvalidCategory
	}
	switch input.Intent {
	case IntentImmediate, IntentDraft:
		return nil
	case IntentScheduled:
		if input.ScheduledAt == nil {
			return ErrScheduleRequired
		}
		if input.ScheduledAt.Before(now.Add(minScheduleLead)) {
			return ErrScheduleTooSoon
		}
		return nil
	default:
		return ErrInvalidIntent
	}
}

// applyIntent writes the status truth table onto the post.
func applyIntent(post *db.Post, input PostInput) {
	switch input.Intent {
	case IntentImmediate:
		post.IsPublished = true
		post.SchedulingStatus = db.StatusPublished
		post.ScheduledPublishAt = nil
	case IntentScheduled:
		post.IsPublished = false
		post.SchedulingStatus = db.StatusScheduled
		at := *input.ScheduledAt
		post.ScheduledPublishAt = &at
	case IntentDraft:
		post.IsPublished = false
		post.SchedulingStatus = db.StatusDraft
		post.ScheduledPublishAt = nil
	}
}

func validCategory(category string) bool {
	for _, c := range db.PostCategories {
		if c == category {
			return true
		}
	}
	return false
}

// slugify lowercases the title, collapses runs of non-alphanumerics into
// a single hyphen and trims leading and trailing hyphens.
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
