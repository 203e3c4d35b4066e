package service

import (
	"sort"
	"time"

	"github.com/letterpress/internal/db"
	"gorm.io/gorm"
)

// PostEngagement summarizes the delivery log for one post.
type PostEngagement struct {
	PostID     uint       `json:"postId"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	SentCount  int64      `json:"sentCount"`
	OpenCount  int64      `json:"openCount"`
	ClickCount int64      `json:"clickCount"`
	OpenRate   float64    `json:"openRate"`
	ClickRate  float64    `json:"clickRate"`
	LastSent   *time.Time `json:"lastSentAt"`
}

// EngagementTotals aggregates across all newsletter sends.
type EngagementTotals struct {
	SentCount    int64   `json:"sentCount"`
	OpenCount    int64   `json:"openCount"`
	ClickCount   int64   `json:"clickCount"`
	AvgOpenRate  float64 `json:"avgOpenRate"`
	AvgClickRate float64 `json:"avgClickRate"`
}

// AnalyticsService is the read side over the delivery log: pure grouping
// and zero-guarded rate arithmetic, no writes.
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates an AnalyticsService instance.
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb}
}

// PostStats returns the engagement summary for a single post.
func (s *AnalyticsService) PostStats(postID uint) (*PostEngagement, error) {
	var post db.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		return nil, ErrPostNotFound
	}

	var deliveries []db.EmailDelivery
	if err := s.db.Where("post_id = ?", postID).Find(&deliveries).Error; err != nil {
		return nil, err
	}

	eng := summarize(post, deliveries)
	return &eng, nil
}

// AllStats returns one engagement summary per post that has deliveries,
// most recently sent first.
func (s *AnalyticsService) AllStats() ([]PostEngagement, error) {
	var deliveries []db.EmailDelivery
	if err := s.db.Find(&deliveries).Error; err != nil {
		return nil, err
	}

	byPost := make(map[uint][]db.EmailDelivery)
	for _, d := range deliveries {
		byPost[d.PostID] = append(byPost[d.PostID], d)
	}

	ids := make([]uint, 0, len(byPost))
	for id := range byPost {
		ids = append(ids, id)
	}

	var posts []db.Post
	if len(ids) > 0 {
		if err := s.db.Where("id IN ?", ids).Find(&posts).Error; err != nil {
			return nil, err
		}
	}

	result := make([]PostEngagement, 0, len(posts))
	for _, post := range posts {
		result = append(result, summarize(post, byPost[post.ID]))
	}

	sort.Slice(result, func(i, j int) bool {
		li, lj := result[i].LastSent, result[j].LastSent
		switch {
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.After(*lj)
		}
	})
	return result, nil
}

// Totals computes the global tallies and average rates with the same
// zero-guard as the per-post rates.
func (s *AnalyticsService) Totals() (*EngagementTotals, error) {
	stats, err := s.AllStats()
	if err != nil {
		return nil, err
	}

	var t EngagementTotals
	for _, st := range stats {
		t.SentCount += st.SentCount
		t.OpenCount += st.OpenCount
		t.ClickCount += st.ClickCount
	}
	t.AvgOpenRate = rate(t.OpenCount, t.SentCount)
	t.AvgClickRate = rate(t.ClickCount, t.SentCount)
	return &t, nil
}

func summarize(post db.Post, deliveries []db.EmailDelivery) PostEngagement {
	eng := PostEngagement{
		PostID: post.ID,
		Title:  post.Title,
		Slug:   post.Slug,
	}
	for _, d := range deliveries {
		eng.SentCount++
		if d.OpenedAt != nil {
			eng.OpenCount++
		}
		if d.ClickedAt != nil {
			eng.ClickCount++
		}
		if eng.LastSent == nil || d.SentAt.After(*eng.LastSent) {
			sent := d.SentAt
			eng.LastSent = &sent
		}
	}
	eng.OpenRate = rate(eng.OpenCount, eng.SentCount)
	eng.ClickRate = rate(eng.ClickCount, eng.SentCount)
	return eng
}

// rate is count/total as a percentage, 0 when total is 0.
func rate(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
