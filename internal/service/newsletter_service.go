package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/letterpress/internal/db"
	"github.com/letterpress/internal/mail"
	"github.com/letterpress/internal/metrics"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPostNotPublished = errors.New("post is not published")
	ErrNoRecipients     = errors.New("recipient set is empty")
	ErrSubjectRequired  = errors.New("subject is required")
)

const (
	// sendWorkers bounds the number of concurrent SMTP conversations.
	sendWorkers = 4
	// sendTimeout caps one recipient's send; a timeout counts as that
	// recipient's failure and never aborts the batch.
	sendTimeout = 15 * time.Second
	// trackingTokenBytes of entropy per delivery, hex-encoded in links.
	trackingTokenBytes = 24

	excerptRunes = 240
)

// SendFailure describes one recipient the dispatcher could not deliver to.
type SendFailure struct {
	SubscriberID uint   `json:"subscriberId"`
	Email        string `json:"email"`
	Reason       string `json:"reason"`
}

// SendReport summarizes one dispatch batch.
type SendReport struct {
	Sent     int           `json:"sentCount"`
	Failures []SendFailure `json:"failures"`
}

// NewsletterService fans a published post out to subscribers, writing one
// append-only EmailDelivery row per successful send.
type NewsletterService struct {
	db       *gorm.DB
	sender   mail.Sender
	baseURL  string
	log      *zap.Logger
	sanitize *bluemonday.Policy
	strip    *bluemonday.Policy
	workers  int
	now      func() time.Time
}

// NewNewsletterService creates a NewsletterService. baseURL is the public
// origin tracking and unsubscribe links point back at.
func NewNewsletterService(gdb *gorm.DB, sender mail.Sender, baseURL string, log *zap.Logger) *NewsletterService {
	if log == nil {
		log = zap.NewNop()
	}
	return &NewsletterService{
		db:       gdb,
		sender:   sender,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
		sanitize: bluemonday.UGCPolicy(),
		strip:    bluemonday.StrictPolicy(),
		workers:  sendWorkers,
		now:      time.Now,
	}
}

// WithWorkers overrides the send concurrency, used by tests.
func (s *NewsletterService) WithWorkers(n int) *NewsletterService {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithClock overrides the time source, used by tests.
func (s *NewsletterService) WithClock(now func() time.Time) *NewsletterService {
	if now != nil {
		s.now = now
	}
	return s
}

// SendNewsletter sends post postID to the given subscribers. Unknown and
// unsubscribed ids are silently skipped. Each eligible recipient gets a
// fresh tracking token; a delivery row is written only after the
// transport accepted the message. Failures are isolated per recipient
// and reported back, never aborting the batch.
func (s *NewsletterService) SendNewsletter(ctx context.Context, postID uint, subscriberIDs []uint) (*SendReport, error) {
	if len(subscriberIDs) == 0 {
		return nil, ErrNoRecipients
	}

	var post db.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if !post.IsPublished {
		return nil, ErrPostNotPublished
	}

	var recipients []db.Subscriber
	if err := s.db.Where("id IN ? AND is_subscribed = ?", subscriberIDs, true).
		Find(&recipients).Error; err != nil {
		return nil, err
	}

	report := s.fanOut(ctx, recipients, func(ctx context.Context, sub db.Subscriber) error {
		return s.sendOne(ctx, &post, sub)
	})

	if len(recipients) > 0 {
		// Best effort: the delivery rows are the source of truth, the
		// flag only drives the admin list.
		sentAt := s.now()
		if err := s.db.Model(&db.Post{}).Where("id = ?", post.ID).
			Updates(map[string]interface{}{
				"is_email_sent": true,
				"email_sent_at": sentAt,
			}).Error; err != nil {
			s.log.Error("flag post as emailed", zap.Uint("post_id", post.ID), zap.Error(err))
		}
	}

	s.log.Info("newsletter batch finished",
		zap.Uint("post_id", post.ID),
		zap.Int("sent", report.Sent),
		zap.Int("failed", len(report.Failures)))
	return report, nil
}

// SendCustomEmail fans an arbitrary message out to every currently
// subscribed address. Custom sends are not tracked: no delivery rows are
// written and the message carries only the unsubscribe link.
func (s *NewsletterService) SendCustomEmail(ctx context.Context, subject, html string) (*SendReport, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, ErrSubjectRequired
	}

	var recipients []db.Subscriber
	if err := s.db.Where("is_subscribed = ?", true).Find(&recipients).Error; err != nil {
		return nil, err
	}

	body := s.sanitize.Sanitize(html)
	report := s.fanOut(ctx, recipients, func(ctx context.Context, sub db.Subscriber) error {
		rendered, err := s.renderCustom(body, sub)
		if err != nil {
			return err
		}
		return s.sender.Send(ctx, sub.Email, subject, rendered)
	})

	s.log.Info("custom email batch finished",
		zap.String("subject", subject),
		zap.Int("sent", report.Sent),
		zap.Int("failed", len(report.Failures)))
	return report, nil
}

// fanOut runs send over recipients with a small worker pool. One
// recipient's error is recorded and the rest keep going.
func (s *NewsletterService) fanOut(ctx context.Context, recipients []db.Subscriber, send func(context.Context, db.Subscriber) error) *SendReport {
	report := &SendReport{Failures: []SendFailure{}}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan db.Subscriber)
	)

	workers := s.workers
	if len(recipients) < workers {
		workers = len(recipients)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
				err := send(sendCtx, sub)
				cancel()

				mu.Lock()
				if err != nil {
					metrics.NewsletterFailed.Inc()
					report.Failures = append(report.Failures, SendFailure{
						SubscriberID: sub.ID,
						Email:        sub.Email,
						Reason:       err.Error(),
					})
					s.log.Warn("send failed",
						zap.String("email", sub.Email),
						zap.Error(err))
				} else {
					metrics.NewsletterSent.Inc()
					report.Sent++
				}
				mu.Unlock()
			}
		}()
	}

	for _, sub := range recipients {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	return report
}

// sendOne renders, sends and records a single newsletter delivery.
func (s *NewsletterService) sendOne(ctx context.Context, post *db.Post, sub db.Subscriber) error {
	token, err := newTrackingToken()
	if err != nil {
		return fmt.Errorf("tracking token: %w", err)
	}

	html, err := s.renderNewsletter(post, sub, token)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if err := s.sender.Send(ctx, sub.Email, post.Title, html); err != nil {
		return err
	}

	delivery := db.EmailDelivery{
		SubscriberID:  sub.ID,
		PostID:        post.ID,
		TrackingToken: token,
		SentAt:        s.now(),
	}
	if err := s.db.Create(&delivery).Error; err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func newTrackingToken() (string, error) {
	buf := make([]byte, trackingTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

var newsletterTmpl = template.Must(template.New("newsletter").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Georgia,serif;max-width:600px;margin:0 auto;padding:24px;">
  <h1 style="font-size:24px;">{{.Title}}</h1>
  {{if .CoverURL}}<img src="{{.CoverURL}}" alt="" style="max-width:100%;border-radius:4px;"/>{{end}}
  <p style="font-size:16px;line-height:1.6;">{{.Excerpt}}</p>
  <p><a href="{{.ReadMoreURL}}" style="font-size:16px;">Read the full post &rarr;</a></p>
  <hr style="border:none;border-top:1px solid #ddd;margin:32px 0 16px;"/>
  <p style="font-size:12px;color:#888;">
    You are receiving this because you subscribed to our newsletter.
    <a href="{{.UnsubscribeURL}}" style="color:#888;">Unsubscribe</a>
  </p>
  <img src="{{.PixelURL}}" width="1" height="1" alt="" style="display:none;"/>
</body>
</html>`))

var customTmpl = template.Must(template.New("custom").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Georgia,serif;max-width:600px;margin:0 auto;padding:24px;">
  {{.Body}}
  <hr style="border:none;border-top:1px solid #ddd;margin:32px 0 16px;"/>
  <p style="font-size:12px;color:#888;">
    You are receiving this because you subscribed to our newsletter.
    <a href="{{.UnsubscribeURL}}" style="color:#888;">Unsubscribe</a>
  </p>
</body>
</html>`))

func (s *NewsletterService) renderNewsletter(post *db.Post, sub db.Subscriber, token string) (string, error) {
	postURL := fmt.Sprintf("%s/posts/%s", s.baseURL, post.Slug)
	data := struct {
		Title          string
		CoverURL       string
		Excerpt        string
		ReadMoreURL    string
		UnsubscribeURL string
		PixelURL       string
	}{
		Title:          post.Title,
		CoverURL:       post.CoverURL,
		Excerpt:        s.excerpt(post.Body),
		ReadMoreURL:    fmt.Sprintf("%s/track/click?token=%s&url=%s", s.baseURL, token, url.QueryEscape(postURL)),
		UnsubscribeURL: fmt.Sprintf("%s/unsubscribe?token=%s", s.baseURL, sub.UnsubscribeToken),
		PixelURL:       fmt.Sprintf("%s/track/open?token=%s", s.baseURL, token),
	}

	var buf bytes.Buffer
	if err := newsletterTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *NewsletterService) renderCustom(body string, sub db.Subscriber) (string, error) {
	data := struct {
		Body           template.HTML
		UnsubscribeURL string
	}{
		Body:           template.HTML(body),
		UnsubscribeURL: fmt.Sprintf("%s/unsubscribe?token=%s", s.baseURL, sub.UnsubscribeToken),
	}

	var buf bytes.Buffer
	if err := customTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// excerpt strips markup from the post body and truncates it for the
// email teaser.
func (s *NewsletterService) excerpt(body string) string {
	text := strings.Join(strings.Fields(s.strip.Sanitize(body)), " ")
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:excerptRunes])) + "…"
}
