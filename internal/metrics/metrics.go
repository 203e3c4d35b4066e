// Package metrics registers the process-wide prometheus counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PostsPromoted counts scheduled posts promoted to published by the sweep.
	PostsPromoted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "letterpress_posts_promoted_total",
		Help: "Total number of scheduled posts promoted to published.",
	})

	// NewsletterSent counts successful per-recipient newsletter sends.
	NewsletterSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "letterpress_newsletter_sent_total",
		Help: "Total number of newsletter emails sent.",
	})

	// NewsletterFailed counts per-recipient send failures.
	NewsletterFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "letterpress_newsletter_failed_total",
		Help: "Total number of newsletter emails that failed to send.",
	})

	// EmailOpens counts first-open tracking events.
	EmailOpens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "letterpress_email_opens_total",
		Help: "Total number of tracked email opens.",
	})

	// EmailClicks counts first-click tracking events.
	EmailClicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "letterpress_email_clicks_total",
		Help: "Total number of tracked email clicks.",
	})
)

func init() {
	prometheus.MustRegister(PostsPromoted, NewsletterSent, NewsletterFailed, EmailOpens, EmailClicks)
}
