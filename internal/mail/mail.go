// Package mail defines the outbound email transport and provides a Gmail
// XOAUTH2 SMTP implementation. Services depend on the Sender interface;
// tests inject a stub that records calls without hitting the network.
package mail

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned from Send when any of the OAuth2 SMTP
// credentials is missing. It is surfaced at send time, not at startup, so
// a deployment without mail credentials can still serve everything else.
var ErrNotConfigured = errors.New("mail transport is not configured")

// Sender delivers one HTML email to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}
