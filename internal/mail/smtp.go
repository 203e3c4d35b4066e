package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// SMTPConfig holds the Gmail XOAUTH2 credentials and server address.
type SMTPConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Account      string // sending mailbox, also the SMTP identity
	FromName     string
	Host         string
	Port         int
}

// SMTPSender sends mail over SMTP using an OAuth2 access token minted
// from a long-lived refresh token.
type SMTPSender struct {
	cfg    SMTPConfig
	tokens oauth2.TokenSource
}

// NewSMTPSender builds a sender from cfg. Incomplete credentials are not
// an error here; Send reports ErrNotConfigured instead.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg}
	if s.configured() {
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
		}
		s.tokens = oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}
	return s
}

func (s *SMTPSender) configured() bool {
	return s.cfg.ClientID != "" && s.cfg.ClientSecret != "" &&
		s.cfg.RefreshToken != "" && s.cfg.Account != ""
}

// Send delivers one HTML message. The passed context bounds the whole
// exchange including the token refresh.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if !s.configured() {
		return ErrNotConfigured
	}

	tok, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("refresh access token: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if err := client.Auth(newXOAUTH2(s.cfg.Account, tok.AccessToken)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(s.cfg.Account); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(s.cfg.FromName, s.cfg.Account, to, subject, html)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

func buildMessage(fromName, from, to, subject, html string) []byte {
	var b strings.Builder
	if fromName != "" {
		fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), from)
	} else {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// xoauth2Auth implements the SASL XOAUTH2 mechanism Gmail expects.
type xoauth2Auth struct {
	user, token string
}

func (a xoauth2Auth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	resp := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", a.user, a.token)
	return "XOAUTH2", []byte(resp), nil
}

func (a xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// The server reports an auth error as a base64 JSON blob and
		// expects an empty line back before failing the exchange.
		return []byte(""), nil
	}
	return nil, nil
}

func newXOAUTH2(user, token string) smtp.Auth { return xoauth2Auth{user: user, token: token} }
