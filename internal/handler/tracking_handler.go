package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// trackingPixel is a 1x1 transparent GIF. It is served for every open
// request, valid token or not, so a broken link never shows the reader
// an error inside their mail client.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackOpen handles GET /track/open?token=...
func (a *API) TrackOpen(c *gin.Context) {
	a.tracking.RecordOpen(c.Query("token"))

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Data(http.StatusOK, "image/gif", trackingPixel)
}

// TrackClick handles GET /track/click?token=...&url=... The reader is
// redirected to their destination no matter what the token looked like;
// tracking failures must never leave them at a dead end.
func (a *API) TrackClick(c *gin.Context) {
	a.tracking.RecordClick(c.Query("token"))

	dest := c.Query("url")
	if !safeRedirect(dest) {
		dest = "/"
	}
	c.Redirect(http.StatusFound, dest)
}

// Unsubscribe handles GET /unsubscribe?token=...
func (a *API) Unsubscribe(c *gin.Context) {
	sub, err := a.subscribers.UnsubscribeByToken(c.Query("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unsubscribed": true, "email": sub.Email})
}

// safeRedirect rejects destinations that are not http(s) URLs or local
// paths, keeping the click endpoint from becoming an open redirector for
// javascript: and friends.
func safeRedirect(dest string) bool {
	if dest == "" {
		return false
	}
	u, err := url.Parse(dest)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https" || (u.Scheme == "" && u.Host == "")
}
