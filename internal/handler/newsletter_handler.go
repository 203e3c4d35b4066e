package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendNewsletterRequest struct {
	PostID        uint   `json:"postId"`
	SubscriberIDs []uint `json:"subscriberIds"`
}

type customEmailRequest struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// SendNewsletter handles POST /api/newsletter/send.
func (a *API) SendNewsletter(c *gin.Context) {
	var req sendNewsletterRequest
	if !bindJSON(c, &req, "invalid newsletter payload") {
		return
	}

	report, err := a.newsletter.SendNewsletter(c.Request.Context(), req.PostID, req.SubscriberIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentCount": report.Sent, "failures": report.Failures})
}

// SendCustomEmail handles POST /api/email/custom: an untracked fan-out
// to every active subscriber.
func (a *API) SendCustomEmail(c *gin.Context) {
	var req customEmailRequest
	if !bindJSON(c, &req, "invalid email payload") {
		return
	}

	report, err := a.newsletter.SendCustomEmail(c.Request.Context(), req.Subject, req.HTML)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentCount": report.Sent, "failures": report.Failures})
}

// GetNewsletterStats handles GET /api/newsletter/stats.
func (a *API) GetNewsletterStats(c *gin.Context) {
	stats, err := a.analytics.AllStats()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	totals, err := a.analytics.Totals()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": stats, "totals": totals})
}

// GetPostNewsletterStats handles GET /api/newsletter/stats/:id.
func (a *API) GetPostNewsletterStats(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := a.analytics.PostStats(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
