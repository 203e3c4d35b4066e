package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type subscribeRequest struct {
	Email      string   `json:"email"`
	Categories []string `json:"categories"`
}

// Subscribe handles POST /api/subscribers. Re-subscribing a known email
// reactivates the existing row instead of creating a duplicate.
func (a *API) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if !bindJSON(c, &req, "invalid subscribe payload") {
		return
	}

	sub, err := a.subscribers.Subscribe(req.Email, req.Categories)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscriber": sub})
}

// GetSubscribers handles GET /api/subscribers for the admin screens.
func (a *API) GetSubscribers(c *gin.Context) {
	subs, err := a.subscribers.ListSubscribed()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	total, active, err := a.subscribers.Counts()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subs, "total": total, "active": active})
}
