package router

import (
	"github.com/gin-gonic/gin"
	"github.com/letterpress/internal/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup wires the HTTP surface onto a gin engine. adminKey guards the
// /api group; the tracking and unsubscribe endpoints stay open because
// mail clients call them without credentials.
func Setup(api *handler.API, adminKey string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Reader-facing endpoints.
	r.GET("/posts/:slug", api.GetPublicPost)
	r.POST("/posts/:slug/like", api.LikePostBySlug)

	// Endpoints embedded in outbound email.
	r.GET("/track/open", api.TrackOpen)
	r.GET("/track/click", api.TrackClick)
	r.GET("/unsubscribe", api.Unsubscribe)

	admin := r.Group("/api")
	admin.Use(handler.APIKeyRequired(adminKey))
	{
		admin.GET("/posts", api.GetPosts)
		admin.GET("/posts/scheduled", api.GetScheduledPosts)
		admin.POST("/posts", api.CreatePost)
		admin.GET("/posts/:id", api.GetPost)
		admin.PATCH("/posts/:id", api.UpdatePost)
		admin.POST("/posts/:id/publish-now", api.PublishNow)
		admin.POST("/posts/:id/unschedule", api.Unschedule)

		admin.POST("/newsletter/send", api.SendNewsletter)
		admin.POST("/email/custom", api.SendCustomEmail)
		admin.GET("/newsletter/stats", api.GetNewsletterStats)
		admin.GET("/newsletter/stats/:id", api.GetPostNewsletterStats)

		admin.POST("/subscribers", api.Subscribe)
		admin.GET("/subscribers", api.GetSubscribers)

		admin.POST("/uploads", api.Upload)
	}

	return r
}
