package router

import (
	"net/http"

	"github.com/doclayer-io/webhook-bridge/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Non-POST deliveries get 405, not 404.
	r.HandleMethodNotAllowed = true

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "doclayer-webhook-bridge",
					"error":   err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "doclayer-webhook-bridge",
		})
	})

	webhookHandler := handler.NewWebhookHandler(deps)

	// POST /webhooks/doclayer - inbound event deliveries
	r.POST("/webhooks/doclayer", webhookHandler.Receive)

	return r
}
