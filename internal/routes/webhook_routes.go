package routes

import (
	"github.com/chamalink/backend/internal/handlers"
	"github.com/gin-gonic/gin"
)

// SetupWebhookRoutes configures routes for gateway callbacks. The M-Pesa
// callback is unauthenticated by the gateway's convention; deployments are
// expected to protect it at the network layer or by adding a secret path
// segment to the configured callback base URL.
func SetupWebhookRoutes(router *gin.Engine, webhookHandler *handlers.MpesaWebhookHandler) {
	webhooks := router.Group("/api/v1/webhooks")
	{
		webhooks.POST("/mpesa", webhookHandler.Callback)
	}
}
