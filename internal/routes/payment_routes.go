package routes

import (
	"github.com/chamalink/backend/internal/config"
	"github.com/chamalink/backend/internal/handlers"
	"github.com/chamalink/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SetupPaymentRoutes configures routes for M-Pesa payment endpoints
func SetupPaymentRoutes(router *gin.Engine, cfg config.JWTConfig, paymentHandler *handlers.PaymentHandler, limiter *middleware.RateLimiter) {
	payments := router.Group("/api/v1/payments")
	payments.Use(middleware.AuthMiddleware(cfg))
	{
		payments.POST("/mpesa", limiter.Limit(), paymentHandler.InitiatePayment)
		payments.GET("/transactions", paymentHandler.ListTransactions)
		payments.GET("/transactions/:id", paymentHandler.GetTransaction)
	}
}
