package routes

import (
	"github.com/chamalink/backend/internal/config"
	"github.com/chamalink/backend/internal/handlers"
	"github.com/chamalink/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes configures registration and login endpoints
func SetupAuthRoutes(router *gin.Engine, authHandler *handlers.AuthHandler) {
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}
}

// SetupChamaRoutes configures savings-group endpoints
func SetupChamaRoutes(router *gin.Engine, cfg config.JWTConfig, chamaHandler *handlers.ChamaHandler, loanHandler *handlers.LoanHandler, paymentHandler *handlers.PaymentHandler) {
	chamas := router.Group("/api/v1/chamas")
	chamas.Use(middleware.AuthMiddleware(cfg))
	{
		chamas.POST("", chamaHandler.CreateChama)
		chamas.POST("/join", chamaHandler.JoinChama)
		chamas.GET("", chamaHandler.ListChamas)
		chamas.GET("/:id", chamaHandler.GetChama)
		chamas.GET("/:id/loans", loanHandler.ListChamaLoans)
		chamas.GET("/:id/transactions", paymentHandler.ListChamaTransactions)
	}
}

// SetupLoanRoutes configures loan endpoints
func SetupLoanRoutes(router *gin.Engine, cfg config.JWTConfig, loanHandler *handlers.LoanHandler) {
	loans := router.Group("/api/v1/loans")
	loans.Use(middleware.AuthMiddleware(cfg))
	{
		loans.POST("", loanHandler.RequestLoan)
		loans.GET("", loanHandler.ListLoans)
		loans.POST("/:id/review", loanHandler.ReviewLoan)
	}
}

// SetupNotificationRoutes configures notification endpoints
func SetupNotificationRoutes(router *gin.Engine, cfg config.JWTConfig, notificationHandler *handlers.NotificationHandler) {
	notifications := router.Group("/api/v1/notifications")
	notifications.Use(middleware.AuthMiddleware(cfg))
	{
		notifications.GET("", notificationHandler.ListNotifications)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}
}
