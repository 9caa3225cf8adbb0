package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chamalink/backend/internal/config"
	"github.com/chamalink/backend/internal/database"
	"github.com/chamalink/backend/internal/handlers"
	"github.com/chamalink/backend/internal/jobs"
	"github.com/chamalink/backend/internal/middleware"
	"github.com/chamalink/backend/internal/mpesa"
	"github.com/chamalink/backend/internal/queue"
	"github.com/chamalink/backend/internal/routes"
	"github.com/chamalink/backend/internal/services/chama"
	"github.com/chamalink/backend/internal/services/loan"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.LoadConfig()

	// Initialize database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	redisQueue := queue.NewRedisQueue(redisClient)

	// Initialize services
	notificationService := notification.NewService(db)
	chamaService := chama.NewService(db, notificationService)
	loanService := loan.NewService(db, notificationService)
	paymentService := mpesa.NewService(db, cfg.Mpesa, chamaService, loanService, notificationService)

	if !cfg.Mpesa.LiveMode() {
		log.Println("M-Pesa credentials not fully configured, running in development mode")
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg.JWT)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewMpesaWebhookHandler(paymentService)
	chamaHandler := handlers.NewChamaHandler(chamaService)
	loanHandler := handlers.NewLoanHandler(loanService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Initialize Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Payment initiation is rate limited per client IP
	paymentLimiter := middleware.NewRateLimiter(1, 5)

	// Setup routes
	routes.SetupAuthRoutes(router, authHandler)
	routes.SetupPaymentRoutes(router, cfg.JWT, paymentHandler, paymentLimiter)
	routes.SetupWebhookRoutes(router, webhookHandler)
	routes.SetupChamaRoutes(router, cfg.JWT, chamaHandler, loanHandler, paymentHandler)
	routes.SetupLoanRoutes(router, cfg.JWT, loanHandler)
	routes.SetupNotificationRoutes(router, cfg.JWT, notificationHandler)

	// Schedule the contribution reminder sweep and start its worker pool
	reminderJob := jobs.NewContributionReminderJob(db, redisQueue, notificationService)
	reminderJob.Schedule()
	reminderWorker := queue.NewWorker(redisQueue, queue.JobTypeContributionReminder, reminderJob.HandleReminder, 2)
	reminderWorker.Start()

	// Start server
	srv := startServer(router, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	reminderJob.Stop()
	reminderWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, port string) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", port)
	return srv
}
