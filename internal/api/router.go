package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/rentwise/rentwise/internal/api/v1"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/rest/middleware"
	"github.com/rentwise/rentwise/internal/sentry"
	"github.com/rentwise/rentwise/internal/types"
)

type Handlers struct {
	Payment *v1.PaymentHandler
	Webhook *v1.WebhookHandler
	Health  *v1.HealthHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, sentrySvc *sentry.Service) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.SentryMiddleware(cfg),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.PyroscopeMiddleware(cfg),
		middleware.ErrorHandler(logger, sentrySvc),
	)

	router.GET("/health", handlers.Health.Health)

	// one limiter shared by both route trees
	syncLimiter := middleware.SyncRateLimitMiddleware(cfg)
	auth := middleware.AuthenticateMiddleware(cfg, logger)

	registerPaymentRoutes(router.Group("/v1"), handlers, auth, syncLimiter)
	// unversioned paths kept for existing clients
	registerPaymentRoutes(router.Group(""), handlers, auth, syncLimiter)

	return router
}

func registerPaymentRoutes(router *gin.RouterGroup, handlers Handlers, auth, syncLimiter gin.HandlerFunc) {
	payments := router.Group("/payments")

	// the processor callback is unauthenticated and reads the raw body
	payments.POST("/webhook", handlers.Webhook.HandleStripeWebhook)

	private := payments.Group("", auth, middleware.SentryScopeMiddleware)
	landlordOnly := middleware.RequireRole(types.UserRoleLandlord, types.UserRoleAdmin)
	{
		private.POST("/create", handlers.Payment.CreatePayment)
		private.POST("/pay/:id", handlers.Payment.InitiateCharge)
		private.POST("/create-checkout-session", handlers.Payment.CreateCheckoutSession)
		private.POST("/sync/:id", syncLimiter, handlers.Payment.SyncPayment)
		private.GET("/tenant", handlers.Payment.ListTenantPayments)
		private.GET("/landlord", landlordOnly, handlers.Payment.ListLandlordPayments)
		private.GET("/:id", handlers.Payment.GetPayment)
		private.DELETE("/:id", landlordOnly, handlers.Payment.CancelPayment)
	}
}
