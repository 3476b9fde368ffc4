package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rentwise/rentwise/internal/api"
	v1 "github.com/rentwise/rentwise/internal/api/v1"
	"github.com/rentwise/rentwise/internal/cache"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/dynamodb"
	"github.com/rentwise/rentwise/internal/httpclient"
	"github.com/rentwise/rentwise/internal/integration/stripe"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/notification"
	"github.com/rentwise/rentwise/internal/pyroscope"
	repo "github.com/rentwise/rentwise/internal/repository/dynamodb"
	"github.com/rentwise/rentwise/internal/sentry"
	"github.com/rentwise/rentwise/internal/service"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/rentwise/rentwise/internal/validator"
	"go.uber.org/fx"
)

// @title Rentwise Payments API
// @version 1.0
// @description Rent payment lifecycle and Stripe reconciliation
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,
			pyroscope.NewPyroscopeService,

			// Cache
			cache.NewInMemoryCache,

			// DynamoDB
			dynamodb.NewClient,

			// Payment gateway
			stripe.NewGateway,

			// Outbound HTTP
			httpclient.NewDefaultClient,
		),
	)

	// Repositories
	opts = append(opts,
		fx.Provide(
			repo.NewPaymentRepository,
			repo.NewUserRepository,
			repo.NewPropertyRepository,
			repo.NewLeaseRepository,
		),
	)

	// Notifications
	opts = append(opts, notification.Module)

	// Services
	opts = append(opts,
		fx.Provide(
			service.NewNotificationDispatcher,
			service.NewServiceParams,
			service.NewPaymentService,
			service.NewReconciliationService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			pyroscope.RegisterHooks,
			// registered after the notification router so in-flight
			// dispatches drain before the router closes
			service.RegisterNotificationHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	paymentService service.PaymentService,
	reconciliationService service.ReconciliationService,
) api.Handlers {
	return api.Handlers{
		Payment: v1.NewPaymentHandler(paymentService, reconciliationService, logger),
		Webhook: v1.NewWebhookHandler(reconciliationService, logger),
		Health:  v1.NewHealthHandler(),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, sentrySvc *sentry.Service) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, sentrySvc)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeAWSLambdaAPI:
		startAWSLambdaAPI(r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func startAWSLambdaAPI(r *gin.Engine) {
	ginLambda := ginadapter.New(r)
	lambda.Start(ginLambda.ProxyWithContext)
}
