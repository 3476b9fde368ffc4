package notification

import (
	"context"

	"github.com/rentwise/rentwise/internal/config"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/notification/handler"
	"github.com/rentwise/rentwise/internal/notification/publisher"
	"github.com/rentwise/rentwise/internal/pubsub"
	"github.com/rentwise/rentwise/internal/pubsub/kafka"
	"github.com/rentwise/rentwise/internal/pubsub/memory"
	pubsubRouter "github.com/rentwise/rentwise/internal/pubsub/router"
	"github.com/rentwise/rentwise/internal/types"
	"go.uber.org/fx"
)

// Module provides all notification-related dependencies
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		pubsubRouter.NewRouter,
	),

	fx.Provide(
		publisher.NewPublisher,
		handler.NewHandler,
	),

	fx.Invoke(registerRouterHooks),
)

func providePubSub(
	cfg *config.Configuration,
	logger *logger.Logger,
) (pubsub.PubSub, error) {
	switch cfg.Notification.PubSub {
	case types.MemoryPubSub:
		return memory.NewPubSub(logger), nil
	case types.KafkaPubSub:
		return kafka.NewPubSub(cfg, logger)
	}
	return nil, ierr.NewErrorf("unsupported pubsub type %q", cfg.Notification.PubSub).
		WithHint("notification.pubsub must be memory or kafka").
		Mark(ierr.ErrValidation)
}

// registerRouterHooks subscribes the delivery handler and runs the router
// for the lifetime of the application.
func registerRouterHooks(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *pubsubRouter.Router,
	h handler.Handler,
	pub publisher.NotificationPublisher,
	logger *logger.Logger,
) {
	if !cfg.Notification.Enabled {
		logger.Info("notifications disabled, router not started")
		return
	}

	h.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Errorw("notification router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := router.Close(); err != nil {
				logger.Errorw("failed to close notification router", "error", err)
			}
			return pub.Close()
		},
	})
}
