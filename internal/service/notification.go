package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/domain/payment"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/notification/publisher"
	"github.com/rentwise/rentwise/internal/sentry"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/fx"
)

// NotificationDispatcher sends payment lifecycle notifications.
// Dispatch never blocks the caller and never reports failure.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, eventType types.NotificationEventType, p *payment.Payment)
	// Wait blocks until every dispatched notification has been handed off
	Wait()
}

type notificationDispatcher struct {
	publisher publisher.NotificationPublisher
	config    *config.NotificationConfig
	logger    *logger.Logger
	sentry    *sentry.Service
	wg        conc.WaitGroup
}

func NewNotificationDispatcher(
	pub publisher.NotificationPublisher,
	cfg *config.Configuration,
	logger *logger.Logger,
	sentry *sentry.Service,
) NotificationDispatcher {
	return &notificationDispatcher{
		publisher: pub,
		config:    &cfg.Notification,
		logger:    logger,
		sentry:    sentry,
	}
}

func (d *notificationDispatcher) Dispatch(ctx context.Context, eventType types.NotificationEventType, p *payment.Payment) {
	if !d.config.Enabled || p == nil {
		return
	}

	event, err := newNotificationEvent(ctx, eventType, p)
	if err != nil {
		d.logger.Errorw("failed to build notification", "error", err, "payment_id", p.ID)
		return
	}

	// the request context is cancelled as soon as the response is written
	ctx = context.WithoutCancel(ctx)

	d.wg.Go(func() {
		var catcher panics.Catcher
		catcher.Try(func() {
			if err := d.publisher.PublishNotification(ctx, event); err != nil {
				d.logger.Warnw("notification dispatch failed",
					"error", err,
					"event_type", eventType,
					"payment_id", p.ID,
				)
			}
		})

		if recovered := catcher.Recovered(); recovered != nil {
			err := ierr.WithError(recovered.AsError()).
				WithHint("Notification dispatch panicked").
				Mark(ierr.ErrSystem)
			d.sentry.CaptureException(err)
			d.logger.Errorw("notification dispatch panicked",
				"error", err,
				"event_type", eventType,
				"payment_id", p.ID,
			)
		}
	})
}

func (d *notificationDispatcher) Wait() {
	d.wg.Wait()
}

func newNotificationEvent(ctx context.Context, eventType types.NotificationEventType, p *payment.Payment) (*types.NotificationEvent, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return &types.NotificationEvent{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION),
		EventType:    eventType,
		PaymentID:    p.ID,
		RecipientIDs: []string{p.TenantID, p.LandlordID},
		RequestID:    types.GetRequestID(ctx),
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
	}, nil
}

// RegisterNotificationHooks drains in flight notifications on shutdown
func RegisterNotificationHooks(lc fx.Lifecycle, d NotificationDispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			d.Wait()
			return nil
		},
	})
}
