package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rentwise/rentwise/internal/config"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/httpclient"
	"github.com/rentwise/rentwise/internal/idempotency"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/pubsub"
	pubsubRouter "github.com/rentwise/rentwise/internal/pubsub/router"
	"github.com/rentwise/rentwise/internal/types"
)

// Handler interface for processing notification events
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.NotificationConfig
	client httpclient.Client
	logger *logger.Logger
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	client httpclient.Client,
	logger *logger.Logger,
) Handler {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Notification,
		client: client,
		logger: logger,
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"notification_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

// processMessage delivers a single notification
func (h *handler) processMessage(msg *message.Message) error {
	var event types.NotificationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal notification event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil // malformed messages are never retried
	}

	ctx := msg.Context()
	if event.RequestID != "" {
		ctx = types.SetRequestID(ctx, event.RequestID)
	}

	if h.config.Endpoint == "" {
		h.logger.WithContext(ctx).Infow("payment notification",
			"event_id", event.ID,
			"event_type", event.EventType,
			"payment_id", event.PaymentID,
			"recipients", event.RecipientIDs,
		)
		return nil
	}

	return h.deliver(ctx, &event, msg.Payload)
}

func (h *handler) deliver(ctx context.Context, event *types.NotificationEvent, body []byte) error {
	headers := map[string]string{
		"X-Notification-ID":   event.ID,
		"X-Notification-Type": event.EventType.String(),
		// redeliveries of the same event carry the same key
		"Idempotency-Key": idempotency.NewGenerator().GenerateKey(idempotency.ScopeNotification, map[string]interface{}{
			"event_id":   event.ID,
			"payment_id": event.PaymentID,
		}),
	}
	for k, v := range h.config.Headers {
		headers[k] = v
	}

	resp, err := h.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     h.config.Endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		if !shouldRetry(err) {
			h.logger.Errorw("notification rejected by endpoint, dropping",
				"error", err,
				"event_id", event.ID,
				"payment_id", event.PaymentID,
			)
			return nil
		}
		return ierr.WithError(err).
			WithHintf("Failed to deliver notification %s", event.ID).
			Mark(ierr.ErrHTTPClient)
	}

	h.logger.Infow("notification delivered",
		"event_id", event.ID,
		"event_type", event.EventType,
		"payment_id", event.PaymentID,
		"status_code", resp.StatusCode,
	)
	return nil
}

// shouldRetry reports whether a delivery failure is transient
func shouldRetry(err error) bool {
	httpErr, ok := httpclient.IsHTTPError(err)
	if !ok {
		// transport level failures such as timeouts or refused connections
		return true
	}

	switch httpErr.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
