package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/pubsub"
	"github.com/rentwise/rentwise/internal/types"
)

// NotificationPublisher puts payment notifications on the notification topic
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, event *types.NotificationEvent) error
	Close() error
}

type notificationPublisher struct {
	pubSub pubsub.PubSub
	config *config.NotificationConfig
	logger *logger.Logger
}

func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) NotificationPublisher {
	return &notificationPublisher{
		pubSub: pubSub,
		config: &cfg.Notification,
		logger: logger,
	}
}

func (p *notificationPublisher) PublishNotification(ctx context.Context, event *types.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	messageID := event.ID
	if messageID == "" {
		messageID = watermill.NewUUID()
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set("payment_id", event.PaymentID)
	msg.Metadata.Set("event_type", event.EventType.String())
	if event.RequestID != "" {
		msg.Metadata.Set("request_id", event.RequestID)
	}

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish notification",
			"error", err,
			"event_id", event.ID,
			"event_type", event.EventType,
			"payment_id", event.PaymentID,
		)
		return err
	}

	p.logger.Debugw("published notification",
		"event_id", event.ID,
		"event_type", event.EventType,
		"payment_id", event.PaymentID,
		"topic", p.config.Topic,
	)

	return nil
}

func (p *notificationPublisher) Close() error {
	return p.pubSub.Close()
}
