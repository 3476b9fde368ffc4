package testutil

import (
	"context"
	"sync"

	"github.com/rentwise/rentwise/internal/types"
)

// InMemoryNotificationPublisher records published notifications
type InMemoryNotificationPublisher struct {
	mu     sync.Mutex
	events []*types.NotificationEvent
	// Err is returned from PublishNotification when set
	Err error
	// Panic makes PublishNotification panic when true
	Panic bool
}

func NewInMemoryNotificationPublisher() *InMemoryNotificationPublisher {
	return &InMemoryNotificationPublisher{}
}

func (p *InMemoryNotificationPublisher) PublishNotification(_ context.Context, event *types.NotificationEvent) error {
	if p.Panic {
		panic("notification publisher exploded")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *InMemoryNotificationPublisher) Close() error {
	return nil
}

// Events returns the published notifications
func (p *InMemoryNotificationPublisher) Events() []*types.NotificationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*types.NotificationEvent(nil), p.events...)
}

// EventTypes returns the types of the published notifications in order
func (p *InMemoryNotificationPublisher) EventTypes() []types.NotificationEventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.NotificationEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}
