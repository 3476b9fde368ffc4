package config

import "github.com/rentwise/rentwise/internal/types"

// NotificationConfig controls payment lifecycle notifications
type NotificationConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Topic   string           `mapstructure:"topic" default:"payment_notifications"`
	PubSub  types.PubSubType `mapstructure:"pubsub" default:"memory"`
	// Endpoint receives delivered notifications. Empty means log only.
	Endpoint   string            `mapstructure:"endpoint"`
	Headers    map[string]string `mapstructure:"headers"`
	MaxRetries int               `mapstructure:"max_retries" default:"3"`
}
