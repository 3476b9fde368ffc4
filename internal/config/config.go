package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig   `mapstructure:"deployment" validate:"required"`
	Server       ServerConfig       `mapstructure:"server" validate:"required"`
	Logging      LoggingConfig      `mapstructure:"logging" validate:"required"`
	Auth         AuthConfig         `mapstructure:"auth" validate:"required"`
	Stripe       StripeConfig       `mapstructure:"stripe" validate:"required"`
	DynamoDB     DynamoDBConfig     `mapstructure:"dynamodb" validate:"required"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Notification NotificationConfig `mapstructure:"notification"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
	Pyroscope    PyroscopeConfig    `mapstructure:"pyroscope"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type AuthConfig struct {
	// Secret is the HMAC key used to verify bearer tokens issued by the auth service
	Secret string `mapstructure:"secret" validate:"required"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
}

type RateLimitConfig struct {
	// SyncPerMinute bounds manual sync calls per user
	SyncPerMinute int `mapstructure:"sync_per_minute" default:"10"`
	SyncBurst     int `mapstructure:"sync_burst" default:"3"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" default:"1.0"`
}

type PyroscopeConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	ServerAddress   string            `mapstructure:"server_address"`
	ApplicationName string            `mapstructure:"application_name" default:"rentwise"`
	BasicAuthUser   string            `mapstructure:"basic_auth_user"`
	BasicAuthPass   string            `mapstructure:"basic_auth_password"`
	Tags            map[string]string `mapstructure:"tags"`
}

func NewConfig() (*Configuration, error) {
	// a missing .env is expected outside local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/rentwise")

	v.SetEnvPrefix("RENTWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override values
// that are absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("auth.secret", "")
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.currency", types.DefaultCurrency)
	v.SetDefault("dynamodb.region", "us-east-1")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("dynamodb.payment_table_name", "payments")
	v.SetDefault("dynamodb.user_table_name", "users")
	v.SetDefault("dynamodb.property_table_name", "properties")
	v.SetDefault("dynamodb.lease_table_name", "leases")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.topic", "payment_notifications")
	v.SetDefault("notification.pubsub", types.MemoryPubSub)
	v.SetDefault("notification.endpoint", "")
	v.SetDefault("notification.max_retries", 3)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.consumer_group", "rentwise-notifications")
	v.SetDefault("kafka.client_id", "rentwise")
	v.SetDefault("rate_limit.sync_per_minute", 10)
	v.SetDefault("rate_limit.sync_burst", 3)
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("pyroscope.enabled", false)
	v.SetDefault("pyroscope.application_name", "rentwise")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Auth:       AuthConfig{Secret: "local-secret"},
		Stripe:     StripeConfig{Currency: types.DefaultCurrency},
		DynamoDB: DynamoDBConfig{
			Region:            "us-east-1",
			PaymentTableName:  "payments",
			UserTableName:     "users",
			PropertyTableName: "properties",
			LeaseTableName:    "leases",
		},
		Cache:      CacheConfig{Enabled: true},
		Notification: NotificationConfig{
			Enabled:    true,
			Topic:      "payment_notifications",
			PubSub:     types.MemoryPubSub,
			MaxRetries: 3,
		},
		RateLimit: RateLimitConfig{SyncPerMinute: 10, SyncBurst: 3},
	}
}
