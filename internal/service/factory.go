package service

import (
	"github.com/rentwise/rentwise/internal/cache"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/domain/lease"
	"github.com/rentwise/rentwise/internal/domain/payment"
	"github.com/rentwise/rentwise/internal/domain/property"
	"github.com/rentwise/rentwise/internal/domain/user"
	"github.com/rentwise/rentwise/internal/interfaces"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Sentry *sentry.Service
	Cache  cache.Cache

	// Repositories
	PaymentRepo  payment.Repository
	UserRepo     user.Repository
	PropertyRepo property.Repository
	LeaseRepo    lease.Repository

	// Payment processor
	Gateway interfaces.PaymentGateway

	// Best effort lifecycle notifications
	Notifier NotificationDispatcher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	sentry *sentry.Service,
	cache cache.Cache,
	paymentRepo payment.Repository,
	userRepo user.Repository,
	propertyRepo property.Repository,
	leaseRepo lease.Repository,
	gateway interfaces.PaymentGateway,
	notifier NotificationDispatcher,
) ServiceParams {
	return ServiceParams{
		Logger:       logger,
		Config:       config,
		Sentry:       sentry,
		Cache:        cache,
		PaymentRepo:  paymentRepo,
		UserRepo:     userRepo,
		PropertyRepo: propertyRepo,
		LeaseRepo:    leaseRepo,
		Gateway:      gateway,
		Notifier:     notifier,
	}
}
