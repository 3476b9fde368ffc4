package payment

import (
	"context"
)

// Repository defines the interface for payment persistence.
// It holds no business rules; lists are ordered newest first.
type Repository interface {
	// Create fails with ErrAlreadyExists if the ID is taken
	Create(ctx context.Context, payment *Payment) error
	// Get fails with ErrNotFound if the payment does not exist
	Get(ctx context.Context, id string) (*Payment, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Payment, error)
	ListByLandlord(ctx context.Context, landlordID string) ([]*Payment, error)
	// ListByTenantAndProperty returns every payment of the tenant for the property
	ListByTenantAndProperty(ctx context.Context, tenantID, propertyID string) ([]*Payment, error)
	// FindActiveForPeriod returns the non cancelled payment for the triple or ErrNotFound
	FindActiveForPeriod(ctx context.Context, tenantID, propertyID, period string) (*Payment, error)
	// UpdateStatus fails with ErrVersionConflict when ExpectedStatus is set and does not match
	UpdateStatus(ctx context.Context, id string, update *StatusUpdate) error
	SetPaymentIntent(ctx context.Context, id string, intentID string) error
}
