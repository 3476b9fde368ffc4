package testutil

import (
	"context"
	"time"

	"github.com/rentwise/rentwise/internal/domain/payment"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository.
// Records are copied on the way in and out, as a remote store would.
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

// NewInMemoryPaymentStore creates a new in-memory payment repository
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	c := *p
	return &c
}

func newestFirst(a, b *payment.Payment) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

func (m *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil || p.ID == "" {
		return ierr.NewError("payment ID cannot be empty").
			WithHint("Payment ID cannot be empty").
			Mark(ierr.ErrValidation)
	}
	return m.InMemoryStore.Create(ctx, p.ID, copyPayment(p))
}

func (m *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Payment %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(p), nil
}

func (m *InMemoryPaymentStore) list(ctx context.Context, filterFn FilterFunc[*payment.Payment]) []*payment.Payment {
	return lo.Map(m.List(ctx, filterFn, newestFirst), func(p *payment.Payment, _ int) *payment.Payment {
		return copyPayment(p)
	})
}

func (m *InMemoryPaymentStore) ListByTenant(ctx context.Context, tenantID string) ([]*payment.Payment, error) {
	return m.list(ctx, func(p *payment.Payment) bool {
		return p.TenantID == tenantID
	}), nil
}

func (m *InMemoryPaymentStore) ListByLandlord(ctx context.Context, landlordID string) ([]*payment.Payment, error) {
	return m.list(ctx, func(p *payment.Payment) bool {
		return p.LandlordID == landlordID
	}), nil
}

func (m *InMemoryPaymentStore) ListByTenantAndProperty(ctx context.Context, tenantID, propertyID string) ([]*payment.Payment, error) {
	return m.list(ctx, func(p *payment.Payment) bool {
		return p.TenantID == tenantID && p.PropertyID == propertyID
	}), nil
}

func (m *InMemoryPaymentStore) FindActiveForPeriod(ctx context.Context, tenantID, propertyID, period string) (*payment.Payment, error) {
	matches := m.list(ctx, func(p *payment.Payment) bool {
		return p.TenantID == tenantID &&
			p.PropertyID == propertyID &&
			p.Period == period &&
			p.Status.IsActive()
	})
	if len(matches) == 0 {
		return nil, ierr.NewError("no active payment for period").
			WithHint("Payment not found").
			Mark(ierr.ErrNotFound)
	}
	return matches[0], nil
}

func (m *InMemoryPaymentStore) UpdateStatus(ctx context.Context, id string, update *payment.StatusUpdate) error {
	return m.Mutate(ctx, id, func(p *payment.Payment) error {
		if update.ExpectedStatus != "" && p.Status != update.ExpectedStatus {
			return ierr.NewErrorf("payment %s is %s, expected %s", id, p.Status, update.ExpectedStatus).
				WithHint("Payment was modified concurrently").
				Mark(ierr.ErrVersionConflict)
		}
		p.Apply(update, time.Now().UTC())
		return nil
	})
}

func (m *InMemoryPaymentStore) SetPaymentIntent(ctx context.Context, id string, intentID string) error {
	return m.Mutate(ctx, id, func(p *payment.Payment) error {
		p.StripePaymentIntentID = lo.ToPtr(intentID)
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}
