package testutil

import (
	"context"

	"github.com/rentwise/rentwise/internal/domain/lease"
	ierr "github.com/rentwise/rentwise/internal/errors"
)

// InMemoryLeaseStore implements lease.Repository
type InMemoryLeaseStore struct {
	*InMemoryStore[*lease.Lease]
}

func NewInMemoryLeaseStore() *InMemoryLeaseStore {
	return &InMemoryLeaseStore{
		InMemoryStore: NewInMemoryStore[*lease.Lease](),
	}
}

func (s *InMemoryLeaseStore) Get(ctx context.Context, id string) (*lease.Lease, error) {
	l, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Lease %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return l, nil
}

func (s *InMemoryLeaseStore) Add(l *lease.Lease) {
	_ = s.InMemoryStore.Create(context.Background(), l.ID, l)
}
