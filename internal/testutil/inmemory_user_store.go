package testutil

import (
	"context"
	"sync/atomic"

	"github.com/rentwise/rentwise/internal/domain/user"
	ierr "github.com/rentwise/rentwise/internal/errors"
)

// InMemoryUserStore implements user.Repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.User]
	// gets counts lookups so tests can observe caching
	gets atomic.Int64
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore[*user.User](),
	}
}

func (s *InMemoryUserStore) Get(ctx context.Context, id string) (*user.User, error) {
	s.gets.Add(1)
	u, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("User %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return u, nil
}

// Add seeds a user
func (s *InMemoryUserStore) Add(u *user.User) {
	_ = s.InMemoryStore.Create(context.Background(), u.ID, u)
}

// GetCount returns how many lookups reached the store
func (s *InMemoryUserStore) GetCount() int {
	return int(s.gets.Load())
}
