package user

import "context"

// Repository looks users up by ID. Get fails with ErrNotFound when absent.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
}
