package testutil

import (
	"context"

	"github.com/rentwise/rentwise/internal/types"
)

// SetupContext returns a context carrying a request ID and the given caller
func SetupContext(userID string, role types.UserRole) context.Context {
	ctx := context.Background()
	ctx = types.SetRequestID(ctx, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST))
	ctx = types.SetUserID(ctx, userID)
	ctx = types.SetUserRole(ctx, role)
	return ctx
}
