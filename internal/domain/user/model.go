package user

import (
	"github.com/rentwise/rentwise/internal/types"
)

// User is the read only view of a platform account
type User struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Email string         `json:"email"`
	Role  types.UserRole `json:"role"`
}
