package lease

import (
	"context"

	"github.com/shopspring/decimal"
)

// Lease binds a tenant to a property at a monthly rent
type Lease struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	LandlordID  string          `json:"landlord_id"`
	PropertyID  string          `json:"property_id"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
	Status      string          `json:"status"`
}

// Repository looks leases up by ID. Get fails with ErrNotFound when absent.
type Repository interface {
	Get(ctx context.Context, id string) (*Lease, error)
}
