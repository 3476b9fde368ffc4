package property

import "context"

// Property is the read only view of a rental listing
type Property struct {
	ID         string `json:"id"`
	LandlordID string `json:"landlord_id"`
	Title      string `json:"title"`
	Address    string `json:"address"`
}

// Repository looks properties up by ID. Get fails with ErrNotFound when absent.
type Repository interface {
	Get(ctx context.Context, id string) (*Property, error)
}
