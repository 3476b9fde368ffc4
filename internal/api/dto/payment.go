package dto

import (
	"context"
	"time"

	"github.com/rentwise/rentwise/internal/domain/payment"
	"github.com/rentwise/rentwise/internal/domain/property"
	"github.com/rentwise/rentwise/internal/domain/user"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/rentwise/rentwise/internal/validator"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest represents a request to create a rent payment
type CreatePaymentRequest struct {
	TenantID        string           `json:"tenant_id" validate:"required"`
	PropertyID      string           `json:"property_id" validate:"required"`
	LeaseID         *string          `json:"lease_id,omitempty"`
	Period          string           `json:"period" validate:"required"`
	RentAmount      *decimal.Decimal `json:"rent_amount,omitempty"`
	UtilitiesAmount *decimal.Decimal `json:"utilities_amount,omitempty"`
	DepositAmount   *decimal.Decimal `json:"deposit_amount,omitempty"`
	Description     string           `json:"description,omitempty"`
}

func (r *CreatePaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if err := types.ValidatePeriod(r.Period); err != nil {
		return err
	}

	rent, utilities, deposit := r.Amounts()
	for name, amount := range map[string]decimal.Decimal{
		"rent_amount":      rent,
		"utilities_amount": utilities,
		"deposit_amount":   deposit,
	} {
		if err := types.ValidateAmount(name, amount); err != nil {
			return err
		}
	}

	return types.ValidateTotalAmount(rent.Add(utilities).Add(deposit))
}

// Amounts returns the rent, utilities and deposit amounts with absent values as zero
func (r *CreatePaymentRequest) Amounts() (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	return valueOrZero(r.RentAmount), valueOrZero(r.UtilitiesAmount), valueOrZero(r.DepositAmount)
}

func (r *CreatePaymentRequest) HasDeposit() bool {
	return r.DepositAmount != nil && r.DepositAmount.IsPositive()
}

// ToPayment builds a pending payment. The landlord comes from the property record.
func (r *CreatePaymentRequest) ToPayment(ctx context.Context, landlordID string) *payment.Payment {
	rent, utilities, deposit := r.Amounts()
	now := time.Now().UTC()

	return &payment.Payment{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		TenantID:        r.TenantID,
		LandlordID:      landlordID,
		PropertyID:      r.PropertyID,
		LeaseID:         r.LeaseID,
		TotalAmount:     rent.Add(utilities).Add(deposit),
		RentAmount:      rent,
		UtilitiesAmount: utilities,
		DepositAmount:   deposit,
		Currency:        types.DefaultCurrency,
		Period:          r.Period,
		Description:     r.Description,
		Status:          types.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       types.GetUserID(ctx),
	}
}

// CreateLeasePaymentRequest is the older lease keyed request shape.
// Deprecated: use CreatePaymentRequest.
type CreateLeasePaymentRequest struct {
	LeaseID     string          `json:"lease_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Period      string          `json:"period" validate:"required"`
	Description string          `json:"description,omitempty"`
}

func (r *CreateLeasePaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateAmount("amount", r.Amount); err != nil {
		return err
	}
	if err := types.ValidateTotalAmount(r.Amount); err != nil {
		return err
	}
	return types.ValidatePeriod(r.Period)
}

// CreatePaymentInput accepts both create shapes on one route.
// A request carrying lease_id and amount but no property_id is the lease shape.
type CreatePaymentInput struct {
	CreatePaymentRequest
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

func (in *CreatePaymentInput) IsLeaseShape() bool {
	return in.PropertyID == "" && in.LeaseID != nil && *in.LeaseID != "" && in.Amount != nil
}

func (in *CreatePaymentInput) ToLeaseRequest() *CreateLeasePaymentRequest {
	return &CreateLeasePaymentRequest{
		LeaseID:     *in.LeaseID,
		Amount:      *in.Amount,
		Period:      in.Period,
		Description: in.Description,
	}
}

// InitiateChargeRequest is the body of the checkout session route
type InitiateChargeRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

func (r *InitiateChargeRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// InitiateChargeResponse carries what the client needs to confirm the charge
type InitiateChargeResponse struct {
	PaymentID       string          `json:"payment_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// SyncPaymentResponse reports the outcome of a manual reconciliation
type SyncPaymentResponse struct {
	Synced       bool                      `json:"synced"`
	Status       types.PaymentStatus       `json:"status"`
	StripeStatus types.PaymentIntentStatus `json:"stripe_status,omitempty"`
	Message      string                    `json:"message,omitempty"`
}

// PartySummary is the display data of a tenant or landlord
type PartySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// PropertySummary is the display data of a property
type PropertySummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Address string `json:"address,omitempty"`
}

// PaymentResponse is a payment optionally enriched with party and property details
type PaymentResponse struct {
	*payment.Payment

	Tenant   *PartySummary    `json:"tenant,omitempty"`
	Landlord *PartySummary    `json:"landlord,omitempty"`
	Property *PropertySummary `json:"property,omitempty"`
}

// NewPaymentResponse creates a new payment response from a payment
func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{Payment: p}
}

func NewPartySummary(u *user.User) *PartySummary {
	if u == nil {
		return nil
	}
	return &PartySummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func NewPropertySummary(p *property.Property) *PropertySummary {
	if p == nil {
		return nil
	}
	return &PropertySummary{ID: p.ID, Title: p.Title, Address: p.Address}
}

// ListPaymentsResponse represents a list of payments, newest first
type ListPaymentsResponse struct {
	Items []*PaymentResponse `json:"items"`
	Total int                `json:"total"`
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
