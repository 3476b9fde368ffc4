package payment

import (
	"time"

	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is a single rent payment owed by a tenant to a landlord for one period
type Payment struct {
	// Unique identifier for this payment
	ID string `json:"id"`
	// TenantID is the user who owes the payment
	TenantID string `json:"tenant_id"`
	// LandlordID is the user who receives the payment
	LandlordID string `json:"landlord_id"`
	// PropertyID is the property the payment is for
	PropertyID string `json:"property_id"`
	// LeaseID links the payment to a lease when it was created from one (optional)
	LeaseID *string `json:"lease_id,omitempty"`
	// TotalAmount is the sum of the rent, utilities and deposit components
	TotalAmount     decimal.Decimal `json:"total_amount"`
	RentAmount      decimal.Decimal `json:"rent_amount"`
	UtilitiesAmount decimal.Decimal `json:"utilities_amount"`
	DepositAmount   decimal.Decimal `json:"deposit_amount"`
	// Currency is the lowercase ISO code. Only usd is supported.
	Currency string `json:"currency"`
	// Period is the calendar month the payment covers, YYYY-MM
	Period      string `json:"period"`
	Description string `json:"description,omitempty"`
	// StripePaymentIntentID is set once a charge attempt has been opened at the processor
	StripePaymentIntentID *string `json:"stripe_payment_intent_id"`
	// StripeChargeID is set once the charge has settled
	StripeChargeID *string             `json:"stripe_charge_id"`
	Status         types.PaymentStatus `json:"status"`
	// IsFirstPayment is true when no other active payment existed for the tenant and property at creation
	IsFirstPayment bool       `json:"is_first_payment"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CreatedBy      string     `json:"created_by,omitempty"`
}

// StatusUpdate carries a status transition and the fields stamped alongside it
type StatusUpdate struct {
	Status types.PaymentStatus
	// ExpectedStatus makes the write conditional on the stored status. Empty means unconditional.
	ExpectedStatus types.PaymentStatus
	StripeChargeID *string
	FailureReason  *string
	PaidAt         *time.Time
	CancelledAt    *time.Time
}

// Validate validates the payment before it is persisted
func (p *Payment) Validate() error {
	if p.TenantID == "" || p.LandlordID == "" || p.PropertyID == "" {
		return ierr.NewError("missing payment parties").
			WithHint("Tenant, landlord and property are required").
			Mark(ierr.ErrValidation)
	}

	if err := types.ValidatePeriod(p.Period); err != nil {
		return err
	}

	for name, amount := range map[string]decimal.Decimal{
		"rent_amount":      p.RentAmount,
		"utilities_amount": p.UtilitiesAmount,
		"deposit_amount":   p.DepositAmount,
	} {
		if err := types.ValidateAmount(name, amount); err != nil {
			return err
		}
	}

	if err := types.ValidateTotalAmount(p.TotalAmount); err != nil {
		return err
	}

	if !p.TotalAmount.Equal(p.ComponentSum()) {
		return ierr.NewError("total amount mismatch").
			WithHint("Total amount must equal the sum of rent, utilities and deposit").
			Mark(ierr.ErrValidation)
	}

	if p.Currency != types.DefaultCurrency {
		return ierr.NewError("unsupported currency").
			WithHintf("Only %s is supported", types.DefaultCurrency).
			Mark(ierr.ErrValidation)
	}

	return p.Status.Validate()
}

// ComponentSum returns rent + utilities + deposit
func (p *Payment) ComponentSum() decimal.Decimal {
	return p.RentAmount.Add(p.UtilitiesAmount).Add(p.DepositAmount)
}

// IsParty reports whether the user is the tenant or the landlord on this payment
func (p *Payment) IsParty(userID string) bool {
	return userID != "" && (userID == p.TenantID || userID == p.LandlordID)
}

// HasPaymentIntent reports whether a processor charge attempt is linked
func (p *Payment) HasPaymentIntent() bool {
	return p.StripePaymentIntentID != nil && *p.StripePaymentIntentID != ""
}

// Apply copies a status update onto the in memory record
func (p *Payment) Apply(u *StatusUpdate, now time.Time) {
	p.Status = u.Status
	if u.StripeChargeID != nil {
		p.StripeChargeID = u.StripeChargeID
	}
	if u.FailureReason != nil {
		p.FailureReason = u.FailureReason
	}
	if u.PaidAt != nil {
		p.PaidAt = u.PaidAt
	}
	if u.CancelledAt != nil {
		p.CancelledAt = u.CancelledAt
	}
	p.UpdatedAt = now
}
