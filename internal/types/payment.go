package types

import (
	"regexp"
	"strconv"

	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the local lifecycle status of a rent payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHintf("Payment status %q is not supported", string(s)).
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether no further transition may leave this status.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// IsActive reports whether the payment counts towards the per period uniqueness
// and first payment rules. Only cancelled payments are ignored.
func (s PaymentStatus) IsActive() bool {
	return s != PaymentStatusCancelled
}

// UserRole is the verified role of an authenticated caller
type UserRole string

const (
	UserRoleTenant   UserRole = "tenant"
	UserRoleLandlord UserRole = "landlord"
	UserRoleAdmin    UserRole = "admin"
)

func (r UserRole) Validate() error {
	allowed := []UserRole{UserRoleTenant, UserRoleLandlord, UserRoleAdmin}
	if !lo.Contains(allowed, r) {
		return ierr.NewError("invalid user role").
			WithHintf("Role %q is not supported", string(r)).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DefaultCurrency is the single currency supported for rent payments
const DefaultCurrency = "usd"

const (
	// AmountScale is the number of decimal places a usd amount may carry
	AmountScale = 2
	// MaxChargeCents is the largest single charge the payment processor accepts
	MaxChargeCents int64 = 99_999_999
)

// MaxChargeAmount is MaxChargeCents in major units
var MaxChargeAmount = decimal.New(MaxChargeCents, -AmountScale)

// ValidateAmount rejects negative amounts and amounts with sub-cent precision.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ierr.NewError("negative amount").
			WithHintf("%s cannot be negative", field).
			WithReportableDetails(map[string]any{
				"field":  field,
				"amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if amount.Exponent() < -AmountScale && !amount.Equal(amount.Round(AmountScale)) {
		return ierr.NewError("amount has too many decimal places").
			WithHintf("%s must have at most %d decimal places", field, AmountScale).
			WithReportableDetails(map[string]any{
				"field":  field,
				"amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidateTotalAmount checks a charge total is positive and within the processor limit.
func ValidateTotalAmount(total decimal.Decimal) error {
	if !total.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("At least one of rent, utilities or deposit amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if total.GreaterThan(MaxChargeAmount) {
		return ierr.NewError("amount exceeds maximum charge").
			WithHintf("Total amount cannot exceed %s", MaxChargeAmount.StringFixed(AmountScale)).
			WithReportableDetails(map[string]any{
				"amount": total.String(),
				"max":    MaxChargeAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

var periodRegex = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidatePeriod checks a billing period token in YYYY-MM form.
func ValidatePeriod(period string) error {
	if !periodRegex.MatchString(period) {
		return ierr.NewError("invalid period format").
			WithHint("Period must be in YYYY-MM format").
			WithReportableDetails(map[string]any{
				"period": period,
			}).
			Mark(ierr.ErrValidation)
	}

	month, _ := strconv.Atoi(period[5:])
	if month < 1 || month > 12 {
		return ierr.NewError("invalid period month").
			WithHint("Period month must be between 01 and 12").
			WithReportableDetails(map[string]any{
				"period": period,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
