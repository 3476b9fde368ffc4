package stripe

import (
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/shopspring/decimal"
)

var centsPerUnit = decimal.NewFromInt(100)

// ToCents converts a major unit amount to the smallest currency unit,
// rounding half away from zero. Amounts that do not fit in int64 are rejected.
func ToCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(centsPerUnit).Round(0)
	if !cents.BigInt().IsInt64() {
		return 0, ierr.NewError("amount out of range").
			WithHint("Payment amount is too large").
			WithReportableDetails(map[string]any{
				"amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return cents.IntPart(), nil
}
