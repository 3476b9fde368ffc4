package interfaces

import (
	"context"

	"github.com/rentwise/rentwise/internal/types"
)

// PaymentGateway is the processor boundary used by the payment services.
// Implementations hold no persistent state.
type PaymentGateway interface {
	// CreatePaymentIntent opens a new charge attempt. Failures are marked ErrSystem.
	CreatePaymentIntent(ctx context.Context, req *types.CreatePaymentIntentRequest) (*types.PaymentIntent, error)
	// GetPaymentIntent fetches the live state of a charge attempt.
	// Unknown intents are marked ErrNotFound, other failures ErrSystem.
	GetPaymentIntent(ctx context.Context, intentID string) (*types.PaymentIntent, error)
	// ParseWebhookEvent verifies the signature over the exact payload bytes.
	// Verification failures are marked ErrWebhookVerification.
	ParseWebhookEvent(payload []byte, signature string) (*types.GatewayEvent, error)
}
