package types

import (
	"github.com/shopspring/decimal"
)

// PaymentIntentStatus mirrors the processor side state of a charge attempt
type PaymentIntentStatus string

const (
	PaymentIntentStatusRequiresPaymentMethod PaymentIntentStatus = "requires_payment_method"
	PaymentIntentStatusRequiresConfirmation  PaymentIntentStatus = "requires_confirmation"
	PaymentIntentStatusRequiresAction        PaymentIntentStatus = "requires_action"
	PaymentIntentStatusProcessing            PaymentIntentStatus = "processing"
	PaymentIntentStatusRequiresCapture       PaymentIntentStatus = "requires_capture"
	PaymentIntentStatusCanceled              PaymentIntentStatus = "canceled"
	PaymentIntentStatusSucceeded             PaymentIntentStatus = "succeeded"
)

func (s PaymentIntentStatus) String() string {
	return string(s)
}

// Webhook event types consumed by reconciliation
const (
	WebhookEventPaymentIntentSucceeded     = "payment_intent.succeeded"
	WebhookEventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	WebhookEventPaymentIntentCanceled      = "payment_intent.canceled"
)

// Metadata keys attached to every payment intent
const (
	MetadataKeyPaymentID  = "payment_id"
	MetadataKeyTenantID   = "tenant_id"
	MetadataKeyLandlordID = "landlord_id"
	MetadataKeyPropertyID = "property_id"
	MetadataKeyLeaseID    = "lease_id"
	MetadataKeyPeriod     = "period"
)

// CreatePaymentIntentRequest is the gateway agnostic request to open a charge attempt
type CreatePaymentIntentRequest struct {
	PaymentID      string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// PaymentIntent is the gateway agnostic view of a processor charge attempt
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       PaymentIntentStatus
	// AmountCents is the amount in the smallest currency unit
	AmountCents    int64
	Currency       string
	LatestChargeID string
	Metadata       map[string]string
	// FailureMessage is the processor's last payment error, if any
	FailureMessage string
}

// PaymentID returns the local payment ID linked through metadata
func (p *PaymentIntent) PaymentID() string {
	if p == nil || p.Metadata == nil {
		return ""
	}
	return p.Metadata[MetadataKeyPaymentID]
}

// GatewayEvent is a verified webhook event
type GatewayEvent struct {
	ID     string
	Type   string
	Intent *PaymentIntent
}
