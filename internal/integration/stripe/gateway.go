package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rentwise/rentwise/internal/config"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/interfaces"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/types"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Gateway implements interfaces.PaymentGateway on top of the Stripe PaymentIntents API
type Gateway struct {
	client        *stripeapi.Client
	webhookSecret string
	logger        *logger.Logger
}

// NewGateway creates a Stripe backed payment gateway
func NewGateway(cfg *config.Configuration, logger *logger.Logger) interfaces.PaymentGateway {
	if cfg.Stripe.SecretKey == "" {
		logger.Warnw("stripe secret key is not configured, charge creation will fail")
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warnw("stripe webhook secret is not configured, every webhook will be rejected")
	}

	return newGateway(stripeapi.NewClient(cfg.Stripe.SecretKey, nil), cfg.Stripe.WebhookSecret, logger)
}

func newGateway(client *stripeapi.Client, webhookSecret string, logger *logger.Logger) *Gateway {
	return &Gateway{
		client:        client,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreatePaymentIntent creates a Stripe PaymentIntent sized in the smallest currency unit
func (g *Gateway) CreatePaymentIntent(ctx context.Context, req *types.CreatePaymentIntentRequest) (*types.PaymentIntent, error) {
	amountCents, err := ToCents(req.Amount)
	if err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, ierr.NewError("payment intent amount must be positive").
			WithHint("Payment amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"payment_id": req.PaymentID,
				"amount":     req.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if amountCents > types.MaxChargeCents {
		return nil, ierr.NewError("payment intent amount exceeds maximum").
			WithHintf("Payment amount cannot exceed %s", types.MaxChargeAmount.StringFixed(types.AmountScale)).
			WithReportableDetails(map[string]any{
				"payment_id": req.PaymentID,
				"amount":     req.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	params := &stripeapi.PaymentIntentCreateParams{
		Amount:   stripeapi.Int64(amountCents),
		Currency: stripeapi.String(req.Currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
		Metadata: req.Metadata,
	}
	if req.Description != "" {
		params.Description = stripeapi.String(req.Description)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	g.logger.Infow("creating stripe payment intent",
		"payment_id", req.PaymentID,
		"amount_cents", amountCents,
		"currency", req.Currency,
	)

	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		g.logger.Errorw("failed to create stripe payment intent",
			"error", err,
			"payment_id", req.PaymentID,
			"amount", req.Amount.String(),
		)
		return nil, mapStripeError(err, "failed to create payment intent")
	}

	g.logger.Infow("created stripe payment intent",
		"payment_id", req.PaymentID,
		"payment_intent_id", pi.ID,
		"status", pi.Status,
	)

	return toPaymentIntent(pi), nil
}

// GetPaymentIntent retrieves the live state of a PaymentIntent
func (g *Gateway) GetPaymentIntent(ctx context.Context, intentID string) (*types.PaymentIntent, error) {
	pi, err := g.client.V1PaymentIntents.Retrieve(ctx, intentID, &stripeapi.PaymentIntentRetrieveParams{})
	if err != nil {
		g.logger.Errorw("failed to get stripe payment intent",
			"error", err,
			"payment_intent_id", intentID,
		)
		return nil, mapStripeError(err, "failed to retrieve payment intent")
	}
	return toPaymentIntent(pi), nil
}

// ParseWebhookEvent verifies the Stripe-Signature header against the raw payload
// and decodes payment_intent events.
func (g *Gateway) ParseWebhookEvent(payload []byte, signature string) (*types.GatewayEvent, error) {
	if g.webhookSecret == "" {
		return nil, ierr.NewError("webhook secret not configured").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrWebhookVerification)
	}

	// api version drift between the account and the library must not drop events
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, options)
	if err != nil {
		g.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrWebhookVerification)
	}

	out := &types.GatewayEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if event.Data != nil && len(event.Data.Raw) > 0 && isPaymentIntentEvent(out.Type) {
		var pi stripeapi.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			g.logger.Errorw("failed to decode payment intent from webhook",
				"error", err,
				"event_id", event.ID,
				"event_type", event.Type,
			)
			return nil, ierr.WithError(err).
				WithHint("Invalid webhook payload").
				Mark(ierr.ErrWebhookVerification)
		}
		out.Intent = toPaymentIntent(&pi)
	}

	return out, nil
}

func isPaymentIntentEvent(eventType string) bool {
	switch eventType {
	case types.WebhookEventPaymentIntentSucceeded,
		types.WebhookEventPaymentIntentPaymentFailed,
		types.WebhookEventPaymentIntentCanceled:
		return true
	}
	return false
}

func toPaymentIntent(pi *stripeapi.PaymentIntent) *types.PaymentIntent {
	out := &types.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       types.PaymentIntentStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LatestCharge != nil {
		out.LatestChargeID = pi.LatestCharge.ID
	}
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out
}

// mapStripeError keeps processor details out of caller facing hints.
// Create and retrieve failures are treated as transient.
func mapStripeError(err error, msg string) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripeapi.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound {
			return ierr.WithError(err).
				WithMessage(msg).
				WithHint("Payment intent not found at the payment processor").
				WithReportableDetails(map[string]any{
					"stripe_error_code": stripeErr.Code,
				}).
				Mark(ierr.ErrNotFound)
		}
	}

	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("Payment processing failed, please try again").
		Mark(ierr.ErrSystem)
}
