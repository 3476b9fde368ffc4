package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/integration/stripe"
	"github.com/rentwise/rentwise/internal/types"
)

// FakeWebhookSignature is the only signature FakeGateway accepts
const FakeWebhookSignature = "t=1,v1=fake"

// FakeWebhookPayload is the JSON shape FakeGateway parses as a webhook body
type FakeWebhookPayload struct {
	ID     string               `json:"id"`
	Type   string               `json:"type"`
	Intent *types.PaymentIntent `json:"intent"`
}

// FakeGateway implements interfaces.PaymentGateway in memory
type FakeGateway struct {
	mu       sync.Mutex
	intents  map[string]*types.PaymentIntent
	byKey    map[string]string
	requests []*types.CreatePaymentIntentRequest
	seq      int

	// CreateErr and GetErr are returned when set
	CreateErr error
	GetErr    error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		intents: make(map[string]*types.PaymentIntent),
		byKey:   make(map[string]string),
	}
}

func (g *FakeGateway) CreatePaymentIntent(_ context.Context, req *types.CreatePaymentIntentRequest) (*types.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, req)
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}

	if id, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		intent := *g.intents[id]
		return &intent, nil
	}

	amountCents, err := stripe.ToCents(req.Amount)
	if err != nil {
		return nil, err
	}

	g.seq++
	id := fmt.Sprintf("pi_test_%d", g.seq)
	intent := &types.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       types.PaymentIntentStatusRequiresPaymentMethod,
		AmountCents:  amountCents,
		Currency:     req.Currency,
		Metadata:     req.Metadata,
	}
	g.intents[id] = intent
	g.byKey[req.IdempotencyKey] = id

	c := *intent
	return &c, nil
}

func (g *FakeGateway) GetPaymentIntent(_ context.Context, id string) (*types.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.GetErr != nil {
		return nil, g.GetErr
	}

	intent, ok := g.intents[id]
	if !ok {
		return nil, ierr.NewErrorf("payment intent %s not found", id).
			WithHint("Payment intent not found").
			Mark(ierr.ErrNotFound)
	}
	c := *intent
	return &c, nil
}

func (g *FakeGateway) ParseWebhookEvent(payload []byte, signature string) (*types.GatewayEvent, error) {
	if signature != FakeWebhookSignature {
		return nil, ierr.NewError("invalid webhook signature").
			WithHint("Invalid webhook signature").
			Mark(ierr.ErrWebhookVerification)
	}

	var body FakeWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook payload").
			Mark(ierr.ErrWebhookVerification)
	}

	return &types.GatewayEvent{ID: body.ID, Type: body.Type, Intent: body.Intent}, nil
}

// SetIntentStatus simulates the processor moving an intent
func (g *FakeGateway) SetIntentStatus(id string, status types.PaymentIntentStatus, chargeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if intent, ok := g.intents[id]; ok {
		intent.Status = status
		intent.LatestChargeID = chargeID
	}
}

// Intent returns a copy of a stored intent, or nil
func (g *FakeGateway) Intent(id string) *types.PaymentIntent {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		return nil
	}
	c := *intent
	return &c
}

// Requests returns every create request received
func (g *FakeGateway) Requests() []*types.CreatePaymentIntentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*types.CreatePaymentIntentRequest(nil), g.requests...)
}

// WebhookBody builds a body FakeGateway will parse for the given intent
func (g *FakeGateway) WebhookBody(eventType string, intentID string) []byte {
	body, _ := json.Marshal(&FakeWebhookPayload{
		ID:     "evt_" + intentID,
		Type:   eventType,
		Intent: g.Intent(intentID),
	})
	return body
}
