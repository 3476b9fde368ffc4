package stripe

import (
	"context"
	"encoding/json"
	"testing"

	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

type GatewaySuite struct {
	suite.Suite
	gateway *Gateway
}

func TestGateway(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.gateway = newGateway(nil, testWebhookSecret, logger.NewNoopLogger())
}

func (s *GatewaySuite) eventPayload(eventType string, intent map[string]any) []byte {
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": intent,
		},
	})
	s.Require().NoError(err)
	return payload
}

func (s *GatewaySuite) sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	})
	return signed.Header
}

func (s *GatewaySuite) TestParseWebhookEvent_Succeeded() {
	payload := s.eventPayload(types.WebhookEventPaymentIntentSucceeded, map[string]any{
		"id":            "pi_123",
		"object":        "payment_intent",
		"status":        "succeeded",
		"amount":        100000,
		"currency":      "usd",
		"latest_charge": "ch_123",
		"metadata": map[string]string{
			types.MetadataKeyPaymentID: "pay_1",
		},
	})

	event, err := s.gateway.ParseWebhookEvent(payload, s.sign(payload, testWebhookSecret))
	s.Require().NoError(err)
	s.Equal("evt_test_1", event.ID)
	s.Equal(types.WebhookEventPaymentIntentSucceeded, event.Type)
	s.Require().NotNil(event.Intent)
	s.Equal("pi_123", event.Intent.ID)
	s.Equal(types.PaymentIntentStatusSucceeded, event.Intent.Status)
	s.Equal(int64(100000), event.Intent.AmountCents)
	s.Equal("ch_123", event.Intent.LatestChargeID)
	s.Equal("pay_1", event.Intent.PaymentID())
}

func (s *GatewaySuite) TestParseWebhookEvent_WrongSecret() {
	payload := s.eventPayload(types.WebhookEventPaymentIntentSucceeded, map[string]any{
		"id":     "pi_123",
		"object": "payment_intent",
	})

	_, err := s.gateway.ParseWebhookEvent(payload, s.sign(payload, "whsec_other"))
	s.Error(err)
	s.True(ierr.IsWebhookVerification(err))
}

func (s *GatewaySuite) TestParseWebhookEvent_TamperedPayload() {
	payload := s.eventPayload(types.WebhookEventPaymentIntentSucceeded, map[string]any{
		"id":     "pi_123",
		"object": "payment_intent",
	})
	header := s.sign(payload, testWebhookSecret)
	payload[len(payload)-2] = ' '

	_, err := s.gateway.ParseWebhookEvent(payload, header)
	s.True(ierr.IsWebhookVerification(err))
}

func (s *GatewaySuite) TestParseWebhookEvent_MissingHeader() {
	payload := s.eventPayload(types.WebhookEventPaymentIntentSucceeded, map[string]any{})
	_, err := s.gateway.ParseWebhookEvent(payload, "")
	s.True(ierr.IsWebhookVerification(err))
}

func (s *GatewaySuite) TestParseWebhookEvent_NoSecretConfigured() {
	gw := newGateway(nil, "", logger.NewNoopLogger())
	payload := s.eventPayload(types.WebhookEventPaymentIntentSucceeded, map[string]any{})

	_, err := gw.ParseWebhookEvent(payload, s.sign(payload, testWebhookSecret))
	s.True(ierr.IsWebhookVerification(err))
}

func (s *GatewaySuite) TestParseWebhookEvent_OtherEventHasNoIntent() {
	payload := s.eventPayload("customer.created", map[string]any{
		"id":     "cus_1",
		"object": "customer",
	})

	event, err := s.gateway.ParseWebhookEvent(payload, s.sign(payload, testWebhookSecret))
	s.Require().NoError(err)
	s.Equal("customer.created", event.Type)
	s.Nil(event.Intent)
}

func (s *GatewaySuite) TestParseWebhookEvent_PaymentFailedCarriesMessage() {
	payload := s.eventPayload(types.WebhookEventPaymentIntentPaymentFailed, map[string]any{
		"id":     "pi_9",
		"object": "payment_intent",
		"status": "requires_payment_method",
		"last_payment_error": map[string]any{
			"message": "Your card was declined.",
		},
		"metadata": map[string]string{
			types.MetadataKeyPaymentID: "pay_9",
		},
	})

	event, err := s.gateway.ParseWebhookEvent(payload, s.sign(payload, testWebhookSecret))
	s.Require().NoError(err)
	s.Equal(types.PaymentIntentStatusRequiresPaymentMethod, event.Intent.Status)
	s.Equal("Your card was declined.", event.Intent.FailureMessage)
}

func (s *GatewaySuite) TestToCents() {
	cases := []struct {
		in   string
		want int64
	}{
		{"1000", 100000},
		{"1000.5", 100050},
		{"0.015", 2},
		{"0.014", 1},
		{"1234.565", 123457},
	}
	for _, tc := range cases {
		got, err := ToCents(decimal.RequireFromString(tc.in))
		s.Require().NoError(err, tc.in)
		s.Equal(tc.want, got, tc.in)
	}

	_, err := ToCents(decimal.RequireFromString("184467440737095526.16"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *GatewaySuite) TestCreatePaymentIntent_RejectsOutOfRangeAmounts() {
	for _, amount := range []string{"184467440737095526.16", "1000000"} {
		_, err := s.gateway.CreatePaymentIntent(context.Background(), &types.CreatePaymentIntentRequest{
			PaymentID: "pay_1",
			Amount:    decimal.RequireFromString(amount),
			Currency:  types.DefaultCurrency,
		})
		s.Error(err, amount)
		s.True(ierr.IsValidation(err), amount)
	}
}
