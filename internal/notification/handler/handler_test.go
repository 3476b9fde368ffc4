package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/httpclient"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/pubsub/memory"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/stretchr/testify/suite"
)

type fakeClient struct {
	requests []*httpclient.Request
	err      error
}

func (c *fakeClient) Send(_ context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &httpclient.Response{StatusCode: http.StatusOK}, nil
}

type HandlerSuite struct {
	suite.Suite
	cfg    *config.Configuration
	client *fakeClient
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	s.cfg.Notification.Endpoint = "https://notify.example.com/hooks"
	s.cfg.Notification.Headers = map[string]string{"Authorization": "Bearer abc"}
	s.client = &fakeClient{}
}

func (s *HandlerSuite) newHandler() *handler {
	log := logger.NewNoopLogger()
	return NewHandler(memory.NewPubSub(log), s.cfg, s.client, log).(*handler)
}

func (s *HandlerSuite) message() *message.Message {
	payload, err := json.Marshal(&types.NotificationEvent{
		ID:           "ntf_1",
		EventType:    types.NotificationPaymentPaid,
		PaymentID:    "pay_1",
		RecipientIDs: []string{"tenant_1", "landlord_1"},
		Timestamp:    time.Now().UTC(),
	})
	s.Require().NoError(err)
	return message.NewMessage("ntf_1", payload)
}

func (s *HandlerSuite) TestDeliversToEndpoint() {
	err := s.newHandler().processMessage(s.message())
	s.NoError(err)
	s.Require().Len(s.client.requests, 1)

	req := s.client.requests[0]
	s.Equal(http.MethodPost, req.Method)
	s.Equal(s.cfg.Notification.Endpoint, req.URL)
	s.Equal("payment.paid", req.Headers["X-Notification-Type"])
	s.Equal("Bearer abc", req.Headers["Authorization"])
	s.NotEmpty(req.Headers["Idempotency-Key"])

	// a redelivery of the same message reuses the key
	s.Require().NoError(s.newHandler().processMessage(s.message()))
	s.Require().Len(s.client.requests, 2)
	s.Equal(req.Headers["Idempotency-Key"], s.client.requests[1].Headers["Idempotency-Key"])
}

func (s *HandlerSuite) TestLogsWithoutEndpoint() {
	s.cfg.Notification.Endpoint = ""
	s.NoError(s.newHandler().processMessage(s.message()))
	s.Empty(s.client.requests)
}

func (s *HandlerSuite) TestMalformedPayloadIsDropped() {
	s.NoError(s.newHandler().processMessage(message.NewMessage("bad", []byte("{"))))
	s.Empty(s.client.requests)
}

func (s *HandlerSuite) TestTransientFailureIsRetried() {
	s.client.err = httpclient.NewError(http.StatusServiceUnavailable, nil)
	s.Error(s.newHandler().processMessage(s.message()))
}

func (s *HandlerSuite) TestPermanentFailureIsDropped() {
	s.client.err = httpclient.NewError(http.StatusBadRequest, []byte(`{"error":"bad"}`))
	s.NoError(s.newHandler().processMessage(s.message()))
}

func (s *HandlerSuite) TestShouldRetry() {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", errors.New("dial tcp: connection refused"), true},
		{"too many requests", httpclient.NewError(http.StatusTooManyRequests, nil), true},
		{"bad gateway", httpclient.NewError(http.StatusBadGateway, nil), true},
		{"gateway timeout", httpclient.NewError(http.StatusGatewayTimeout, nil), true},
		{"not found", httpclient.NewError(http.StatusNotFound, nil), false},
		{"unauthorized", httpclient.NewError(http.StatusUnauthorized, nil), false},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, shouldRetry(tt.err))
		})
	}
}
