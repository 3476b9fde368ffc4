package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/testutil"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/stretchr/testify/suite"
)

type PublisherSuite struct {
	suite.Suite
	cfg    *config.Configuration
	pubSub *testutil.InMemoryPubSub
	pub    NotificationPublisher
}

func TestPublisher(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	s.pubSub = testutil.NewInMemoryPubSub()
	s.pub = NewPublisher(s.pubSub, s.cfg, logger.NewNoopLogger())
}

func (s *PublisherSuite) event() *types.NotificationEvent {
	return &types.NotificationEvent{
		ID:           "ntf_1",
		EventType:    types.NotificationPaymentRequested,
		PaymentID:    "pay_1",
		RecipientIDs: []string{"usr_tenant"},
		RequestID:    "req_1",
		Timestamp:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Payload:      json.RawMessage(`{"status":"pending"}`),
	}
}

func (s *PublisherSuite) TestPublishNotification() {
	s.Require().NoError(s.pub.PublishNotification(context.Background(), s.event()))

	msgs := s.pubSub.Messages(s.cfg.Notification.Topic)
	s.Require().Len(msgs, 1)

	msg := msgs[0]
	s.Equal("ntf_1", msg.UUID)
	s.Equal("pay_1", msg.Metadata.Get("payment_id"))
	s.Equal("payment.requested", msg.Metadata.Get("event_type"))
	s.Equal("req_1", msg.Metadata.Get("request_id"))

	var decoded types.NotificationEvent
	s.Require().NoError(json.Unmarshal(msg.Payload, &decoded))
	s.Equal(types.NotificationPaymentRequested, decoded.EventType)
	s.Equal([]string{"usr_tenant"}, decoded.RecipientIDs)
}

func (s *PublisherSuite) TestPublishWithoutIDGetsOne() {
	event := s.event()
	event.ID = ""
	event.RequestID = ""

	s.Require().NoError(s.pub.PublishNotification(context.Background(), event))

	msgs := s.pubSub.Messages(s.cfg.Notification.Topic)
	s.Require().Len(msgs, 1)
	s.NotEmpty(msgs[0].UUID)
	s.Empty(msgs[0].Metadata.Get("request_id"))
}

func (s *PublisherSuite) TestPublishError() {
	s.pubSub.PublishErr = errors.New("broker down")

	err := s.pub.PublishNotification(context.Background(), s.event())
	s.Error(err)
	s.Empty(s.pubSub.Messages(s.cfg.Notification.Topic))
}

func (s *PublisherSuite) TestClose() {
	s.Require().NoError(s.pub.Close())
	s.True(s.pubSub.Closed())
}
