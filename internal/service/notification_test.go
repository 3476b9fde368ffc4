package service

import (
	"encoding/json"
	"testing"

	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/domain/payment"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/testutil"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationDispatcher(t *testing.T) {
	cfg := config.GetDefaultConfig()
	pub := testutil.NewInMemoryNotificationPublisher()
	d := NewNotificationDispatcher(pub, cfg, logger.NewNoopLogger(), nil)

	p := &payment.Payment{ID: "pay_1", TenantID: "usr_t", LandlordID: "usr_l", Status: types.PaymentStatusPaid}
	ctx := testutil.SetupContext("usr_t", types.UserRoleTenant)

	d.Dispatch(ctx, types.NotificationPaymentPaid, p)
	d.Wait()

	events := pub.Events()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, types.NotificationPaymentPaid, event.EventType)
	assert.Equal(t, "pay_1", event.PaymentID)
	assert.Equal(t, []string{"usr_t", "usr_l"}, event.RecipientIDs)
	assert.Equal(t, types.GetRequestID(ctx), event.RequestID)

	var decoded payment.Payment
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, types.PaymentStatusPaid, decoded.Status)
}

func TestNotificationDispatcher_Disabled(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Notification.Enabled = false
	pub := testutil.NewInMemoryNotificationPublisher()
	d := NewNotificationDispatcher(pub, cfg, logger.NewNoopLogger(), nil)

	d.Dispatch(testutil.SetupContext("usr_t", types.UserRoleTenant), types.NotificationPaymentPaid, &payment.Payment{ID: "pay_1"})
	d.Wait()
	assert.Empty(t, pub.Events())
}
