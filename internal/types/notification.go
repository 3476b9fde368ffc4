package types

import (
	"encoding/json"
	"time"
)

// NotificationEventType names a payment lifecycle notification
type NotificationEventType string

const (
	NotificationPaymentRequested     NotificationEventType = "payment.requested"
	NotificationPaymentPaid          NotificationEventType = "payment.paid"
	NotificationPaymentFailed        NotificationEventType = "payment.failed"
	NotificationPaymentCancelled     NotificationEventType = "payment.cancelled"
	NotificationPaymentAttemptFailed NotificationEventType = "payment.attempt_failed"
)

func (t NotificationEventType) String() string {
	return string(t)
}

// NotificationEvent is the message carried on the notification topic
type NotificationEvent struct {
	ID        string                `json:"id"`
	EventType NotificationEventType `json:"event_type"`
	PaymentID string                `json:"payment_id"`
	// RecipientIDs are the users the notification is addressed to
	RecipientIDs []string        `json:"recipient_ids"`
	RequestID    string          `json:"request_id,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
}
