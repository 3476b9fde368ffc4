package service

import (
	"context"
	"time"

	"github.com/rentwise/rentwise/internal/api/dto"
	"github.com/rentwise/rentwise/internal/domain/payment"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/samber/lo"
)

// ReconciliationService keeps local payment status consistent with the processor.
// Webhooks and manual sync both funnel into ApplyExternalStatus.
type ReconciliationService interface {
	// ApplyExternalStatus moves the payment according to the processor status.
	// It returns the stored payment and whether this call changed it.
	ApplyExternalStatus(ctx context.Context, paymentID string, externalStatus types.PaymentIntentStatus, chargeID string) (*payment.Payment, bool, error)
	// HandleWebhook verifies and applies a processor event. Unknown events are ignored.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	Sync(ctx context.Context, paymentID, requesterID string) (*dto.SyncPaymentResponse, error)
}

type reconciliationService struct {
	ServiceParams
}

func NewReconciliationService(params ServiceParams) ReconciliationService {
	return &reconciliationService{
		ServiceParams: params,
	}
}

func (s *reconciliationService) ApplyExternalStatus(
	ctx context.Context,
	paymentID string,
	externalStatus types.PaymentIntentStatus,
	chargeID string,
) (*payment.Payment, bool, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	update := s.transitionFor(ctx, p, externalStatus, chargeID, now)
	if update == nil {
		return p, false, nil
	}

	if err := s.PaymentRepo.UpdateStatus(ctx, p.ID, update); err != nil {
		if !ierr.IsVersionConflict(err) {
			return nil, false, err
		}

		// another trigger moved the payment first
		current, getErr := s.PaymentRepo.Get(ctx, p.ID)
		if getErr != nil {
			return nil, false, getErr
		}
		s.Logger.WithContext(ctx).Infow("payment changed concurrently, skipping update",
			"payment_id", p.ID,
			"read_status", p.Status,
			"current_status", current.Status,
			"external_status", externalStatus,
		)
		return current, false, nil
	}

	previous := p.Status
	p.Apply(update, now)

	s.Logger.WithContext(ctx).Infow("payment reconciled",
		"payment_id", p.ID,
		"from_status", previous,
		"to_status", p.Status,
		"external_status", externalStatus,
	)

	switch p.Status {
	case types.PaymentStatusPaid:
		s.Notifier.Dispatch(ctx, types.NotificationPaymentPaid, p)
	case types.PaymentStatusFailed:
		s.Notifier.Dispatch(ctx, types.NotificationPaymentFailed, p)
	}

	return p, true, nil
}

// transitionFor returns the update for a processor status, or nil for a no-op
func (s *reconciliationService) transitionFor(
	ctx context.Context,
	p *payment.Payment,
	externalStatus types.PaymentIntentStatus,
	chargeID string,
	now time.Time,
) *payment.StatusUpdate {
	switch externalStatus {
	case types.PaymentIntentStatusSucceeded:
		switch p.Status {
		case types.PaymentStatusPaid:
			return nil
		case types.PaymentStatusCancelled:
			s.Logger.WithContext(ctx).Warnw("processor reports success for a cancelled payment",
				"payment_id", p.ID,
				"charge_id", chargeID,
			)
			return nil
		}

		update := &payment.StatusUpdate{
			Status:         types.PaymentStatusPaid,
			ExpectedStatus: p.Status,
			PaidAt:         lo.ToPtr(now),
		}
		if chargeID != "" {
			update.StripeChargeID = lo.ToPtr(chargeID)
		}
		return update

	case types.PaymentIntentStatusCanceled:
		if p.Status != types.PaymentStatusPending {
			return nil
		}
		return &payment.StatusUpdate{
			Status:         types.PaymentStatusFailed,
			ExpectedStatus: types.PaymentStatusPending,
			FailureReason:  lo.ToPtr("payment intent canceled"),
		}
	}

	return nil
}

func (s *reconciliationService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.Gateway.ParseWebhookEvent(payload, signature)
	if err != nil {
		return err
	}

	log := s.Logger.WithContext(ctx).With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case types.WebhookEventPaymentIntentSucceeded,
		types.WebhookEventPaymentIntentPaymentFailed,
		types.WebhookEventPaymentIntentCanceled:
	default:
		log.Debugw("ignoring unhandled webhook event")
		return nil
	}

	intent := event.Intent
	paymentID := intent.PaymentID()
	if paymentID == "" {
		log.Warnw("payment intent carries no payment id, ignoring")
		return nil
	}

	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		if ierr.IsNotFound(err) {
			log.Warnw("webhook references unknown payment", "payment_id", paymentID)
			return nil
		}
		return err
	}

	// a superseded intent may still be cancelled by the processor
	if intent.Status == types.PaymentIntentStatusCanceled &&
		p.HasPaymentIntent() && *p.StripePaymentIntentID != intent.ID {
		log.Infow("ignoring cancellation of superseded payment intent",
			"payment_id", p.ID,
			"payment_intent_id", intent.ID,
		)
		return nil
	}

	updated, changed, err := s.ApplyExternalStatus(ctx, paymentID, intent.Status, intent.LatestChargeID)
	if err != nil {
		return err
	}

	if event.Type == types.WebhookEventPaymentIntentPaymentFailed {
		log.Infow("payment attempt failed",
			"payment_id", paymentID,
			"failure_message", intent.FailureMessage,
		)
		s.Notifier.Dispatch(ctx, types.NotificationPaymentAttemptFailed, updated)
	}

	log.Infow("webhook processed",
		"payment_id", paymentID,
		"intent_status", intent.Status,
		"changed", changed,
	)
	return nil
}

func (s *reconciliationService) Sync(ctx context.Context, paymentID, requesterID string) (*dto.SyncPaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !p.IsParty(requesterID) {
		return nil, ierr.NewError("requester is not a party to the payment").
			WithHint("You are not allowed to sync this payment").
			Mark(ierr.ErrPermissionDenied)
	}

	if !p.HasPaymentIntent() {
		return &dto.SyncPaymentResponse{
			Synced:  false,
			Status:  p.Status,
			Message: "No payment intent to sync",
		}, nil
	}

	intent, err := s.Gateway.GetPaymentIntent(ctx, *p.StripePaymentIntentID)
	if ierr.IsNotFound(err) {
		s.Logger.WithContext(ctx).Errorw("payment intent missing at the payment processor",
			"payment_id", p.ID,
			"payment_intent_id", *p.StripePaymentIntentID,
			"error", err,
		)
		return nil, ierr.NewErrorf("payment intent %s not found at the payment processor", *p.StripePaymentIntentID).
			WithHint("Failed to sync payment with the payment processor").
			WithReportableDetails(map[string]any{
				"payment_id":        p.ID,
				"payment_intent_id": *p.StripePaymentIntentID,
			}).
			Mark(ierr.ErrSystem)
	}
	if err != nil {
		return nil, err
	}

	updated, changed, err := s.ApplyExternalStatus(ctx, p.ID, intent.Status, intent.LatestChargeID)
	if err != nil {
		return nil, err
	}

	resp := &dto.SyncPaymentResponse{
		Synced:       changed,
		Status:       updated.Status,
		StripeStatus: intent.Status,
	}
	if !changed {
		resp.Message = "Payment already up to date"
	}
	return resp, nil
}
