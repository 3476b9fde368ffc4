package service

import (
	"context"
	"time"

	"github.com/rentwise/rentwise/internal/api/dto"
	"github.com/rentwise/rentwise/internal/cache"
	"github.com/rentwise/rentwise/internal/domain/payment"
	"github.com/rentwise/rentwise/internal/domain/property"
	"github.com/rentwise/rentwise/internal/domain/user"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/idempotency"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/iter"
)

// lookupCacheTTL bounds how stale enrichment display data may be
const lookupCacheTTL = 5 * time.Minute

// PaymentService defines the interface for the rent payment lifecycle
type PaymentService interface {
	CreatePaymentRequest(ctx context.Context, req dto.CreatePaymentRequest) (*dto.PaymentResponse, error)
	// CreateLeasePayment creates a payment from the lease keyed request shape.
	// Deprecated: use CreatePaymentRequest.
	CreateLeasePayment(ctx context.Context, req dto.CreateLeasePaymentRequest) (*dto.PaymentResponse, error)
	InitiateCharge(ctx context.Context, paymentID, requesterID string) (*dto.InitiateChargeResponse, error)
	Cancel(ctx context.Context, paymentID, requesterID string) (*dto.PaymentResponse, error)
	GetPayment(ctx context.Context, paymentID, requesterID string) (*dto.PaymentResponse, error)
	ListTenantPayments(ctx context.Context, tenantID string) (*dto.ListPaymentsResponse, error)
	ListLandlordPayments(ctx context.Context, landlordID string) (*dto.ListPaymentsResponse, error)
	Enrich(ctx context.Context, p *payment.Payment) *dto.PaymentResponse
}

type paymentService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

// NewPaymentService creates a new payment service
func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *paymentService) CreatePaymentRequest(ctx context.Context, req dto.CreatePaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prop, err := s.PropertyRepo.Get(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	requesterID := types.GetUserID(ctx)
	if requesterID != prop.LandlordID && requesterID != req.TenantID && types.GetUserRole(ctx) != types.UserRoleAdmin {
		return nil, ierr.NewError("requester is not a party to the payment").
			WithHint("Only the landlord or the tenant can request this payment").
			Mark(ierr.ErrPermissionDenied)
	}

	if _, err := s.UserRepo.Get(ctx, req.TenantID); err != nil {
		return nil, err
	}

	if req.LeaseID != nil && *req.LeaseID != "" {
		l, err := s.LeaseRepo.Get(ctx, *req.LeaseID)
		if err != nil {
			return nil, err
		}
		if l.TenantID != req.TenantID || l.PropertyID != req.PropertyID {
			return nil, ierr.NewError("lease does not match tenant and property").
				WithHint("The lease does not belong to this tenant and property").
				WithReportableDetails(map[string]any{
					"lease_id": l.ID,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	existing, err := s.PaymentRepo.ListByTenantAndProperty(ctx, req.TenantID, req.PropertyID)
	if err != nil {
		return nil, err
	}
	active := lo.Filter(existing, func(p *payment.Payment, _ int) bool {
		return p.Status.IsActive()
	})

	if req.HasDeposit() && len(active) > 0 {
		return nil, ierr.NewError("deposit requested on a non first payment").
			WithHint("Deposit can only be charged for the first payment for this property").
			WithReportableDetails(map[string]any{
				"tenant_id":   req.TenantID,
				"property_id": req.PropertyID,
			}).
			Mark(ierr.ErrConflict)
	}

	if _, err := s.PaymentRepo.FindActiveForPeriod(ctx, req.TenantID, req.PropertyID, req.Period); err == nil {
		return nil, ierr.NewError("payment already exists for period").
			WithHintf("A payment for %s already exists for this property", req.Period).
			WithReportableDetails(map[string]any{
				"period": req.Period,
			}).
			Mark(ierr.ErrConflict)
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	p := req.ToPayment(ctx, prop.LandlordID)
	p.IsFirstPayment = len(active) == 0

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("created payment request",
		"payment_id", p.ID,
		"tenant_id", p.TenantID,
		"property_id", p.PropertyID,
		"period", p.Period,
		"total_amount", p.TotalAmount,
	)

	s.Notifier.Dispatch(ctx, types.NotificationPaymentRequested, p)

	return s.Enrich(ctx, p), nil
}

func (s *paymentService) CreateLeasePayment(ctx context.Context, req dto.CreateLeasePaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	l, err := s.LeaseRepo.Get(ctx, req.LeaseID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	return s.CreatePaymentRequest(ctx, dto.CreatePaymentRequest{
		TenantID:    l.TenantID,
		PropertyID:  l.PropertyID,
		LeaseID:     lo.ToPtr(l.ID),
		Period:      req.Period,
		RentAmount:  &amount,
		Description: req.Description,
	})
}

func (s *paymentService) InitiateCharge(ctx context.Context, paymentID, requesterID string) (*dto.InitiateChargeResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !p.IsParty(requesterID) {
		return nil, ierr.NewError("requester is not a party to the payment").
			WithHint("You are not allowed to pay this payment").
			Mark(ierr.ErrPermissionDenied)
	}

	if p.Status.IsTerminal() {
		return nil, ierr.NewErrorf("payment is %s", p.Status).
			WithHintf("Payment is already %s", p.Status).
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
				"status":     p.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	var previousIntentID string
	if p.HasPaymentIntent() {
		previousIntentID = *p.StripePaymentIntentID

		intent, err := s.Gateway.GetPaymentIntent(ctx, previousIntentID)
		switch {
		case err == nil && intent.Status == types.PaymentIntentStatusSucceeded:
			return nil, ierr.NewError("payment intent already succeeded").
				WithHint("Payment has already been charged, sync it to refresh its status").
				WithReportableDetails(map[string]any{
					"payment_id":        p.ID,
					"payment_intent_id": intent.ID,
				}).
				Mark(ierr.ErrInvalidOperation)
		case err == nil && intent.Status != types.PaymentIntentStatusCanceled:
			s.Logger.WithContext(ctx).Infow("reusing payment intent",
				"payment_id", p.ID,
				"payment_intent_id", intent.ID,
				"intent_status", intent.Status,
			)
			return s.toInitiateChargeResponse(p, intent), nil
		case err != nil && !ierr.IsNotFound(err):
			return nil, err
		}

		s.Logger.WithContext(ctx).Infow("replacing unusable payment intent",
			"payment_id", p.ID,
			"previous_payment_intent_id", previousIntentID,
		)
	}

	intent, err := s.Gateway.CreatePaymentIntent(ctx, s.newPaymentIntentRequest(p, previousIntentID))
	if err != nil {
		return nil, err
	}

	// persisted before the secret leaves the server so webhooks can be matched
	if err := s.PaymentRepo.SetPaymentIntent(ctx, p.ID, intent.ID); err != nil {
		return nil, err
	}
	p.StripePaymentIntentID = lo.ToPtr(intent.ID)

	return s.toInitiateChargeResponse(p, intent), nil
}

func (s *paymentService) newPaymentIntentRequest(p *payment.Payment, previousIntentID string) *types.CreatePaymentIntentRequest {
	metadata := map[string]string{
		types.MetadataKeyPaymentID:  p.ID,
		types.MetadataKeyTenantID:   p.TenantID,
		types.MetadataKeyLandlordID: p.LandlordID,
		types.MetadataKeyPropertyID: p.PropertyID,
		types.MetadataKeyPeriod:     p.Period,
	}
	if p.LeaseID != nil {
		metadata[types.MetadataKeyLeaseID] = *p.LeaseID
	}

	description := p.Description
	if description == "" {
		description = "Rent payment for " + p.Period
	}

	return &types.CreatePaymentIntentRequest{
		PaymentID:   p.ID,
		Amount:      p.TotalAmount,
		Currency:    p.Currency,
		Description: description,
		Metadata:    metadata,
		IdempotencyKey: s.idempGen.GenerateKey(idempotency.ScopePaymentIntent, map[string]interface{}{
			"payment_id":         p.ID,
			"previous_intent_id": previousIntentID,
		}),
	}
}

func (s *paymentService) toInitiateChargeResponse(p *payment.Payment, intent *types.PaymentIntent) *dto.InitiateChargeResponse {
	return &dto.InitiateChargeResponse{
		PaymentID:       p.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          p.TotalAmount,
		Currency:        p.Currency,
	}
}

func (s *paymentService) Cancel(ctx context.Context, paymentID, requesterID string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if requesterID == "" || requesterID != p.LandlordID {
		return nil, ierr.NewError("only the landlord can cancel a payment").
			WithHint("Only the landlord can cancel this payment").
			Mark(ierr.ErrPermissionDenied)
	}

	if err := validateCancellable(p); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	update := &payment.StatusUpdate{
		Status:         types.PaymentStatusCancelled,
		ExpectedStatus: types.PaymentStatusPending,
		CancelledAt:    lo.ToPtr(now),
	}

	if err := s.PaymentRepo.UpdateStatus(ctx, p.ID, update); err != nil {
		if !ierr.IsVersionConflict(err) {
			return nil, err
		}
		// a reconciliation won the race; report against the stored state
		current, getErr := s.PaymentRepo.Get(ctx, p.ID)
		if getErr != nil {
			return nil, getErr
		}
		if err := validateCancellable(current); err != nil {
			return nil, err
		}
		return nil, err
	}
	p.Apply(update, now)

	s.Logger.WithContext(ctx).Infow("cancelled payment",
		"payment_id", p.ID,
		"landlord_id", p.LandlordID,
	)

	s.Notifier.Dispatch(ctx, types.NotificationPaymentCancelled, p)

	return s.Enrich(ctx, p), nil
}

func validateCancellable(p *payment.Payment) error {
	switch p.Status {
	case types.PaymentStatusPending:
		return nil
	case types.PaymentStatusPaid:
		return ierr.NewError("payment is paid").
			WithHint("Paid payments cannot be cancelled").
			Mark(ierr.ErrInvalidOperation)
	default:
		return ierr.NewErrorf("payment is %s", p.Status).
			WithHintf("Payment is already %s", p.Status).
			Mark(ierr.ErrInvalidOperation)
	}
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID, requesterID string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !p.IsParty(requesterID) && types.GetUserRole(ctx) != types.UserRoleAdmin {
		return nil, ierr.NewError("requester is not a party to the payment").
			WithHint("You are not allowed to view this payment").
			Mark(ierr.ErrPermissionDenied)
	}

	return s.Enrich(ctx, p), nil
}

func (s *paymentService) ListTenantPayments(ctx context.Context, tenantID string) (*dto.ListPaymentsResponse, error) {
	payments, err := s.PaymentRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.toListResponse(ctx, payments), nil
}

func (s *paymentService) ListLandlordPayments(ctx context.Context, landlordID string) (*dto.ListPaymentsResponse, error) {
	payments, err := s.PaymentRepo.ListByLandlord(ctx, landlordID)
	if err != nil {
		return nil, err
	}
	return s.toListResponse(ctx, payments), nil
}

func (s *paymentService) toListResponse(ctx context.Context, payments []*payment.Payment) *dto.ListPaymentsResponse {
	items := iter.Map(payments, func(p **payment.Payment) *dto.PaymentResponse {
		return s.Enrich(ctx, *p)
	})

	return &dto.ListPaymentsResponse{
		Items: items,
		Total: len(items),
	}
}

// Enrich attaches party and property display data. Any lookup failure
// returns the bare record.
func (s *paymentService) Enrich(ctx context.Context, p *payment.Payment) *dto.PaymentResponse {
	resp := dto.NewPaymentResponse(p)

	tenant, err := s.lookupUser(ctx, p.TenantID)
	if err != nil {
		s.logEnrichFailure(ctx, p, err)
		return resp
	}

	landlord, err := s.lookupUser(ctx, p.LandlordID)
	if err != nil {
		s.logEnrichFailure(ctx, p, err)
		return resp
	}

	prop, err := s.lookupProperty(ctx, p.PropertyID)
	if err != nil {
		s.logEnrichFailure(ctx, p, err)
		return resp
	}

	resp.Tenant = dto.NewPartySummary(tenant)
	resp.Landlord = dto.NewPartySummary(landlord)
	resp.Property = dto.NewPropertySummary(prop)
	return resp
}

func (s *paymentService) logEnrichFailure(ctx context.Context, p *payment.Payment, err error) {
	s.Logger.WithContext(ctx).Warnw("failed to enrich payment",
		"error", err,
		"payment_id", p.ID,
	)
}

func (s *paymentService) lookupUser(ctx context.Context, id string) (*user.User, error) {
	key := cache.GenerateKey(cache.PrefixUser, id)
	if cached, ok := s.Cache.Get(ctx, key); ok {
		if u, ok := cached.(*user.User); ok {
			return u, nil
		}
	}

	u, err := s.UserRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, key, u, lookupCacheTTL)
	return u, nil
}

func (s *paymentService) lookupProperty(ctx context.Context, id string) (*property.Property, error) {
	key := cache.GenerateKey(cache.PrefixProperty, id)
	if cached, ok := s.Cache.Get(ctx, key); ok {
		if p, ok := cached.(*property.Property); ok {
			return p, nil
		}
	}

	p, err := s.PropertyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, key, p, lookupCacheTTL)
	return p, nil
}
