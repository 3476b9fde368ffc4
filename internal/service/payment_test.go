package service

import (
	"errors"
	"testing"

	"github.com/rentwise/rentwise/internal/api/dto"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/testutil"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  PaymentService
	notifier NotificationDispatcher
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.notifier = params.Notifier
	s.service = NewPaymentService(params)
}

func (s *PaymentServiceSuite) create(req dto.CreatePaymentRequest) *dto.PaymentResponse {
	resp, err := s.service.CreatePaymentRequest(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest() {
	req := rentRequest("2025-03", 1000)
	req.UtilitiesAmount = amount(150)

	resp := s.create(req)

	s.NotEmpty(resp.ID)
	s.Equal(types.PaymentStatusPending, resp.Status)
	s.Equal(testutil.LandlordID, resp.LandlordID)
	s.True(decimal.NewFromInt(1150).Equal(resp.TotalAmount))
	s.Equal(types.DefaultCurrency, resp.Currency)
	s.Nil(resp.StripePaymentIntentID)
	s.Nil(resp.StripeChargeID)
	s.True(resp.IsFirstPayment)
	s.Equal(testutil.LandlordID, resp.CreatedBy)

	// enriched with display data
	s.Require().NotNil(resp.Tenant)
	s.Equal("Tina Tenant", resp.Tenant.Name)
	s.Require().NotNil(resp.Property)
	s.Equal("Maple Street Loft", resp.Property.Title)

	s.notifier.Wait()
	s.Equal([]types.NotificationEventType{types.NotificationPaymentRequested}, s.GetPublisher().EventTypes())
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_InvalidPeriod() {
	for _, period := range []string{"2025-3", "03-2025", "2025/03", "202503", "2025-13", "2025-00", ""} {
		s.Run(period, func() {
			_, err := s.service.CreatePaymentRequest(s.GetContext(), rentRequest(period, 1000))
			s.Error(err)
			s.True(ierr.IsValidation(err), "period %q", period)
		})
	}
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_NoPositiveAmount() {
	req := rentRequest("2025-03", 0)
	req.UtilitiesAmount = amount(0)

	_, err := s.service.CreatePaymentRequest(s.GetContext(), req)
	s.True(ierr.IsValidation(err))

	req = rentRequest("2025-03", 1000)
	req.UtilitiesAmount = amount(-1)
	_, err = s.service.CreatePaymentRequest(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_SubCentAmount() {
	req := rentRequest("2025-03", 0)
	req.RentAmount = lo.ToPtr(decimal.RequireFromString("10.004"))

	_, err := s.service.CreatePaymentRequest(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// trailing zeros are not extra precision
	req.RentAmount = lo.ToPtr(decimal.RequireFromString("10.500"))
	resp := s.create(req)
	s.True(decimal.RequireFromString("10.5").Equal(resp.TotalAmount))
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_AmountAboveMaximum() {
	req := rentRequest("2025-03", 0)
	req.RentAmount = lo.ToPtr(decimal.RequireFromString("184467440737095526.16"))

	_, err := s.service.CreatePaymentRequest(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// each component fits but the total does not
	req = rentRequest("2025-03", 600_000)
	req.UtilitiesAmount = amount(400_000)
	_, err = s.service.CreatePaymentRequest(s.GetContext(), req)
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateLeasePayment(s.GetContext(), dto.CreateLeasePaymentRequest{
		LeaseID: testutil.LeaseID,
		Amount:  decimal.NewFromInt(1_000_000),
		Period:  "2025-05",
	})
	s.True(ierr.IsValidation(err))

	s.Empty(s.GetGateway().Requests())

	// the processor maximum itself is accepted
	req = rentRequest("2025-03", 0)
	req.RentAmount = lo.ToPtr(types.MaxChargeAmount)
	s.create(req)
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_DuplicatePeriod() {
	s.create(rentRequest("2025-03", 1000))

	_, err := s.service.CreatePaymentRequest(s.GetContext(), rentRequest("2025-03", 900))
	s.Error(err)
	s.True(ierr.IsConflict(err))
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_CancelledPeriodCanBeRecreated() {
	first := s.create(rentRequest("2025-03", 1000))
	_, err := s.service.Cancel(s.GetContext(), first.ID, testutil.LandlordID)
	s.Require().NoError(err)

	second := s.create(rentRequest("2025-03", 1000))
	s.NotEqual(first.ID, second.ID)
	s.True(second.IsFirstPayment)
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_DepositOnlyOnFirstPayment() {
	req := rentRequest("2025-03", 1000)
	req.DepositAmount = amount(2000)
	first := s.create(req)
	s.True(first.IsFirstPayment)
	s.True(decimal.NewFromInt(3000).Equal(first.TotalAmount))

	req = rentRequest("2025-04", 1000)
	req.DepositAmount = amount(2000)
	_, err := s.service.CreatePaymentRequest(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsConflict(err))

	// without the deposit the next month is fine
	second := s.create(rentRequest("2025-04", 1000))
	s.False(second.IsFirstPayment)
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_Authorization() {
	s.SetContextUser(testutil.StrangerID, types.UserRoleTenant)
	_, err := s.service.CreatePaymentRequest(s.GetContext(), rentRequest("2025-03", 1000))
	s.True(ierr.IsPermissionDenied(err))

	// the tenant may request their own payment
	s.SetContextUser(testutil.TenantID, types.UserRoleTenant)
	resp := s.create(rentRequest("2025-03", 1000))
	s.Equal(testutil.TenantID, resp.CreatedBy)
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_UnknownProperty() {
	req := rentRequest("2025-03", 1000)
	req.PropertyID = "prop_missing"
	_, err := s.service.CreatePaymentRequest(s.GetContext(), req)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestCreatePaymentRequest_LeaseMismatch() {
	req := rentRequest("2025-03", 1000)
	req.TenantID = testutil.OtherTenantID
	req.LeaseID = lo.ToPtr(testutil.LeaseID)
	_, err := s.service.CreatePaymentRequest(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestCreateLeasePayment() {
	resp, err := s.service.CreateLeasePayment(s.GetContext(), dto.CreateLeasePaymentRequest{
		LeaseID: testutil.LeaseID,
		Amount:  decimal.NewFromInt(1000),
		Period:  "2025-05",
	})
	s.Require().NoError(err)

	s.Equal(testutil.TenantID, resp.TenantID)
	s.Equal(testutil.PropertyID, resp.PropertyID)
	s.Equal(testutil.LeaseID, lo.FromPtr(resp.LeaseID))
	s.True(decimal.NewFromInt(1000).Equal(resp.RentAmount))
	s.True(decimal.NewFromInt(1000).Equal(resp.TotalAmount))

	_, err = s.service.CreateLeasePayment(s.GetContext(), dto.CreateLeasePaymentRequest{
		LeaseID: "lease_missing",
		Amount:  decimal.NewFromInt(1000),
		Period:  "2025-05",
	})
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestInitiateCharge() {
	created := s.create(rentRequest("2025-03", 1000))

	resp, err := s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.Require().NoError(err)
	s.NotEmpty(resp.ClientSecret)
	s.NotEmpty(resp.PaymentIntentID)

	requests := s.GetGateway().Requests()
	s.Require().Len(requests, 1)
	s.Equal(created.ID, requests[0].Metadata[types.MetadataKeyPaymentID])
	s.Equal("2025-03", requests[0].Metadata[types.MetadataKeyPeriod])
	s.NotEmpty(requests[0].IdempotencyKey)
	s.Equal(int64(100000), s.GetGateway().Intent(resp.PaymentIntentID).AmountCents)

	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(resp.PaymentIntentID, lo.FromPtr(stored.StripePaymentIntentID))
	s.Equal(types.PaymentStatusPending, stored.Status)
}

func (s *PaymentServiceSuite) TestInitiateCharge_ReusesOpenIntent() {
	created := s.create(rentRequest("2025-03", 1000))

	first, err := s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.Require().NoError(err)
	second, err := s.service.InitiateCharge(s.GetContext(), created.ID, testutil.LandlordID)
	s.Require().NoError(err)

	s.Equal(first.PaymentIntentID, second.PaymentIntentID)
	s.Equal(first.ClientSecret, second.ClientSecret)
	s.Len(s.GetGateway().Requests(), 1)
}

func (s *PaymentServiceSuite) TestInitiateCharge_ReplacesCanceledIntent() {
	created := s.create(rentRequest("2025-03", 1000))

	first, err := s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.Require().NoError(err)
	s.GetGateway().SetIntentStatus(first.PaymentIntentID, types.PaymentIntentStatusCanceled, "")

	second, err := s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.Require().NoError(err)
	s.NotEqual(first.PaymentIntentID, second.PaymentIntentID)

	requests := s.GetGateway().Requests()
	s.Require().Len(requests, 2)
	s.NotEqual(requests[0].IdempotencyKey, requests[1].IdempotencyKey)

	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(second.PaymentIntentID, lo.FromPtr(stored.StripePaymentIntentID))
}

func (s *PaymentServiceSuite) TestInitiateCharge_SucceededIntentIsNotReused() {
	created := s.create(rentRequest("2025-03", 1000))

	first, err := s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.Require().NoError(err)
	s.GetGateway().SetIntentStatus(first.PaymentIntentID, types.PaymentIntentStatusSucceeded, "")

	resp, err := s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.Error(err)
	s.Nil(resp)
	s.True(ierr.IsInvalidOperation(err))
	s.Len(s.GetGateway().Requests(), 1)
}

func (s *PaymentServiceSuite) TestInitiateCharge_Errors() {
	created := s.create(rentRequest("2025-03", 1000))

	_, err := s.service.InitiateCharge(s.GetContext(), "pay_missing", testutil.TenantID)
	s.True(ierr.IsNotFound(err))

	_, err = s.service.InitiateCharge(s.GetContext(), created.ID, testutil.StrangerID)
	s.True(ierr.IsPermissionDenied(err))

	s.GetGateway().CreateErr = ierr.NewError("card network down").
		WithHint("Payment processing failed, please try again").
		Mark(ierr.ErrSystem)
	_, err = s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.Error(err)
	s.Equal(500, ierr.HTTPStatusFromErr(err))

	// the record stays recoverable
	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, stored.Status)
	s.Nil(stored.StripePaymentIntentID)

	s.GetGateway().CreateErr = nil
	_, err = s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.NoError(err)
}

func (s *PaymentServiceSuite) TestCancel() {
	created := s.create(rentRequest("2025-03", 1000))

	_, err := s.service.Cancel(s.GetContext(), created.ID, testutil.TenantID)
	s.True(ierr.IsPermissionDenied(err))

	resp, err := s.service.Cancel(s.GetContext(), created.ID, testutil.LandlordID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusCancelled, resp.Status)
	s.NotNil(resp.CancelledAt)

	_, err = s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.Cancel(s.GetContext(), created.ID, testutil.LandlordID)
	s.True(ierr.IsInvalidOperation(err))

	s.notifier.Wait()
	s.Contains(s.GetPublisher().EventTypes(), types.NotificationPaymentCancelled)
}

func (s *PaymentServiceSuite) TestCancel_PaidIsTerminal() {
	created := s.create(rentRequest("2025-03", 1000))
	s.Require().NoError(s.GetStores().PaymentRepo.UpdateStatus(s.GetContext(), created.ID, paidUpdate()))

	_, err := s.service.Cancel(s.GetContext(), created.ID, testutil.LandlordID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.InitiateCharge(s.GetContext(), created.ID, testutil.TenantID)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestGetPayment() {
	created := s.create(rentRequest("2025-03", 1000))

	resp, err := s.service.GetPayment(s.GetContext(), created.ID, testutil.TenantID)
	s.Require().NoError(err)
	s.Equal(created.ID, resp.ID)

	_, err = s.service.GetPayment(s.GetContext(), created.ID, testutil.StrangerID)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *PaymentServiceSuite) TestListPaymentsNewestFirst() {
	for _, period := range []string{"2025-01", "2025-02", "2025-03"} {
		s.create(rentRequest(period, 1000))
	}

	tenantList, err := s.service.ListTenantPayments(s.GetContext(), testutil.TenantID)
	s.Require().NoError(err)
	s.Equal(3, tenantList.Total)
	s.Equal([]string{"2025-03", "2025-02", "2025-01"}, lo.Map(tenantList.Items, func(p *dto.PaymentResponse, _ int) string {
		return p.Period
	}))

	landlordList, err := s.service.ListLandlordPayments(s.GetContext(), testutil.LandlordID)
	s.Require().NoError(err)
	s.Len(landlordList.Items, 3)

	empty, err := s.service.ListTenantPayments(s.GetContext(), testutil.OtherTenantID)
	s.Require().NoError(err)
	s.Empty(empty.Items)
}

func (s *PaymentServiceSuite) TestEnrich_FallsBackOnLookupFailure() {
	created := s.create(rentRequest("2025-03", 1000))
	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)

	stored.LandlordID = "usr_deleted"
	resp := s.service.Enrich(s.GetContext(), stored)
	s.Equal(stored.ID, resp.ID)
	s.Nil(resp.Tenant)
	s.Nil(resp.Landlord)
	s.Nil(resp.Property)
}

func (s *PaymentServiceSuite) TestEnrich_UsesCache() {
	created := s.create(rentRequest("2025-03", 1000))
	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)

	before := s.GetStores().UserRepo.GetCount()
	s.service.Enrich(s.GetContext(), stored)
	s.service.Enrich(s.GetContext(), stored)
	s.Equal(before, s.GetStores().UserRepo.GetCount())
}

func (s *PaymentServiceSuite) TestNotificationFailureDoesNotFailOperation() {
	s.GetPublisher().Err = errors.New("broker unavailable")
	s.create(rentRequest("2025-03", 1000))

	s.GetPublisher().Err = nil
	s.GetPublisher().Panic = true
	s.create(rentRequest("2025-04", 1000))
	s.notifier.Wait()
	s.Empty(s.GetPublisher().Events())
}
