package service

import (
	"time"

	"github.com/rentwise/rentwise/internal/api/dto"
	"github.com/rentwise/rentwise/internal/domain/payment"
	"github.com/rentwise/rentwise/internal/testutil"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// newTestParams wires the in-memory stores and fakes of the base suite
func newTestParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		nil,
		s.GetCache(),
		stores.PaymentRepo,
		stores.UserRepo,
		stores.PropertyRepo,
		stores.LeaseRepo,
		s.GetGateway(),
		NewNotificationDispatcher(s.GetPublisher(), s.GetConfig(), s.GetLogger(), nil),
	)
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func rentRequest(period string, rent int64) dto.CreatePaymentRequest {
	return dto.CreatePaymentRequest{
		TenantID:   testutil.TenantID,
		PropertyID: testutil.PropertyID,
		Period:     period,
		RentAmount: amount(rent),
	}
}

func paidUpdate() *payment.StatusUpdate {
	return &payment.StatusUpdate{
		Status:         types.PaymentStatusPaid,
		ExpectedStatus: types.PaymentStatusPending,
		PaidAt:         lo.ToPtr(time.Now().UTC()),
	}
}
