package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentwise/rentwise/internal/api/dto"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/service"
	"github.com/rentwise/rentwise/internal/types"
)

type PaymentHandler struct {
	service        service.PaymentService
	reconciliation service.ReconciliationService
	log            *logger.Logger
}

func NewPaymentHandler(
	service service.PaymentService,
	reconciliation service.ReconciliationService,
	log *logger.Logger,
) *PaymentHandler {
	return &PaymentHandler{service: service, reconciliation: reconciliation, log: log}
}

// @Summary Create a rent payment request
// @Description Creates a pending payment. Also accepts the lease_id + amount shape.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payment body dto.CreatePaymentRequest true "Payment request"
// @Success 201 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /payments/create [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	var (
		resp *dto.PaymentResponse
		err  error
	)
	if req.IsLeaseShape() {
		resp, err = h.service.CreateLeasePayment(c.Request.Context(), *req.ToLeaseRequest())
	} else {
		resp, err = h.service.CreatePaymentRequest(c.Request.Context(), req.CreatePaymentRequest)
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Initiate the charge of a payment
// @Description Opens or reuses a processor payment intent and returns its client secret
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.InitiateChargeResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/pay/{id} [post]
func (h *PaymentHandler) InitiateCharge(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	h.initiateCharge(c, id)
}

// CreateCheckoutSession is the body keyed form of InitiateCharge
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var req dto.InitiateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}
	h.initiateCharge(c, req.PaymentID)
}

func (h *PaymentHandler) initiateCharge(c *gin.Context, id string) {
	ctx := c.Request.Context()
	resp, err := h.service.InitiateCharge(ctx, id, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Sync a payment with the processor
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.SyncPaymentResponse
// @Failure 429 {object} ierr.ErrorResponse
// @Router /payments/sync/{id} [post]
func (h *PaymentHandler) SyncPayment(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	resp, err := h.reconciliation.Sync(ctx, id, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Get a payment by ID
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	resp, err := h.service.GetPayment(ctx, id, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListTenantPayments lists the caller's payments as a tenant, newest first
func (h *PaymentHandler) ListTenantPayments(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.service.ListTenantPayments(ctx, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListLandlordPayments lists the caller's payments as a landlord, newest first
func (h *PaymentHandler) ListLandlordPayments(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.service.ListLandlordPayments(ctx, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a pending payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Router /payments/{id} [delete]
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	resp, err := h.service.Cancel(ctx, id, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func paymentIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Payment ID is required").
			Mark(ierr.ErrValidation))
		return "", false
	}
	return id, true
}
