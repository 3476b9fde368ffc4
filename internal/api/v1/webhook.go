package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/service"
	"github.com/rentwise/rentwise/internal/types"
)

// maxWebhookBodyBytes caps the webhook body read into memory
const maxWebhookBodyBytes = 65536

type WebhookHandler struct {
	reconciliation service.ReconciliationService
	log            *logger.Logger
}

func NewWebhookHandler(reconciliation service.ReconciliationService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{reconciliation: reconciliation, log: log}
}

// HandleStripeWebhook verifies the exact request bytes against the
// Stripe-Signature header. The body must not be bound or re-encoded first.
// @Summary Processor webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Processor signature"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} ierr.ErrorResponse
// @Router /payments/webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	var tooLarge *http.MaxBytesError
	if ierr.As(err, &tooLarge) {
		c.Error(ierr.WithError(err).
			WithHintf("Webhook payload exceeds %d bytes", maxWebhookBodyBytes).
			WithReportableDetails(map[string]any{
				"limit": tooLarge.Limit,
			}).
			Mark(ierr.ErrValidation))
		return
	}
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(types.HeaderStripeSignature)
	if err := h.reconciliation.HandleWebhook(c.Request.Context(), body, signature); err != nil {
		if ierr.IsWebhookVerification(err) {
			h.log.WithContext(c.Request.Context()).Warnw("rejected webhook", "error", err)
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
