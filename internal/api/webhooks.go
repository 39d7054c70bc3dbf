package api

import (
	"errors"
	"net/http"

	"referral_platform/internal/middleware"
	"referral_platform/internal/model"
	"referral_platform/internal/service"
	"referral_platform/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type webhookRoutes struct {
	ps service.PaymentServiceI
	ss service.SettlementServiceI
}

func NewWebhookRoutes(
	handler *gin.RouterGroup,
	ps service.PaymentServiceI,
	ss service.SettlementServiceI,
	auth *middleware.IngestAuthorization,
) {
	r := &webhookRoutes{ps: ps, ss: ss}
	h := handler.Group("/webhooks")
	h.Use(auth.InternalOnly())
	{
		h.POST("/payment-completed", r.PaymentCompleted)
	}
}

// PaymentCompletedEvent is the verified completion fact handed over by the
// provider integration. Only the payment reference is trusted; owner and
// amount are always read back from the stored payment.
type PaymentCompletedEvent struct {
	PaymentID  string `json:"payment_id"`
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
	UserID     string `json:"user_id"`
	Amount     string `json:"amount"`
}

type SettlementResponse struct {
	PaymentID      string `json:"payment_id"`
	Status         string `json:"status"`
	ChainLength    int    `json:"chain_length"`
	CreditedLevels int    `json:"credited_levels"`
	AlreadySettled int    `json:"already_settled"`
}

func (r *webhookRoutes) PaymentCompleted(c *gin.Context) {
	log := logger.Logger()

	var event PaymentCompletedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		log.Error("failed to bind payment event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if event.PaymentID == "" && (event.Provider == "" || event.ProviderID == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_id or provider and provider_id are required"})
		return
	}

	ctx := c.Request.Context()

	var (
		payment *model.Payment
		err     error
	)
	if event.PaymentID != "" {
		payment, err = r.ps.CompletePayment(ctx, event.PaymentID)
	} else {
		payment, err = r.ps.CompleteByProvider(ctx, event.Provider, event.ProviderID)
	}
	if err != nil {
		log.Error("failed to complete payment",
			zap.String("payment_id", event.PaymentID),
			zap.String("provider", event.Provider),
			zap.String("provider_id", event.ProviderID),
			zap.Error(err))
		respondPaymentEventError(c, err)
		return
	}

	result, err := r.ss.Settle(ctx, payment.ID)
	if err != nil {
		log.Error("failed to settle payment",
			zap.String("payment_id", payment.ID),
			zap.Error(err))
		respondPaymentEventError(c, err)
		return
	}

	status := "settled"
	switch {
	case result.ChainLength == 0:
		status = "no_referrers"
	case result.Noop():
		status = "already_settled"
	}

	c.JSON(http.StatusOK, SettlementResponse{
		PaymentID:      payment.ID,
		Status:         status,
		ChainLength:    result.ChainLength,
		CreditedLevels: len(result.Credited),
		AlreadySettled: result.AlreadySettled,
	})
}

func respondPaymentEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	case errors.Is(err, service.ErrPaymentFailed),
		errors.Is(err, service.ErrPaymentNotCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "payment is not in a completed state"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payment owner not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process payment event"})
	}
}
