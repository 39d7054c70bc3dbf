package api

import (
	"errors"
	"net/http"
	"time"

	"referral_platform/internal/model"
	"referral_platform/internal/service"
	"referral_platform/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type paymentRoutes struct {
	ps service.PaymentServiceI
}

func NewPaymentRoutes(handler *gin.RouterGroup, ps service.PaymentServiceI) {
	r := &paymentRoutes{ps: ps}
	h := handler.Group("/payments")
	{
		h.POST("", r.CreatePayment)
		h.POST("/:payment_id/fail", r.FailPayment)
	}
}

type CreatePaymentRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency"`
	Provider    string `json:"provider"`
	ProviderID  string `json:"provider_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

type PaymentResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Provider    string     `json:"provider,omitempty"`
	ProviderID  string     `json:"provider_id,omitempty"`
	ProductID   string     `json:"product_id,omitempty"`
	ProductName string     `json:"product_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toPaymentResponse(p *model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Amount:      money(p.Amount),
		Currency:    p.Currency,
		Status:      string(p.Status),
		Provider:    p.Provider,
		ProviderID:  p.ProviderID,
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (r *paymentRoutes) CreatePayment(c *gin.Context) {
	log := logger.Logger()

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		log.Error("failed to parse amount", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	p := &model.Payment{
		UserID:      req.UserID,
		Amount:      amount,
		Currency:    req.Currency,
		Provider:    req.Provider,
		ProviderID:  req.ProviderID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
	}

	if err := r.ps.CreatePayment(c.Request.Context(), p); err != nil {
		log.Error("failed to create payment", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment"})
		}
		return
	}

	c.JSON(http.StatusCreated, toPaymentResponse(p))
}

func (r *paymentRoutes) FailPayment(c *gin.Context) {
	log := logger.Logger()

	payment, err := r.ps.FailPayment(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		log.Error("failed to mark payment failed", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		case errors.Is(err, service.ErrPaymentCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "payment is already completed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update payment"})
		}
		return
	}

	c.JSON(http.StatusOK, toPaymentResponse(payment))
}
