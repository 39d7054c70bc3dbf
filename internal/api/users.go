package api

import (
	"errors"
	"net/http"
	"time"

	"referral_platform/internal/model"
	"referral_platform/internal/notify"
	"referral_platform/internal/service"
	"referral_platform/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type userRoutes struct {
	us  service.UserServiceI
	rs  service.ReferralServiceI
	ps  service.PaymentServiceI
	hub *notify.Hub
}

func NewUserRoutes(
	handler *gin.RouterGroup,
	us service.UserServiceI,
	rs service.ReferralServiceI,
	ps service.PaymentServiceI,
	hub *notify.Hub,
) {
	r := &userRoutes{us: us, rs: rs, ps: ps, hub: hub}
	h := handler.Group("/users")
	{
		h.POST("", r.RegisterUser)
		h.GET("/:user_id", r.GetUser)
		h.GET("/:user_id/wallet", r.GetWalletBalance)
		h.GET("/:user_id/referrals", r.GetReferredUsers)
		h.GET("/:user_id/commissions", r.GetCommissions)
		h.GET("/:user_id/earnings", r.GetEarningsSummary)
		h.GET("/:user_id/payments", r.GetUserPayments)
		h.GET("/:user_id/ws", r.handleWebSocket)
	}
}

type RegisterUserRequest struct {
	ID           string  `json:"id"`
	FullName     string  `json:"full_name" binding:"required"`
	Email        string  `json:"email" binding:"required,email"`
	ReferralCode *string `json:"referral_code"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	WalletBalance string    `json:"wallet_balance"`
	ReferralCode  string    `json:"referral_code"`
	ReferredBy    *string   `json:"referred_by"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		FullName:      u.FullName,
		Email:         u.Email,
		WalletBalance: money(u.WalletBalance),
		ReferralCode:  u.ReferralCode,
		ReferredBy:    u.ReferredBy,
		CreatedAt:     u.CreatedAt,
	}
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	u := &model.User{
		ID:         req.ID,
		FullName:   req.FullName,
		Email:      req.Email,
		ReferredBy: req.ReferralCode,
	}

	err := r.us.RegisterUser(c.Request.Context(), u)
	if err != nil {
		log.Error("failed to register user", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrInvalidReferralCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referral code"})
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		}
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(u))
}

func (r *userRoutes) GetUser(c *gin.Context) {
	log := logger.Logger()

	user, err := r.us.GetUserByID(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		log.Error("failed to get user", zap.Error(err))
		respondUserError(c, err, "failed to get user")
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (r *userRoutes) GetWalletBalance(c *gin.Context) {
	log := logger.Logger()

	balance, err := r.us.GetWalletBalance(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		log.Error("failed to get wallet balance", zap.Error(err))
		respondUserError(c, err, "failed to get wallet balance")
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": money(balance)})
}

type referredUserResponse struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	ReferralCode string    `json:"referral_code"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *userRoutes) GetReferredUsers(c *gin.Context) {
	log := logger.Logger()

	users, err := r.rs.GetReferredUsers(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		log.Error("failed to get referred users", zap.Error(err))
		respondUserError(c, err, "failed to get referred users")
		return
	}

	out := make([]referredUserResponse, len(users))
	for i, u := range users {
		out[i] = referredUserResponse{
			ID:           u.ID,
			FullName:     u.FullName,
			ReferralCode: u.ReferralCode,
			CreatedAt:    u.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

type CommissionResponse struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	PaymentID  string    `json:"payment_id"`
	Level      int       `json:"level"`
	Amount     string    `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *userRoutes) GetCommissions(c *gin.Context) {
	log := logger.Logger()

	commissions, err := r.rs.GetCommissionsEarned(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		log.Error("failed to get commissions", zap.Error(err))
		respondUserError(c, err, "failed to get commissions")
		return
	}

	out := make([]CommissionResponse, len(commissions))
	for i, cm := range commissions {
		out[i] = CommissionResponse{
			ID:         cm.ID,
			FromUserID: cm.FromUserID,
			ToUserID:   cm.ToUserID,
			PaymentID:  cm.PaymentID,
			Level:      cm.Level,
			Amount:     money(cm.Amount),
			CreatedAt:  cm.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

type levelEarningsResponse struct {
	Level int    `json:"level"`
	Count int    `json:"count"`
	Total string `json:"total"`
}

func (r *userRoutes) GetEarningsSummary(c *gin.Context) {
	log := logger.Logger()

	summary, err := r.rs.GetEarningsSummary(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		log.Error("failed to get earnings summary", zap.Error(err))
		respondUserError(c, err, "failed to get earnings summary")
		return
	}

	levels := make([]levelEarningsResponse, len(summary.Levels))
	for i, l := range summary.Levels {
		levels[i] = levelEarningsResponse{
			Level: l.Level,
			Count: l.Count,
			Total: money(l.Total),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": summary.UserID,
		"levels":  levels,
		"total":   money(summary.Total),
	})
}

func (r *userRoutes) GetUserPayments(c *gin.Context) {
	log := logger.Logger()

	payments, err := r.ps.GetUserPayments(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		log.Error("failed to get user payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get payments"})
		return
	}

	out := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = toPaymentResponse(p)
	}

	c.JSON(http.StatusOK, out)
}

func (r *userRoutes) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	userID := c.Param("user_id")
	if _, err := r.us.GetUserByID(c.Request.Context(), userID); err != nil {
		log.Error("failed to get user", zap.Error(err))
		respondUserError(c, err, "failed to get user")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	go r.hub.Serve(userID, conn)
}

func respondUserError(c *gin.Context, err error, msg string) {
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
