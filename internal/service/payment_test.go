package service

import (
	"context"
	"testing"

	"referral_platform/internal/model"
	"referral_platform/internal/repository"
	"referral_platform/internal/service/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPaymentService_CreatePayment(t *testing.T) {
	tests := []struct {
		name          string
		payment       *model.Payment
		mockSetup     func(m *mocks.MockPaymentRepository)
		expectedError error
	}{
		{
			name:          "Zero amount",
			payment:       &model.Payment{UserID: "u1", Amount: decimal.Zero},
			mockSetup:     func(m *mocks.MockPaymentRepository) {},
			expectedError: ErrInvalidAmount,
		},
		{
			name:          "Negative amount",
			payment:       &model.Payment{UserID: "u1", Amount: decimal.RequireFromString("-5")},
			mockSetup:     func(m *mocks.MockPaymentRepository) {},
			expectedError: ErrInvalidAmount,
		},
		{
			name:    "Unknown user",
			payment: &model.Payment{UserID: "ghost", Amount: decimal.RequireFromString("10")},
			mockSetup: func(m *mocks.MockPaymentRepository) {
				m.On("GetUserByID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrUserNotFound,
		},
		{
			name:    "Created pending",
			payment: &model.Payment{UserID: "u1", Amount: decimal.RequireFromString("10.005")},
			mockSetup: func(m *mocks.MockPaymentRepository) {
				m.On("GetUserByID", mock.Anything, "u1").Return(&model.User{ID: "u1"}, nil)
				m.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *model.Payment) bool {
					return p.ID != "" &&
						p.Status == model.PaymentStatusPending &&
						p.Currency == defaultCurrency &&
						p.Amount.StringFixed(2) == "10.01"
				})).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mocks.MockPaymentRepository{}
			tt.mockSetup(mockRepo)
			service := NewPaymentService(mockRepo)

			err := service.CreatePayment(context.Background(), tt.payment)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestPaymentService_CompletePayment(t *testing.T) {
	tests := []struct {
		name          string
		transitioned  bool
		stored        *model.Payment
		storedErr     error
		expectedError error
	}{
		{
			name:         "Pending becomes completed",
			transitioned: true,
			stored:       &model.Payment{ID: "p1", Status: model.PaymentStatusCompleted},
		},
		{
			name:   "Already completed",
			stored: &model.Payment{ID: "p1", Status: model.PaymentStatusCompleted},
		},
		{
			name:          "Failed payment",
			stored:        &model.Payment{ID: "p1", Status: model.PaymentStatusFailed},
			expectedError: ErrPaymentFailed,
		},
		{
			name:          "Unknown payment",
			storedErr:     repository.ErrNotFound,
			expectedError: ErrPaymentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mocks.MockPaymentRepository{}
			mockRepo.On("MarkPaymentCompleted", mock.Anything, "p1", mock.AnythingOfType("time.Time")).
				Return(tt.transitioned, nil)
			if tt.storedErr != nil {
				mockRepo.On("GetPaymentByID", mock.Anything, "p1").Return(nil, tt.storedErr)
			} else {
				mockRepo.On("GetPaymentByID", mock.Anything, "p1").Return(tt.stored, nil)
			}
			service := NewPaymentService(mockRepo)

			payment, err := service.CompletePayment(context.Background(), "p1")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, payment)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, model.PaymentStatusCompleted, payment.Status)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestPaymentService_CompleteByProvider(t *testing.T) {
	mockRepo := &mocks.MockPaymentRepository{}
	service := NewPaymentService(mockRepo)

	mockRepo.On("GetPaymentByProvider", mock.Anything, "razorpay", "order_1").
		Return(&model.Payment{ID: "p1", Status: model.PaymentStatusPending}, nil)
	mockRepo.On("GetPaymentByProvider", mock.Anything, "razorpay", "order_2").
		Return(nil, repository.ErrNotFound)
	mockRepo.On("MarkPaymentCompleted", mock.Anything, "p1", mock.AnythingOfType("time.Time")).
		Return(true, nil)
	mockRepo.On("GetPaymentByID", mock.Anything, "p1").
		Return(&model.Payment{ID: "p1", Status: model.PaymentStatusCompleted}, nil)

	payment, err := service.CompleteByProvider(context.Background(), "razorpay", "order_1")
	assert.NoError(t, err)
	assert.Equal(t, "p1", payment.ID)

	_, err = service.CompleteByProvider(context.Background(), "razorpay", "order_2")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	mockRepo.AssertExpectations(t)
}

func TestPaymentService_FailPayment(t *testing.T) {
	mockRepo := &mocks.MockPaymentRepository{}
	service := NewPaymentService(mockRepo)

	mockRepo.On("MarkPaymentFailed", mock.Anything, "pending").Return(true, nil)
	mockRepo.On("GetPaymentByID", mock.Anything, "pending").
		Return(&model.Payment{ID: "pending", Status: model.PaymentStatusFailed}, nil)
	mockRepo.On("MarkPaymentFailed", mock.Anything, "done").Return(false, nil)
	mockRepo.On("GetPaymentByID", mock.Anything, "done").
		Return(&model.Payment{ID: "done", Status: model.PaymentStatusCompleted}, nil)

	payment, err := service.FailPayment(context.Background(), "pending")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)

	_, err = service.FailPayment(context.Background(), "done")
	assert.ErrorIs(t, err, ErrPaymentCompleted)

	mockRepo.AssertExpectations(t)
}
