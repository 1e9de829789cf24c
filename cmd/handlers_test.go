package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"casino/models"
	"casino/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) Deposit(ctx context.Context, userID uuid.UUID, phoneNumber string, amount int64) (*models.Transaction, error) {
	args := m.Called(ctx, userID, phoneNumber, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockPaymentService) HandleCallback(ctx context.Context, result service.CallbackResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *mockPaymentService) Withdraw(ctx context.Context, userID uuid.UUID, phoneNumber string, amount int64) (*models.Transaction, error) {
	args := m.Called(ctx, userID, phoneNumber, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func paymentBody(userID uuid.UUID, phone string, amount int64) *bytes.Buffer {
	body, _ := json.Marshal(paymentRequest{UserID: userID, PhoneNumber: phone, Amount: amount})
	return bytes.NewBuffer(body)
}

func TestDepositHandler_InitiatesPendingDeposit(t *testing.T) {
	payments := new(mockPaymentService)
	userID := uuid.New()

	pending := &models.Transaction{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   models.TransactionKindDeposit,
		Amount: 50000,
		Status: models.TransactionStatusPending,
	}
	payments.On("Deposit", mock.Anything, userID, "254712345678", int64(50000)).Return(pending, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/deposit", paymentBody(userID, "254712345678", 50000))
	rec := httptest.NewRecorder()

	depositHandler(payments)(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var got models.Transaction
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, pending.ID, got.ID)
	assert.Equal(t, models.TransactionStatusPending, got.Status)
	payments.AssertExpectations(t)
}

func TestDepositHandler_GatewayFailure(t *testing.T) {
	payments := new(mockPaymentService)
	userID := uuid.New()

	payments.On("Deposit", mock.Anything, userID, "254712345678", int64(50000)).
		Return(nil, fmt.Errorf("%w: connection refused", service.ErrGatewayFailure))

	req := httptest.NewRequest(http.MethodPost, "/payments/deposit", paymentBody(userID, "254712345678", 50000))
	rec := httptest.NewRecorder()

	depositHandler(payments)(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDepositHandler_RejectsMissingUser(t *testing.T) {
	payments := new(mockPaymentService)

	req := httptest.NewRequest(http.MethodPost, "/payments/deposit", paymentBody(uuid.Nil, "254712345678", 50000))
	rec := httptest.NewRecorder()

	depositHandler(payments)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payments.AssertNotCalled(t, "Deposit")
}

func TestDepositHandler_RejectsMalformedBody(t *testing.T) {
	payments := new(mockPaymentService)

	req := httptest.NewRequest(http.MethodPost, "/payments/deposit", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	depositHandler(payments)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payments.AssertNotCalled(t, "Deposit")
}

func TestWithdrawHandler_QueuesPendingWithdrawal(t *testing.T) {
	payments := new(mockPaymentService)
	userID := uuid.New()

	pending := &models.Transaction{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   models.TransactionKindWithdrawal,
		Amount: 20000,
		Status: models.TransactionStatusPending,
	}
	payments.On("Withdraw", mock.Anything, userID, "254712345678", int64(20000)).Return(pending, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/withdraw", paymentBody(userID, "254712345678", 20000))
	rec := httptest.NewRecorder()

	withdrawHandler(payments)(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var got models.Transaction
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.TransactionKindWithdrawal, got.Kind)
	payments.AssertExpectations(t)
}

func TestWithdrawHandler_InsufficientFunds(t *testing.T) {
	payments := new(mockPaymentService)
	userID := uuid.New()

	payments.On("Withdraw", mock.Anything, userID, "254712345678", int64(999999)).
		Return(nil, fmt.Errorf("%w: have 100, need 999999", service.ErrInsufficientFunds))

	req := httptest.NewRequest(http.MethodPost, "/payments/withdraw", paymentBody(userID, "254712345678", 999999))
	rec := httptest.NewRecorder()

	withdrawHandler(payments)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
