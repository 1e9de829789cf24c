package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"casino/clock"
	"casino/events"
	"casino/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newPaymentHarness() (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockProfileRepository, *MockTransactionRepository, *MockBalanceHistoryRepository, *MockEventPublisher, *MockPaymentGateway, *clock.Fake) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockProfileRepo := new(MockProfileRepository)
	mockTxRepo := new(MockTransactionRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)
	mockPublisher := new(MockEventPublisher)
	mockGateway := new(MockPaymentGateway)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	mockUoW.SetRepositories(mockProfileRepo, nil, mockTxRepo, mockHistoryRepo, mockPublisher)
	mockFactory.On("Create").Return(mockUoW)

	return mockUoW, mockFactory, mockProfileRepo, mockTxRepo, mockHistoryRepo, mockPublisher, mockGateway, clk
}

func TestPaymentService_Deposit_CreatesPendingTransaction(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, _, mockTxRepo, _, _, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	userID := uuid.New()
	mockGateway.On("InitiateSTKPush", ctx, "254712345678", int64(50000), userID.String()).
		Return("ws_CO_123", "merchant_456", nil)

	mockTxRepo.On("Create", ctx, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.UserID == userID &&
			tx.Kind == models.TransactionKindDeposit &&
			tx.Amount == 50000 &&
			tx.Status == models.TransactionStatusPending &&
			*tx.CheckoutRequestID == "ws_CO_123" &&
			*tx.MerchantRequestID == "merchant_456"
	})).Return(nil)

	service := NewPaymentService(mockFactory, mockGateway, clk)

	tx, err := service.Deposit(ctx, userID, "254712345678", 50000)

	assert.NoError(t, err)
	assert.NotNil(t, tx)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Equal(t, clk.Now(), tx.CreatedAt)

	mockGateway.AssertExpectations(t)
	mockTxRepo.AssertExpectations(t)
}

func TestPaymentService_Deposit_GatewayFailure(t *testing.T) {
	ctx := context.Background()
	_, mockFactory, _, mockTxRepo, _, _, mockGateway, clk := newPaymentHarness()

	userID := uuid.New()
	mockGateway.On("InitiateSTKPush", ctx, "254712345678", int64(50000), userID.String()).
		Return("", "", errors.New("daraja unreachable"))

	service := NewPaymentService(mockFactory, mockGateway, clk)

	_, err := service.Deposit(ctx, userID, "254712345678", 50000)

	assert.ErrorIs(t, err, ErrGatewayFailure)
	mockTxRepo.AssertNotCalled(t, "Create")
}

func TestPaymentService_Deposit_InvalidAmount(t *testing.T) {
	ctx := context.Background()
	_, mockFactory, _, _, _, _, mockGateway, clk := newPaymentHarness()

	service := NewPaymentService(mockFactory, mockGateway, clk)

	_, err := service.Deposit(ctx, uuid.New(), "254712345678", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.Deposit(ctx, uuid.New(), "254712345678", -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	mockGateway.AssertNotCalled(t, "InitiateSTKPush")
}

func TestPaymentService_HandleCallback_Success(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockProfileRepo, mockTxRepo, mockHistoryRepo, mockPublisher, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	userID := uuid.New()
	checkoutID := "ws_CO_123"
	pending := &models.Transaction{
		ID:                uuid.New(),
		UserID:            userID,
		Kind:              models.TransactionKindDeposit,
		Amount:            50000,
		Status:            models.TransactionStatusPending,
		CheckoutRequestID: &checkoutID,
	}
	receipt := "SDQ7K1XMPL"

	mockTxRepo.On("GetByCheckoutRequestID", ctx, checkoutID).Return(pending, nil)
	mockTxRepo.On("Complete", ctx, pending.ID, &receipt, clk.Now()).Return(true, nil)
	mockProfileRepo.On("CreditBalance", ctx, userID, int64(50000), false).Return(nil)
	mockProfileRepo.On("GetByID", ctx, userID).Return(&models.Profile{ID: userID, Balance: 60000}, nil)
	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.UserID == userID &&
			h.BalanceBefore == 10000 &&
			h.BalanceAfter == 60000 &&
			h.ChangeAmount == 50000 &&
			h.TransactionType == models.TransactionTypeDeposit
	})).Return(nil)
	mockPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		deposit, ok := e.(events.DepositCompletedEvent)
		return ok && deposit.UserID == userID && deposit.Amount == 50000 && deposit.ReceiptNumber == receipt
	}))

	service := NewPaymentService(mockFactory, mockGateway, clk)

	err := service.HandleCallback(ctx, CallbackResult{
		CheckoutRequestID: checkoutID,
		ResultCode:        0,
		ReceiptNumber:     &receipt,
	})

	assert.NoError(t, err)
	mockTxRepo.AssertExpectations(t)
	mockProfileRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestPaymentService_HandleCallback_DuplicateNeverCreditsTwice(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockProfileRepo, mockTxRepo, _, mockPublisher, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	userID := uuid.New()
	checkoutID := "ws_CO_123"
	completed := &models.Transaction{
		ID:                uuid.New(),
		UserID:            userID,
		Kind:              models.TransactionKindDeposit,
		Amount:            50000,
		Status:            models.TransactionStatusCompleted,
		CheckoutRequestID: &checkoutID,
	}
	receipt := "SDQ7K1XMPL"

	mockTxRepo.On("GetByCheckoutRequestID", ctx, checkoutID).Return(completed, nil)
	// The conditional transition reports that nothing changed.
	mockTxRepo.On("Complete", ctx, completed.ID, &receipt, clk.Now()).Return(false, nil)

	service := NewPaymentService(mockFactory, mockGateway, clk)

	err := service.HandleCallback(ctx, CallbackResult{
		CheckoutRequestID: checkoutID,
		ResultCode:        0,
		ReceiptNumber:     &receipt,
	})

	assert.NoError(t, err)
	mockProfileRepo.AssertNotCalled(t, "CreditBalance")
	mockPublisher.AssertNotCalled(t, "Publish")
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestPaymentService_HandleCallback_FailureCode(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockProfileRepo, mockTxRepo, _, _, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	checkoutID := "ws_CO_123"
	pending := &models.Transaction{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		Kind:              models.TransactionKindDeposit,
		Amount:            50000,
		Status:            models.TransactionStatusPending,
		CheckoutRequestID: &checkoutID,
	}

	mockTxRepo.On("GetByCheckoutRequestID", ctx, checkoutID).Return(pending, nil)
	mockTxRepo.On("Fail", ctx, pending.ID, clk.Now()).Return(true, nil)

	service := NewPaymentService(mockFactory, mockGateway, clk)

	err := service.HandleCallback(ctx, CallbackResult{
		CheckoutRequestID: checkoutID,
		ResultCode:        1032,
		ResultDescription: "Request cancelled by user",
	})

	assert.NoError(t, err)
	mockProfileRepo.AssertNotCalled(t, "CreditBalance")
	mockTxRepo.AssertExpectations(t)
}

func TestPaymentService_HandleCallback_UnknownCheckoutID(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, _, mockTxRepo, _, _, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockTxRepo.On("GetByCheckoutRequestID", ctx, "ws_CO_unknown").Return(nil, nil)

	service := NewPaymentService(mockFactory, mockGateway, clk)

	err := service.HandleCallback(ctx, CallbackResult{CheckoutRequestID: "ws_CO_unknown", ResultCode: 0})

	assert.Error(t, err)
}

func TestPaymentService_Withdraw_DeductsImmediately(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockProfileRepo, mockTxRepo, mockHistoryRepo, _, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	userID := uuid.New()
	mockProfileRepo.On("DebitBalance", ctx, userID, int64(20000), false).Return(nil)
	mockProfileRepo.On("GetByID", ctx, userID).Return(&models.Profile{ID: userID, Balance: 30000}, nil)

	mockTxRepo.On("Create", ctx, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.UserID == userID &&
			tx.Kind == models.TransactionKindWithdrawal &&
			tx.Amount == 20000 &&
			tx.Status == models.TransactionStatusPending
	})).Return(nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.ChangeAmount == -20000 &&
			h.BalanceBefore == 50000 &&
			h.BalanceAfter == 30000 &&
			h.TransactionType == models.TransactionTypeWithdrawal
	})).Return(nil)

	service := NewPaymentService(mockFactory, mockGateway, clk)

	tx, err := service.Withdraw(ctx, userID, "254712345678", 20000)

	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	mockProfileRepo.AssertExpectations(t)
	mockTxRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestPaymentService_Withdraw_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockProfileRepo, mockTxRepo, _, _, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	userID := uuid.New()
	mockProfileRepo.On("DebitBalance", ctx, userID, int64(999999), false).
		Return(fmt.Errorf("%w: have 100, need 999999", ErrInsufficientFunds))

	service := NewPaymentService(mockFactory, mockGateway, clk)

	_, err := service.Withdraw(ctx, userID, "254712345678", 999999)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	mockTxRepo.AssertNotCalled(t, "Create")
}

func TestPaymentService_Withdraw_InfraErrorNotMappedToInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockProfileRepo, mockTxRepo, _, _, mockGateway, clk := newPaymentHarness()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	userID := uuid.New()
	mockProfileRepo.On("DebitBalance", ctx, userID, int64(5000), false).
		Return(errors.New("connection reset by peer"))

	service := NewPaymentService(mockFactory, mockGateway, clk)

	_, err := service.Withdraw(ctx, userID, "254712345678", 5000)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)
	mockTxRepo.AssertNotCalled(t, "Create")
}
