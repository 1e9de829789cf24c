package service

import (
	"context"
	"errors"
	"fmt"

	"casino/clock"
	"casino/events"
	"casino/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type paymentService struct {
	uowFactory UnitOfWorkFactory
	gateway    PaymentGateway
	clock      clock.Clock
}

// NewPaymentService creates a new payment service
func NewPaymentService(uowFactory UnitOfWorkFactory, gateway PaymentGateway, clk clock.Clock) PaymentService {
	return &paymentService{
		uowFactory: uowFactory,
		gateway:    gateway,
		clock:      clk,
	}
}

// Deposit creates a pending deposit and asks the gateway to prompt the
// user's phone. Nothing is credited until the gateway callback confirms.
func (s *paymentService) Deposit(ctx context.Context, userID uuid.UUID, phoneNumber string, amount int64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	checkoutID, merchantID, err := s.gateway.InitiateSTKPush(ctx, phoneNumber, amount, userID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	tx := &models.Transaction{
		ID:                uuid.New(),
		UserID:            userID,
		Kind:              models.TransactionKindDeposit,
		Amount:            amount,
		Status:            models.TransactionStatusPending,
		Method:            "M-PESA",
		PhoneNumber:       phoneNumber,
		CheckoutRequestID: &checkoutID,
		MerchantRequestID: &merchantID,
		CreatedAt:         s.clock.Now(),
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.TransactionRepository().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create deposit record: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"amount":     amount,
		"checkoutID": checkoutID,
	}).Info("Deposit initiated")

	return tx, nil
}

// HandleCallback processes the asynchronous gateway confirmation. A result
// code of zero completes the deposit and credits the real balance exactly
// once; the conditional status transition makes replayed callbacks no-ops.
// Any other result code marks the deposit failed and never credits.
func (s *paymentService) HandleCallback(ctx context.Context, result CallbackResult) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx, err := uow.TransactionRepository().GetByCheckoutRequestID(ctx, result.CheckoutRequestID)
	if err != nil {
		return fmt.Errorf("failed to look up transaction: %w", err)
	}
	if tx == nil {
		return fmt.Errorf("no transaction for checkout request %s", result.CheckoutRequestID)
	}

	now := s.clock.Now()

	if result.ResultCode != 0 {
		failed, err := uow.TransactionRepository().Fail(ctx, tx.ID, now)
		if err != nil {
			return fmt.Errorf("failed to mark transaction failed: %w", err)
		}
		if failed {
			log.WithFields(log.Fields{
				"transactionID": tx.ID,
				"resultCode":    result.ResultCode,
				"resultDesc":    result.ResultDescription,
			}).Warn("Deposit failed at gateway")
		}
		return uow.Commit()
	}

	completed, err := uow.TransactionRepository().Complete(ctx, tx.ID, result.ReceiptNumber, now)
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	if !completed {
		// Replayed callback; the credit already happened.
		log.WithField("transactionID", tx.ID).Debug("Ignoring duplicate gateway callback")
		return uow.Rollback()
	}

	if err := uow.ProfileRepository().CreditBalance(ctx, tx.UserID, tx.Amount, false); err != nil {
		return fmt.Errorf("failed to credit deposit: %w", err)
	}

	profile, err := uow.ProfileRepository().GetByID(ctx, tx.UserID)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	history := &models.BalanceHistory{
		UserID:          tx.UserID,
		BalanceBefore:   profile.Balance - tx.Amount,
		BalanceAfter:    profile.Balance,
		ChangeAmount:    tx.Amount,
		TransactionType: models.TransactionTypeDeposit,
		TransactionMetadata: map[string]any{
			"transaction_id": tx.ID.String(),
			"receipt":        result.ReceiptNumber,
		},
	}
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance change: %w", err)
	}

	receipt := ""
	if result.ReceiptNumber != nil {
		receipt = *result.ReceiptNumber
	}
	uow.EventBus().Publish(events.DepositCompletedEvent{
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		ReceiptNumber: receipt,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": tx.ID,
		"userID":        tx.UserID,
		"amount":        tx.Amount,
	}).Info("Deposit completed")

	return nil
}

// Withdraw deducts the amount immediately and creates a withdrawal
// awaiting operator approval. Rejection credits the amount back.
func (s *paymentService) Withdraw(ctx context.Context, userID uuid.UUID, phoneNumber string, amount int64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ProfileRepository().DebitBalance(ctx, userID, amount, false); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}

	profile, err := uow.ProfileRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	tx := &models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        models.TransactionKindWithdrawal,
		Amount:      amount,
		Status:      models.TransactionStatusPending,
		Method:      "M-PESA",
		PhoneNumber: phoneNumber,
		CreatedAt:   s.clock.Now(),
	}
	if err := uow.TransactionRepository().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal record: %w", err)
	}

	history := &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   profile.Balance + amount,
		BalanceAfter:    profile.Balance,
		ChangeAmount:    -amount,
		TransactionType: models.TransactionTypeWithdrawal,
		TransactionMetadata: map[string]any{
			"transaction_id": tx.ID.String(),
		},
	}
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to record balance change: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID": userID,
		"amount": amount,
	}).Info("Withdrawal requested")

	return tx, nil
}
