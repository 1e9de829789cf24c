package service

import (
	"context"
	"fmt"

	"casino/clock"
	"casino/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type adminService struct {
	uowFactory UnitOfWorkFactory
	clock      clock.Clock
}

// NewAdminService creates a new admin service
func NewAdminService(uowFactory UnitOfWorkFactory, clk clock.Clock) AdminService {
	return &adminService{
		uowFactory: uowFactory,
		clock:      clk,
	}
}

// SetBalance force-sets a user's real balance and records the adjustment.
func (s *adminService) SetBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	profile, err := uow.ProfileRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return fmt.Errorf("profile %s not found", userID)
	}

	if err := uow.ProfileRepository().SetBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}

	history := &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   profile.Balance,
		BalanceAfter:    amount,
		ChangeAmount:    amount - profile.Balance,
		TransactionType: models.TransactionTypeAdminAdjustment,
	}
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance change: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"balance": amount,
	}).Info("Balance adjusted by operator")

	return nil
}

// SetSuspended suspends or reinstates a user.
func (s *adminService) SetSuspended(ctx context.Context, userID uuid.UUID, suspended bool) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ProfileRepository().SetSuspended(ctx, userID, suspended); err != nil {
		return fmt.Errorf("failed to update suspension: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"suspended": suspended,
	}).Info("Suspension updated")

	return nil
}

// ApproveWithdrawal completes a pending withdrawal. The funds were already
// deducted at request time, so approval only flips the status.
func (s *adminService) ApproveWithdrawal(ctx context.Context, transactionID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx, err := s.pendingWithdrawal(ctx, uow, transactionID)
	if err != nil {
		return err
	}

	completed, err := uow.TransactionRepository().Complete(ctx, tx.ID, nil, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to complete withdrawal: %w", err)
	}
	if !completed {
		return fmt.Errorf("%w: withdrawal %s is no longer pending", ErrInvalidStateTransition, tx.ID)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": tx.ID,
		"userID":        tx.UserID,
		"amount":        tx.Amount,
	}).Info("Withdrawal approved")

	return nil
}

// RejectWithdrawal fails a pending withdrawal and credits the deducted
// amount back to the user's real balance.
func (s *adminService) RejectWithdrawal(ctx context.Context, transactionID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx, err := s.pendingWithdrawal(ctx, uow, transactionID)
	if err != nil {
		return err
	}

	failed, err := uow.TransactionRepository().Fail(ctx, tx.ID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to fail withdrawal: %w", err)
	}
	if !failed {
		return fmt.Errorf("%w: withdrawal %s is no longer pending", ErrInvalidStateTransition, tx.ID)
	}

	if err := uow.ProfileRepository().CreditBalance(ctx, tx.UserID, tx.Amount, false); err != nil {
		return fmt.Errorf("failed to return funds: %w", err)
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
		TransactionType: models.TransactionTypeWithdrawalReturn,
		TransactionMetadata: map[string]any{
			"transaction_id": tx.ID.String(),
		},
	}
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance change: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": tx.ID,
		"userID":        tx.UserID,
		"amount":        tx.Amount,
	}).Info("Withdrawal rejected, funds returned")

	return nil
}

func (s *adminService) pendingWithdrawal(ctx context.Context, uow UnitOfWork, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := uow.TransactionRepository().GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %s not found", transactionID)
	}
	if tx.Kind != models.TransactionKindWithdrawal {
		return nil, fmt.Errorf("%w: transaction %s is not a withdrawal", ErrInvalidStateTransition, tx.ID)
	}
	return tx, nil
}
