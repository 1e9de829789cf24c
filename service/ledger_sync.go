package service

import (
	"context"
	"fmt"

	"casino/events"
	"casino/models"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
)

// LedgerSync reconciles the optimistic session state with the durable
// record. Writes are submitted to a worker pool and attempted exactly once
// per transition; a failed write is logged and the local state stays
// authoritative until the next Refresh.
type LedgerSync struct {
	uowFactory UnitOfWorkFactory
	pool       *ants.Pool
}

// NewLedgerSync creates a ledger sync backed by a worker pool of the given size.
func NewLedgerSync(uowFactory UnitOfWorkFactory, workers int) (*LedgerSync, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger worker pool: %w", err)
	}
	return &LedgerSync{
		uowFactory: uowFactory,
		pool:       pool,
	}, nil
}

// Close waits for queued writes to drain and releases the pool.
func (l *LedgerSync) Close() {
	l.pool.Release()
}

func (l *LedgerSync) submit(description string, fn func(ctx context.Context) error) {
	err := l.pool.Submit(func() {
		if err := fn(context.Background()); err != nil {
			log.WithFields(log.Fields{
				"operation": description,
			}).WithError(err).Error("Ledger sync write failed")
		}
	})
	if err != nil {
		log.WithFields(log.Fields{
			"operation": description,
		}).WithError(err).Error("Ledger sync submit failed")
	}
}

// RecordPlacement persists a pending bet and its stake deduction.
func (l *LedgerSync) RecordPlacement(bet models.Bet, balanceBefore, balanceAfter int64) {
	l.submit("placement", func(ctx context.Context) error {
		uow := l.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if err := uow.BetRepository().Create(ctx, &bet); err != nil {
			return fmt.Errorf("failed to persist bet: %w", err)
		}

		if err := uow.ProfileRepository().DebitBalance(ctx, bet.UserID, bet.Amount, bet.IsDemo); err != nil {
			return fmt.Errorf("failed to debit stake: %w", err)
		}

		history := &models.BalanceHistory{
			UserID:          bet.UserID,
			BalanceBefore:   balanceBefore,
			BalanceAfter:    balanceAfter,
			ChangeAmount:    -bet.Amount,
			IsDemo:          bet.IsDemo,
			TransactionType: models.TransactionTypeBetStake,
			TransactionMetadata: map[string]any{
				"game": string(bet.Game),
			},
			RelatedBetID: &bet.ID,
		}
		if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
			return fmt.Errorf("failed to record balance change: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// RecordSettlement persists a bet's terminal state and its payout credit.
func (l *LedgerSync) RecordSettlement(bet models.Bet, balanceBefore, balanceAfter int64) {
	l.submit("settlement", func(ctx context.Context) error {
		uow := l.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if err := uow.BetRepository().Settle(ctx, bet.ID, bet.Multiplier, bet.Payout, bet.Status, *bet.SettledAt); err != nil {
			return fmt.Errorf("failed to settle bet: %w", err)
		}

		if bet.Payout > 0 {
			if err := uow.ProfileRepository().CreditBalance(ctx, bet.UserID, bet.Payout, bet.IsDemo); err != nil {
				return fmt.Errorf("failed to credit payout: %w", err)
			}
		}

		history := &models.BalanceHistory{
			UserID:          bet.UserID,
			BalanceBefore:   balanceBefore,
			BalanceAfter:    balanceAfter,
			ChangeAmount:    bet.Payout,
			IsDemo:          bet.IsDemo,
			TransactionType: models.TransactionTypeBetPayout,
			TransactionMetadata: map[string]any{
				"game":       string(bet.Game),
				"multiplier": bet.Multiplier,
				"status":     string(bet.Status),
			},
			RelatedBetID: &bet.ID,
		}
		if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
			return fmt.Errorf("failed to record balance change: %w", err)
		}

		uow.EventBus().Publish(events.BetSettledEvent{
			UserID:     bet.UserID,
			BetID:      bet.ID,
			Game:       bet.Game,
			Amount:     bet.Amount,
			Multiplier: bet.Multiplier,
			Payout:     bet.Payout,
			Won:        bet.Status == models.BetStatusWin,
		})

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// RecordRefill persists a demo balance reset.
func (l *LedgerSync) RecordRefill(userID uuid.UUID, balanceBefore, amount int64) {
	l.submit("demo refill", func(ctx context.Context) error {
		uow := l.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if err := uow.ProfileRepository().SetDemoBalance(ctx, userID, amount); err != nil {
			return fmt.Errorf("failed to set demo balance: %w", err)
		}

		history := &models.BalanceHistory{
			UserID:          userID,
			BalanceBefore:   balanceBefore,
			BalanceAfter:    amount,
			ChangeAmount:    amount - balanceBefore,
			IsDemo:          true,
			TransactionType: models.TransactionTypeDemoRefill,
		}
		if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
			return fmt.Errorf("failed to record balance change: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// RecordModeChange persists the active-balance selector.
func (l *LedgerSync) RecordModeChange(userID uuid.UUID, isDemo bool) {
	l.submit("mode change", func(ctx context.Context) error {
		uow := l.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if err := uow.ProfileRepository().SetMode(ctx, userID, isDemo); err != nil {
			return fmt.Errorf("failed to set mode: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// Refresh re-reads the durable profile and overwrites the session wallet
// with it. The durable value wins once available.
func (l *LedgerSync) Refresh(ctx context.Context, session *Session) error {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	profile, err := uow.ProfileRepository().GetByID(ctx, session.UserID())
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return fmt.Errorf("profile %s not found", session.UserID())
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	session.ApplyDurable(profile)
	return nil
}
