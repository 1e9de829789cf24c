package repository

import (
	"context"
	"fmt"
	"time"

	"casino/database"
	"casino/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BetRepository implements the BetRepository interface
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

// Create inserts a pending bet record
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (id, user_id, game, amount, multiplier, payout, status, is_demo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		bet.ID,
		bet.UserID,
		bet.Game,
		bet.Amount,
		bet.Multiplier,
		bet.Payout,
		bet.Status,
		bet.IsDemo,
		bet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bet %s: %w", bet.ID, err)
	}

	return nil
}

// Settle finalizes a pending bet record. The status guard makes the write
// idempotent: a second settle for the same bet affects zero rows.
func (r *BetRepository) Settle(ctx context.Context, id uuid.UUID, multiplier float64, payout int64, status models.BetStatus, settledAt time.Time) error {
	if status != models.BetStatusWin && status != models.BetStatusLoss {
		return fmt.Errorf("status %q is not terminal", status)
	}

	query := `
		UPDATE bets
		SET multiplier = $1, payout = $2, status = $3, settled_at = $4
		WHERE id = $5 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, multiplier, payout, status, settledAt, id)
	if err != nil {
		return fmt.Errorf("failed to settle bet %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("bet %s is not pending", id)
	}

	return nil
}

// GetByID retrieves a bet by its ID
func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	query := `
		SELECT id, user_id, game, amount, multiplier, payout, status, is_demo, created_at, settled_at
		FROM bets
		WHERE id = $1
	`

	var bet models.Bet
	err := r.q.QueryRow(ctx, query, id).Scan(
		&bet.ID,
		&bet.UserID,
		&bet.Game,
		&bet.Amount,
		&bet.Multiplier,
		&bet.Payout,
		&bet.Status,
		&bet.IsDemo,
		&bet.CreatedAt,
		&bet.SettledAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet %s: %w", id, err)
	}

	return &bet, nil
}

// GetByUser returns the most recent bets for a user
func (r *BetRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Bet, error) {
	query := `
		SELECT id, user_id, game, amount, multiplier, payout, status, is_demo, created_at, settled_at
		FROM bets
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets for user %s: %w", userID, err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		var bet models.Bet
		err := rows.Scan(
			&bet.ID,
			&bet.UserID,
			&bet.Game,
			&bet.Amount,
			&bet.Multiplier,
			&bet.Payout,
			&bet.Status,
			&bet.IsDemo,
			&bet.CreatedAt,
			&bet.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, &bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}

	return bets, nil
}

// GetStats returns betting statistics for a user, excluding demo bets
func (r *BetRepository) GetStats(ctx context.Context, userID uuid.UUID) (*models.BetStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'win'),
			COUNT(*) FILTER (WHERE status = 'loss'),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(payout), 0),
			COALESCE(MAX(payout - amount) FILTER (WHERE status = 'win'), 0)
		FROM bets
		WHERE user_id = $1 AND NOT is_demo
	`

	var stats models.BetStats
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&stats.TotalBets,
		&stats.TotalWins,
		&stats.TotalLosses,
		&stats.TotalWagered,
		&stats.TotalPayout,
		&stats.BiggestWin,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet stats for user %s: %w", userID, err)
	}

	return &stats, nil
}
