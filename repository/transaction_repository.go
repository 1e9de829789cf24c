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

// TransactionRepository implements the TransactionRepository interface
type TransactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

// newTransactionRepositoryWithTx creates a new transaction repository with a transaction
func newTransactionRepositoryWithTx(tx queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

const transactionColumns = `id, user_id, kind, amount, status, method, phone_number, checkout_request_id, merchant_request_id, receipt_number, created_at, completed_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Kind,
		&t.Amount,
		&t.Status,
		&t.Method,
		&t.PhoneNumber,
		&t.CheckoutRequestID,
		&t.MerchantRequestID,
		&t.ReceiptNumber,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, kind, amount, status, method, phone_number, checkout_request_id, merchant_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Kind,
		tx.Amount,
		tx.Status,
		tx.Method,
		tx.PhoneNumber,
		tx.CheckoutRequestID,
		tx.MerchantRequestID,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction %s: %w", tx.ID, err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}

	return tx, nil
}

// GetByCheckoutRequestID retrieves a transaction by the gateway's checkout request ID
func (r *TransactionRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE checkout_request_id = $1`

	tx, err := scanTransaction(r.q.QueryRow(ctx, query, checkoutRequestID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by checkout request %s: %w", checkoutRequestID, err)
	}

	return tx, nil
}

// Complete transitions a pending transaction to completed. The status guard
// makes the write idempotent: replayed callbacks affect zero rows.
func (r *TransactionRepository) Complete(ctx context.Context, id uuid.UUID, receiptNumber *string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE transactions
		SET status = 'completed', receipt_number = $1, completed_at = $2
		WHERE id = $3 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, receiptNumber, completedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to complete transaction %s: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// Fail transitions a pending transaction to failed
func (r *TransactionRepository) Fail(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	query := `
		UPDATE transactions
		SET status = 'failed', completed_at = $1
		WHERE id = $2 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, completedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to fail transaction %s: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// GetByUser returns the most recent transactions for a user
func (r *TransactionRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}

// GetPendingWithdrawals returns all withdrawals awaiting operator action
func (r *TransactionRepository) GetPendingWithdrawals(ctx context.Context) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE kind = 'withdrawal' AND status = 'pending'
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending withdrawals: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}
