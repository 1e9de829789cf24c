package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeBetStake         TransactionType = "bet_stake"
	TransactionTypeBetPayout        TransactionType = "bet_payout"
	TransactionTypeDeposit          TransactionType = "deposit"
	TransactionTypeWithdrawal       TransactionType = "withdrawal"
	TransactionTypeWithdrawalReturn TransactionType = "withdrawal_return"
	TransactionTypeDemoRefill       TransactionType = "demo_refill"
	TransactionTypeAdminAdjustment  TransactionType = "admin_adjustment"
)

// BalanceHistory represents a historical balance change on the real or
// demo balance. Amounts are in cents.
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              uuid.UUID       `db:"user_id"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	IsDemo              bool            `db:"is_demo"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedBetID        *uuid.UUID      `db:"related_bet_id"`
	CreatedAt           time.Time       `db:"created_at"`
}
