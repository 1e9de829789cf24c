package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind distinguishes deposits from withdrawals
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

// TransactionStatus represents the lifecycle state of a payment transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction represents a mobile-money deposit or withdrawal.
// Deposits stay pending until the gateway callback confirms them;
// withdrawals stay pending until an operator approves or rejects them.
// Amounts are in cents.
type Transaction struct {
	ID                uuid.UUID         `db:"id"`
	UserID            uuid.UUID         `db:"user_id"`
	Kind              TransactionKind   `db:"kind"`
	Amount            int64             `db:"amount"`
	Status            TransactionStatus `db:"status"`
	Method            string            `db:"method"`
	PhoneNumber       string            `db:"phone_number"`
	CheckoutRequestID *string           `db:"checkout_request_id"`
	MerchantRequestID *string           `db:"merchant_request_id"`
	ReceiptNumber     *string           `db:"receipt_number"`
	CreatedAt         time.Time         `db:"created_at"`
	CompletedAt       *time.Time        `db:"completed_at"`
}

// IsPending reports whether the transaction is still awaiting resolution.
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}
