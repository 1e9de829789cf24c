package testutil

import (
	"time"

	"casino/models"

	"github.com/google/uuid"
)

// CreateTestBet creates a pending bet with default values
func CreateTestBet(userID uuid.UUID, game models.Game, amount int64) *models.Bet {
	return &models.Bet{
		ID:        uuid.New(),
		UserID:    userID,
		Game:      game,
		Amount:    amount,
		Status:    models.BetStatusPending,
		CreatedAt: time.Now(),
	}
}

// CreateTestTransaction creates a pending deposit transaction
func CreateTestTransaction(userID uuid.UUID, kind models.TransactionKind, amount int64) *models.Transaction {
	checkoutID := "ws_CO_" + uuid.NewString()
	merchantID := "mr_" + uuid.NewString()
	return &models.Transaction{
		ID:                uuid.New(),
		UserID:            userID,
		Kind:              kind,
		Amount:            amount,
		Status:            models.TransactionStatusPending,
		Method:            "mpesa",
		PhoneNumber:       "254712345678",
		CheckoutRequestID: &checkoutID,
		MerchantRequestID: &merchantID,
		CreatedAt:         time.Now(),
	}
}

// CreateTestBalanceHistory creates a balance history entry with default amounts
func CreateTestBalanceHistory(userID uuid.UUID, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   100000,
		BalanceAfter:    90000,
		ChangeAmount:    -10000,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
		CreatedAt: time.Now(),
	}
}

// CreateTestBalanceHistoryWithAmounts creates a balance history entry with specific amounts
func CreateTestBalanceHistoryWithAmounts(userID uuid.UUID, before, after, change int64, transactionType models.TransactionType) *models.BalanceHistory {
	history := CreateTestBalanceHistory(userID, transactionType)
	history.BalanceBefore = before
	history.BalanceAfter = after
	history.ChangeAmount = change
	return history
}
