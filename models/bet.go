package models

import (
	"time"

	"github.com/google/uuid"
)

// Game identifies which game a bet belongs to
type Game string

const (
	GamePlinko  Game = "PLINKO"
	GameCrash   Game = "CRASH"
	GameMines   Game = "MINES"
	GameTrading Game = "TRADING"
)

// BetStatus represents the lifecycle state of a bet
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWin     BetStatus = "win"
	BetStatusLoss    BetStatus = "loss"
)

// Bet represents a single wager. A bet is created pending at placement
// and transitions exactly once to win or loss. Amounts are in cents.
type Bet struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	Game       Game       `db:"game"`
	Amount     int64      `db:"amount"`
	Multiplier float64    `db:"multiplier"`
	Payout     int64      `db:"payout"`
	Status     BetStatus  `db:"status"`
	IsDemo     bool       `db:"is_demo"`
	CreatedAt  time.Time  `db:"created_at"`
	SettledAt  *time.Time `db:"settled_at"`
}

// IsPending reports whether the bet is still awaiting settlement.
func (b *Bet) IsPending() bool {
	return b.Status == BetStatusPending
}

// IsTerminal reports whether the bet has reached a final state.
func (b *Bet) IsTerminal() bool {
	return b.Status == BetStatusWin || b.Status == BetStatusLoss
}

// BetStats represents aggregated betting statistics for a user
type BetStats struct {
	TotalBets    int
	TotalWins    int
	TotalLosses  int
	TotalWagered int64
	TotalPayout  int64
	BiggestWin   int64
}
