// Package games defines the boundary between the individual games and the
// wallet session that funds them.
package games

import "casino/models"

// Settler places stakes and finalizes bets against a wallet. A bet can be
// settled at most once; later attempts fail without crediting.
type Settler interface {
	// PlaceBet deducts the stake from the active balance and returns a
	// pending bet.
	PlaceBet(game models.Game, stake int64) (*models.Bet, error)

	// Settle finalizes a pending bet. The realized multiplier is recorded
	// on the bet; the payout is stake x payoutMultiplier.
	Settle(bet *models.Bet, multiplier, payoutMultiplier float64) (*models.Bet, error)
}
