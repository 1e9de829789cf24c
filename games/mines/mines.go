// Package mines implements the 25-cell minefield. Each safe reveal raises
// the cash-out multiplier; hitting a mine loses the stake.
package mines

import (
	"fmt"
	"math"
	"sync"

	"casino/games"
	"casino/models"
	"casino/rng"
	"casino/service"
)

// BoardSize is the number of cells on the board.
const BoardSize = 25

// houseEdge is the payout fraction retained by the multiplier curve.
const houseEdge = 0.98

// ErrInvalidCell is returned for out-of-range or already revealed cells.
var ErrInvalidCell = fmt.Errorf("invalid cell")

// State is the lifecycle of a single minefield game.
type State string

const (
	StatePlaced State = "placed"
	StateWon    State = "won"
	StateLost   State = "lost"
)

// Multiplier returns the cash-out multiplier after revealing k safe cells
// with mineCount mines on the board. It is the inverse survival
// probability of k blind picks, scaled by the house edge and rounded to
// two decimals. k = 0 pays even.
func Multiplier(mineCount, k int) float64 {
	if k <= 0 {
		return 1.0
	}
	safe := BoardSize - mineCount
	// P(k safe picks) = C(safe, k) / C(BoardSize, k)
	prob := 1.0
	for i := 0; i < k; i++ {
		prob *= float64(safe-i) / float64(BoardSize-i)
	}
	return math.Round(houseEdge/prob*100) / 100
}

// Game is one staked minefield. All accessors serialize on the game mutex.
type Game struct {
	mu        sync.Mutex
	settler   games.Settler
	bet       *models.Bet
	mineCount int
	mines     [BoardSize]bool
	revealed  [BoardSize]bool
	safeCount int
	state     State
}

// NewGame stakes a bet and lays mineCount mines uniformly without
// replacement.
func NewGame(settler games.Settler, src rng.Source, mineCount int, stake int64) (*Game, error) {
	if mineCount < 1 || mineCount > BoardSize-1 {
		return nil, fmt.Errorf("mine count must be in [1, %d], got %d", BoardSize-1, mineCount)
	}

	bet, err := settler.PlaceBet(models.GameMines, stake)
	if err != nil {
		return nil, fmt.Errorf("failed to place bet: %w", err)
	}

	g := &Game{
		settler:   settler,
		bet:       bet,
		mineCount: mineCount,
		state:     StatePlaced,
	}
	for _, cell := range src.Perm(BoardSize)[:mineCount] {
		g.mines[cell] = true
	}
	return g, nil
}

// State returns the current lifecycle state.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Bet returns the bet backing this game.
func (g *Game) Bet() *models.Bet {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bet
}

// Revealed returns how many safe cells have been revealed.
func (g *Game) Revealed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.safeCount
}

// CurrentMultiplier returns the multiplier a cash-out would settle at now.
func (g *Game) CurrentMultiplier() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Multiplier(g.mineCount, g.safeCount)
}

// Mines returns the mine layout. Only exposed once the game is over.
func (g *Game) Mines() ([]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StatePlaced {
		return nil, fmt.Errorf("%w: game still in progress", service.ErrInvalidStateTransition)
	}
	var cells []int
	for i, mined := range g.mines {
		if mined {
			cells = append(cells, i)
		}
	}
	return cells, nil
}

// Reveal uncovers a cell. A mine loses the stake immediately; revealing
// the last safe cell cashes out at the full-board multiplier.
func (g *Game) Reveal(cell int) (safe bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StatePlaced {
		return false, fmt.Errorf("%w: game is %s", service.ErrInvalidStateTransition, g.state)
	}
	if cell < 0 || cell >= BoardSize {
		return false, fmt.Errorf("%w: cell %d out of range", ErrInvalidCell, cell)
	}
	if g.revealed[cell] {
		return false, fmt.Errorf("%w: cell %d already revealed", ErrInvalidCell, cell)
	}

	g.revealed[cell] = true

	if g.mines[cell] {
		g.state = StateLost
		if _, err := g.settler.Settle(g.bet, 0, 0); err != nil {
			return false, fmt.Errorf("failed to settle loss: %w", err)
		}
		return false, nil
	}

	g.safeCount++
	if g.safeCount == BoardSize-g.mineCount {
		return true, g.cashOutLocked()
	}
	return true, nil
}

// CashOut settles the game as won at the current multiplier. At least one
// safe cell must be revealed.
func (g *Game) CashOut() (*models.Bet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StatePlaced {
		return nil, fmt.Errorf("%w: game is %s", service.ErrInvalidStateTransition, g.state)
	}
	if g.safeCount == 0 {
		return nil, fmt.Errorf("%w: nothing revealed yet", service.ErrInvalidStateTransition)
	}
	if err := g.cashOutLocked(); err != nil {
		return nil, err
	}
	return g.bet, nil
}

func (g *Game) cashOutLocked() error {
	m := Multiplier(g.mineCount, g.safeCount)
	g.state = StateWon
	if _, err := g.settler.Settle(g.bet, m, m); err != nil {
		return fmt.Errorf("failed to settle cash-out: %w", err)
	}
	return nil
}
