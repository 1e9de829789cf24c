// Package trading implements binary options over a simulated price feed.
// A position predicts the price direction and settles automatically after
// the option window.
package trading

import (
	"fmt"
	"sync"
	"time"

	"casino/clock"
	"casino/games"
	"casino/models"
	"casino/rng"
	"casino/service"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Direction is the side of a position.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Symbol describes one tradable instrument of the simulated market.
type Symbol struct {
	Name       string
	BasePrice  float64
	Volatility float64
	Decimals   int
}

// Symbols is the instrument table. Base prices seed the walk; volatility
// scales each tick's step.
var Symbols = []Symbol{
	{Name: "EUR/USD", BasePrice: 1.164442, Volatility: 0.000008, Decimals: 6},
	{Name: "GBP/JPY", BasePrice: 182.450, Volatility: 0.012, Decimals: 3},
	{Name: "BTC/USD", BasePrice: 48500, Volatility: 45, Decimals: 2},
	{Name: "ETH/USD", BasePrice: 2650, Volatility: 2.5, Decimals: 2},
	{Name: "DOGE/USD", BasePrice: 0.0842, Volatility: 0.0002, Decimals: 4},
	{Name: "SOL/USD", BasePrice: 112.5, Volatility: 0.15, Decimals: 2},
}

// SymbolByName looks up an instrument.
func SymbolByName(name string) (Symbol, error) {
	for _, s := range Symbols {
		if s.Name == name {
			return s, nil
		}
	}
	return Symbol{}, fmt.Errorf("unknown symbol %q", name)
}

// Config holds the market parameters.
type Config struct {
	// PayoutRate is the win return on top of the stake; 0.86 pays 1.86x.
	PayoutRate float64

	// SettleDelay is the option window between entry and settlement.
	SettleDelay time.Duration

	// TickEvery is the price walk step interval.
	TickEvery time.Duration
}

// DefaultConfig returns the production market parameters.
func DefaultConfig() Config {
	return Config{
		PayoutRate:  0.86,
		SettleDelay: 30 * time.Second,
		TickEvery:   100 * time.Millisecond,
	}
}

// Position is one open binary option.
type Position struct {
	ID         uuid.UUID
	Bet        *models.Bet
	Direction  Direction
	EntryPrice float64
	EntryTime  time.Time

	settler games.Settler
	timer   clock.Timer
}

// Market runs the price walk for one symbol and settles the positions
// opened against it.
type Market struct {
	mu      sync.Mutex
	symbol  Symbol
	cfg     Config
	price   float64
	clock   clock.Clock
	rng     rng.Source
	ticker  clock.Ticker
	done    chan struct{}
	open    map[uuid.UUID]*Position
	stopped bool
}

// NewMarket starts the price walk at the symbol's base price.
func NewMarket(symbol Symbol, cfg Config, clk clock.Clock, src rng.Source) *Market {
	m := &Market{
		symbol: symbol,
		cfg:    cfg,
		price:  symbol.BasePrice,
		clock:  clk,
		rng:    src,
		done:   make(chan struct{}),
		open:   make(map[uuid.UUID]*Position),
	}
	m.ticker = clk.NewTicker(cfg.TickEvery)
	go m.run()
	return m
}

func (m *Market) run() {
	for {
		select {
		case <-m.ticker.C():
			m.step()
		case <-m.done:
			return
		}
	}
}

// step advances the walk one tick. Steps are uniform around zero so the
// walk has no drift.
func (m *Market) step() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price += (m.rng.Float64() - 0.5) * m.symbol.Volatility * 2.5
}

// Symbol returns the instrument this market simulates.
func (m *Market) Symbol() Symbol {
	return m.symbol
}

// Price returns the current simulated price.
func (m *Market) Price() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price
}

// OpenPosition stakes a bet on the price direction. The position settles
// automatically when the option window elapses; there is no early exit.
func (m *Market) OpenPosition(settler games.Settler, stake int64, direction Direction) (*Position, error) {
	if direction != DirectionBuy && direction != DirectionSell {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("%w: market is closed", service.ErrInvalidStateTransition)
	}

	bet, err := settler.PlaceBet(models.GameTrading, stake)
	if err != nil {
		return nil, fmt.Errorf("failed to place bet: %w", err)
	}

	pos := &Position{
		ID:         uuid.New(),
		Bet:        bet,
		Direction:  direction,
		EntryPrice: m.price,
		EntryTime:  m.clock.Now(),
		settler:    settler,
	}
	pos.timer = m.clock.AfterFunc(m.cfg.SettleDelay, func() {
		m.settle(pos)
	})
	m.open[pos.ID] = pos

	log.WithFields(log.Fields{
		"symbol":     m.symbol.Name,
		"betID":      bet.ID,
		"direction":  direction,
		"entryPrice": pos.EntryPrice,
	}).Debug("Position opened")

	return pos, nil
}

// settle closes a position against the current price. The prediction must
// be strictly right; an unchanged price loses.
func (m *Market) settle(pos *Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[pos.ID]; !ok {
		return
	}
	delete(m.open, pos.ID)

	exit := m.price
	win := false
	switch pos.Direction {
	case DirectionBuy:
		win = exit > pos.EntryPrice
	case DirectionSell:
		win = exit < pos.EntryPrice
	}

	multiplier := 1 + m.cfg.PayoutRate
	payoutMultiplier := 0.0
	if win {
		payoutMultiplier = multiplier
	}

	if _, err := pos.settler.Settle(pos.Bet, multiplier, payoutMultiplier); err != nil {
		log.WithFields(log.Fields{
			"symbol": m.symbol.Name,
			"betID":  pos.Bet.ID,
		}).WithError(err).Error("Failed to settle position")
		return
	}

	log.WithFields(log.Fields{
		"symbol":     m.symbol.Name,
		"betID":      pos.Bet.ID,
		"entryPrice": pos.EntryPrice,
		"exitPrice":  exit,
		"won":        win,
	}).Debug("Position settled")
}

// OpenPositions returns how many positions await settlement.
func (m *Market) OpenPositions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Close stops the price walk and cancels pending settlements. Unsettled
// positions stay pending; the caller decides how to dispose of them.
func (m *Market) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	m.ticker.Stop()
	close(m.done)

	for id, pos := range m.open {
		pos.timer.Stop()
		delete(m.open, id)
	}
}
