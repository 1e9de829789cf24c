// Package crash implements the shared crash round: a multiplier grows
// exponentially from 1.0 and every position must cash out before the
// round's hidden crash point.
package crash

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"casino/clock"
	"casino/events"
	"casino/games"
	"casino/models"
	"casino/rng"
	"casino/service"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrRoundOver is returned when joining or cashing out after the crash.
var ErrRoundOver = fmt.Errorf("round is over")

// Config holds the round curve parameters.
type Config struct {
	// HouseEdge scales the crash point distribution; the default 0.99
	// gives the house 1%.
	HouseEdge float64

	// GrowthRate is the exponent per second of the live multiplier.
	GrowthRate float64
}

// DefaultConfig returns the production curve.
func DefaultConfig() Config {
	return Config{HouseEdge: 0.99, GrowthRate: 0.065}
}

// Position is one player's stake in a round.
type Position struct {
	ID      uuid.UUID
	Bet     *models.Bet
	settler games.Settler
}

// Round is a single crash game shared by any number of positions. The
// crash point is fixed at creation and every position observes it.
type Round struct {
	mu         sync.Mutex
	id         uuid.UUID
	cfg        Config
	crashPoint float64
	startedAt  time.Time
	clock      clock.Clock
	bus        *events.Bus
	timer      clock.Timer
	crashed    bool
	open       map[uuid.UUID]*Position
}

// NewRound samples a crash point and starts the multiplier curve. The
// round crashes on its own once the curve reaches the sampled point; Stop
// cancels that callback.
func NewRound(clk clock.Clock, src rng.Source, cfg Config, bus *events.Bus) *Round {
	r := src.Float64()
	crashPoint := math.Max(1.0, cfg.HouseEdge/(1-r))

	round := &Round{
		id:         uuid.New(),
		cfg:        cfg,
		crashPoint: crashPoint,
		startedAt:  clk.Now(),
		clock:      clk,
		bus:        bus,
		open:       make(map[uuid.UUID]*Position),
	}
	round.timer = clk.AfterFunc(round.timeToReach(crashPoint), round.crash)

	log.WithFields(log.Fields{
		"roundID":    round.id,
		"crashPoint": crashPoint,
	}).Debug("Crash round started")

	return round
}

// ID returns the round identifier.
func (r *Round) ID() uuid.UUID {
	return r.id
}

// CrashPoint returns the multiplier the round will crash at.
func (r *Round) CrashPoint() float64 {
	return r.crashPoint
}

// Crashed reports whether the round has ended.
func (r *Round) Crashed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.crashed
}

// Multiplier returns the live multiplier, capped at the crash point.
func (r *Round) Multiplier() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.multiplierLocked()
}

func (r *Round) multiplierLocked() float64 {
	elapsed := r.clock.Now().Sub(r.startedAt).Seconds()
	m := math.Exp(r.cfg.GrowthRate * elapsed)
	return math.Min(m, r.crashPoint)
}

// timeToReach returns the elapsed time at which the curve hits m.
func (r *Round) timeToReach(m float64) time.Duration {
	seconds := math.Log(m) / r.cfg.GrowthRate
	return time.Duration(seconds * float64(time.Second))
}

// Join stakes a bet into the running round.
func (r *Round) Join(settler games.Settler, stake int64) (*Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.crashed {
		return nil, ErrRoundOver
	}

	bet, err := settler.PlaceBet(models.GameCrash, stake)
	if err != nil {
		return nil, fmt.Errorf("failed to place bet: %w", err)
	}

	pos := &Position{
		ID:      uuid.New(),
		Bet:     bet,
		settler: settler,
	}
	r.open[pos.ID] = pos
	return pos, nil
}

// CashOut settles a position as won at exactly the live multiplier. Once
// the curve has reached the crash point the cash-out is rejected; the
// position settles as a loss when the round crashes.
func (r *Round) CashOut(pos *Position) (*models.Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.crashed {
		return nil, ErrRoundOver
	}
	if _, ok := r.open[pos.ID]; !ok {
		return nil, fmt.Errorf("%w: position already settled", service.ErrInvalidStateTransition)
	}

	m := r.multiplierLocked()
	if m >= r.crashPoint {
		// The timer has not fired yet but the curve is at the crash
		// point; too late.
		return nil, ErrRoundOver
	}

	delete(r.open, pos.ID)
	bet, err := pos.settler.Settle(pos.Bet, m, m)
	if err != nil {
		return nil, fmt.Errorf("failed to settle cash-out: %w", err)
	}
	return bet, nil
}

// crash ends the round, settling every open position as a loss at the
// crash point.
func (r *Round) crash() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.crashed {
		return
	}
	r.crashed = true

	for id, pos := range r.open {
		if _, err := pos.settler.Settle(pos.Bet, r.crashPoint, 0); err != nil {
			log.WithFields(log.Fields{
				"roundID":    r.id,
				"positionID": id,
			}).WithError(err).Error("Failed to settle crashed position")
		}
		delete(r.open, id)
	}

	if r.bus != nil {
		r.bus.Emit(context.Background(), events.RoundCrashedEvent{
			RoundID:    r.id,
			CrashPoint: r.crashPoint,
		})
	}

	log.WithFields(log.Fields{
		"roundID":    r.id,
		"crashPoint": r.crashPoint,
	}).Debug("Round crashed")
}

// Stop cancels the pending crash callback without settling positions.
// Used on teardown so no callback outlives the round's owner.
func (r *Round) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}
