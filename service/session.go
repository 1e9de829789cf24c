package service

import (
	"fmt"
	"sync"

	"casino/clock"
	"casino/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Session holds the optimistic wallet state for one authenticated user and
// is the sole authority that mutates it. All mutations serialize on the
// session mutex, so concurrent placements and settlements against the same
// balance cannot interleave. Durable writes are handed to the Ledger and
// never block gameplay.
type Session struct {
	mu      sync.Mutex
	profile models.Profile
	refill  int64
	ledger  Ledger
	clock   clock.Clock
}

// NewSession creates a session from an authenticated profile snapshot.
func NewSession(profile *models.Profile, refillAmount int64, ledger Ledger, clk clock.Clock) *Session {
	return &Session{
		profile: *profile,
		refill:  refillAmount,
		ledger:  ledger,
		clock:   clk,
	}
}

// Profile returns a copy of the current profile state.
func (s *Session) Profile() models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// UserID returns the owning user's ID.
func (s *Session) UserID() uuid.UUID {
	return s.profile.ID
}

// ActiveBalance returns the balance selected by the current mode, in cents.
func (s *Session) ActiveBalance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.ActiveBalance()
}

// PlaceBet validates the stake, deducts it from the active balance and
// creates a pending bet. The stake leaves the balance before any
// settlement callback for the bet can run.
func (s *Session) PlaceBet(game models.Game, stake int64) (*models.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stake <= 0 {
		return nil, ErrInvalidStake
	}
	if s.profile.IsSuspended {
		return nil, ErrSuspended
	}

	before := s.profile.ActiveBalance()
	if stake > before {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, before, stake)
	}

	if s.profile.IsDemo {
		s.profile.DemoBalance -= stake
	} else {
		s.profile.Balance -= stake
	}

	bet := &models.Bet{
		ID:        uuid.New(),
		UserID:    s.profile.ID,
		Game:      game,
		Amount:    stake,
		Status:    models.BetStatusPending,
		IsDemo:    s.profile.IsDemo,
		CreatedAt: s.clock.Now(),
	}

	s.ledger.RecordPlacement(*bet, before, s.profile.ActiveBalance())

	log.WithFields(log.Fields{
		"userID": s.profile.ID,
		"betID":  bet.ID,
		"game":   game,
		"stake":  stake,
		"isDemo": bet.IsDemo,
	}).Debug("Bet placed")

	return bet, nil
}

// Settle finalizes a pending bet. The realized multiplier is recorded on
// the bet; the payout is stake x payoutMultiplier rounded half-up to the
// cent, credited to the same balance the stake was drawn from. A losing
// deferred bet records its realized multiplier but pays zero. Settling a
// bet that is not pending returns ErrInvalidStateTransition and never
// credits twice.
func (s *Session) Settle(bet *models.Bet, multiplier, payoutMultiplier float64) (*models.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bet == nil || !bet.IsPending() {
		return nil, fmt.Errorf("%w: bet is not pending", ErrInvalidStateTransition)
	}

	payout := roundPayout(bet.Amount, payoutMultiplier)

	status := models.BetStatusLoss
	if payoutMultiplier >= 1 {
		status = models.BetStatusWin
	}

	// The bet settles against the balance it was staked from, which may
	// differ from the currently selected mode.
	before := s.balanceFor(bet.IsDemo)
	if payout > 0 {
		if bet.IsDemo {
			s.profile.DemoBalance += payout
		} else {
			s.profile.Balance += payout
		}
	}

	now := s.clock.Now()
	bet.Multiplier = multiplier
	bet.Payout = payout
	bet.Status = status
	bet.SettledAt = &now

	s.ledger.RecordSettlement(*bet, before, s.balanceFor(bet.IsDemo))

	log.WithFields(log.Fields{
		"userID":     s.profile.ID,
		"betID":      bet.ID,
		"game":       bet.Game,
		"multiplier": multiplier,
		"payout":     payout,
		"status":     status,
	}).Debug("Bet settled")

	return bet, nil
}

// SettleWin settles a bet as won at the given multiplier.
func (s *Session) SettleWin(bet *models.Bet, multiplier float64) (*models.Bet, error) {
	return s.Settle(bet, multiplier, multiplier)
}

// SettleLoss settles a bet as lost, recording the realized multiplier with
// zero payout.
func (s *Session) SettleLoss(bet *models.Bet, multiplier float64) (*models.Bet, error) {
	return s.Settle(bet, multiplier, 0)
}

// RefillDemo unconditionally resets the demo balance to the refill
// constant. It never touches the real balance and is always permitted.
func (s *Session) RefillDemo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.profile.DemoBalance
	s.profile.DemoBalance = s.refill

	s.ledger.RecordRefill(s.profile.ID, before, s.refill)
}

// ToggleMode flips the active balance selector between demo and real. It
// transfers nothing between the two balances.
func (s *Session) ToggleMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile.IsDemo = !s.profile.IsDemo
	s.ledger.RecordModeChange(s.profile.ID, s.profile.IsDemo)

	return s.profile.IsDemo
}

// ApplyDurable overwrites the session wallet with the durable record.
// Called by ledger reconciliation; the durable value wins once available.
func (s *Session) ApplyDurable(profile *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile.Balance = profile.Balance
	s.profile.DemoBalance = profile.DemoBalance
	s.profile.IsDemo = profile.IsDemo
	s.profile.IsSuspended = profile.IsSuspended
}

func (s *Session) balanceFor(isDemo bool) int64 {
	if isDemo {
		return s.profile.DemoBalance
	}
	return s.profile.Balance
}

// roundPayout computes stake x multiplier in cents, rounded half-up.
func roundPayout(stake int64, multiplier float64) int64 {
	if multiplier <= 0 {
		return 0
	}
	return decimal.NewFromInt(stake).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(0).
		IntPart()
}
