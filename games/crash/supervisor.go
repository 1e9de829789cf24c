package crash

import (
	"sync"
	"time"

	"casino/clock"
	"casino/events"
	"casino/rng"
	log "github.com/sirupsen/logrus"
)

// Supervisor runs crash rounds back to back: once the live round's curve
// reaches its crash point, the next round starts after the intermission.
// Players always join through Current.
type Supervisor struct {
	mu           sync.Mutex
	cfg          Config
	intermission time.Duration
	clock        clock.Clock
	src          rng.Source
	bus          *events.Bus
	current      *Round
	rotation     clock.Timer
	stopped      bool
}

// NewSupervisor starts the first round immediately.
func NewSupervisor(cfg Config, intermission time.Duration, clk clock.Clock, src rng.Source, bus *events.Bus) *Supervisor {
	s := &Supervisor{
		cfg:          cfg,
		intermission: intermission,
		clock:        clk,
		src:          src,
		bus:          bus,
	}
	s.mu.Lock()
	s.startRoundLocked()
	s.mu.Unlock()
	return s
}

func (s *Supervisor) startRoundLocked() {
	round := NewRound(s.clock, s.src, s.cfg, s.bus)
	s.current = round

	// The round settles itself when its own timer fires; the rotation
	// waits out the intermission on top of that before replacing it.
	s.rotation = s.clock.AfterFunc(round.timeToReach(round.crashPoint)+s.intermission, s.rotate)

	log.WithField("roundID", round.ID()).Debug("Supervisor started round")
}

func (s *Supervisor) rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.startRoundLocked()
}

// Current returns the live round.
func (s *Supervisor) Current() *Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stop halts rotation and cancels the live round's crash callback.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.rotation != nil {
		s.rotation.Stop()
	}
	if s.current != nil {
		s.current.Stop()
	}
}
