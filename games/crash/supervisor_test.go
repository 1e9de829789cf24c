package crash

import (
	"math"
	"testing"
	"time"

	"casino/clock"
	"casino/models"
	"casino/rng"

	"github.com/stretchr/testify/assert"
)

func TestSupervisor_CurveParametersFlowIntoRounds(t *testing.T) {
	clk := clock.NewFake(time.Now())

	cfg := Config{HouseEdge: 2.0, GrowthRate: 0.1}
	sup := NewSupervisor(cfg, 5*time.Second, clk, rng.Fixed(0.5), nil)
	defer sup.Stop()

	// r = 0.5 gives 2.0 / 0.5 = 4.0 under the custom edge.
	round := sup.Current()
	assert.InDelta(t, 4.0, round.CrashPoint(), 1e-9)

	clk.Advance(5 * time.Second)
	assert.InDelta(t, math.Exp(0.1*5), round.Multiplier(), 1e-9)
}

func TestSupervisor_RotatesAfterCrashAndIntermission(t *testing.T) {
	clk := clock.NewFake(time.Now())
	session := newTestSession(clk, 10000)

	// Crash point 1.98 reached at ln(1.98)/0.065 ~ 10.5s. Two draws: the
	// rotation into the second round draws again.
	sup := NewSupervisor(DefaultConfig(), 5*time.Second, clk, rng.Fixed(0.5, 0.5), nil)
	defer sup.Stop()

	first := sup.Current()
	pos, err := first.Join(session, 1000)
	assert.NoError(t, err)

	// Crashed but still inside the intermission.
	clk.Advance(11 * time.Second)
	assert.True(t, first.Crashed())
	assert.Equal(t, models.BetStatusLoss, pos.Bet.Status)
	assert.Same(t, first, sup.Current())

	// Intermission over; a fresh round is live and accepts joins.
	clk.Advance(5 * time.Second)
	second := sup.Current()
	assert.NotEqual(t, first.ID(), second.ID())
	assert.False(t, second.Crashed())

	_, err = second.Join(session, 1000)
	assert.NoError(t, err)
}

func TestSupervisor_StopHaltsRotation(t *testing.T) {
	clk := clock.NewFake(time.Now())

	sup := NewSupervisor(DefaultConfig(), 5*time.Second, clk, rng.Fixed(0.5), nil)
	round := sup.Current()
	sup.Stop()

	clk.Advance(time.Hour)
	assert.Same(t, round, sup.Current())
	assert.False(t, round.Crashed())
}
