package plinko

import (
	"testing"
	"time"

	"casino/clock"
	"casino/models"
	"casino/rng"
	"casino/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type nopLedger struct{}

func (nopLedger) RecordPlacement(models.Bet, int64, int64)  {}
func (nopLedger) RecordSettlement(models.Bet, int64, int64) {}
func (nopLedger) RecordRefill(uuid.UUID, int64, int64)      {}
func (nopLedger) RecordModeChange(uuid.UUID, bool)          {}

func newTestSession(balance int64) *service.Session {
	profile := &models.Profile{
		ID:      uuid.New(),
		Balance: balance,
	}
	return service.NewSession(profile, 10_000_000, nopLedger{}, clock.NewFake(time.Now()))
}

func TestMultipliers_TablesAreSymmetric(t *testing.T) {
	for _, rows := range []int{8, 12, 16} {
		for _, risk := range []Risk{RiskLow, RiskMedium, RiskHigh} {
			table, err := Multipliers(rows, risk)
			assert.NoError(t, err)
			assert.Len(t, table, rows+1)
			for i := range table {
				assert.Equal(t, table[i], table[len(table)-1-i],
					"rows=%d risk=%s slot=%d", rows, risk, i)
			}
		}
	}
}

func TestMultipliers_UnsupportedBoard(t *testing.T) {
	_, err := Multipliers(10, RiskLow)
	assert.Error(t, err)

	_, err = Multipliers(8, Risk("Extreme"))
	assert.Error(t, err)
}

func TestDrop_AllRightsLandsInEdgeSlot(t *testing.T) {
	session := newTestSession(10000)

	// Eight rightward draws land in the last slot, 5.6x on Low.
	draws := make([]float64, 8)
	for i := range draws {
		draws[i] = 0.9
	}

	result, err := Drop(session, rng.Fixed(draws...), 8, RiskLow, 1000)

	assert.NoError(t, err)
	assert.Equal(t, 8, result.Slot)
	assert.Equal(t, 5.6, result.Multiplier)
	assert.Equal(t, models.BetStatusWin, result.Bet.Status)
	assert.Equal(t, int64(5600), result.Bet.Payout)
	assert.Equal(t, int64(9000+5600), session.ActiveBalance())
}

func TestDrop_CenterSlotPaysPartialAsLoss(t *testing.T) {
	session := newTestSession(10000)

	// Four rights then four lefts land in the center slot, 0.5x on Low.
	result, err := Drop(session, rng.Fixed(0.1, 0.1, 0.1, 0.1, 0.9, 0.9, 0.9, 0.9), 8, RiskLow, 1000)

	assert.NoError(t, err)
	assert.Equal(t, 4, result.Slot)
	assert.Equal(t, 0.5, result.Multiplier)
	assert.Equal(t, models.BetStatusLoss, result.Bet.Status)
	assert.Equal(t, int64(500), result.Bet.Payout)
	assert.Equal(t, int64(9500), session.ActiveBalance())
}

func TestDrop_SlotCountsRightwardBounces(t *testing.T) {
	session := newTestSession(100000)

	result, err := Drop(session, rng.Fixed(0.6, 0.1, 0.7, 0.2, 0.3, 0.4, 0.8, 0.1), 8, RiskMedium, 100)

	assert.NoError(t, err)
	rights := 0
	for _, right := range result.Path {
		if right {
			rights++
		}
	}
	assert.Equal(t, rights, result.Slot)
}

func TestDrop_InsufficientBalance(t *testing.T) {
	session := newTestSession(100)

	_, err := Drop(session, rng.Fixed(0.5), 8, RiskLow, 1000)

	assert.ErrorIs(t, err, service.ErrInsufficientFunds)
	assert.Equal(t, int64(100), session.ActiveBalance())
}

func TestDrop_SeededDistributionFavorsCenter(t *testing.T) {
	session := newTestSession(100_000_000)
	src := rng.Seeded(7)

	edge, center := 0, 0
	for i := 0; i < 2000; i++ {
		result, err := Drop(session, src, 16, RiskMedium, 1)
		assert.NoError(t, err)
		switch {
		case result.Slot == 0 || result.Slot == 16:
			edge++
		case result.Slot >= 6 && result.Slot <= 10:
			center++
		}
	}

	// P(edge) = 2^-15 per side; seeing many would mean the walk is biased.
	assert.Less(t, edge, 5)
	assert.Greater(t, center, 1000)
}
