// Package plinko implements the plinko board: a ball takes one fair
// left/right draw per pin row and lands in a slot whose multiplier settles
// the bet immediately.
package plinko

import (
	"fmt"

	"casino/games"
	"casino/models"
	"casino/rng"
)

// Risk selects how spread out the odds table is.
type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// tables holds the slot multipliers per row count and risk. Each table is
// symmetric and has rows+1 slots.
var tables = map[int]map[Risk][]float64{
	8: {
		RiskLow:    {5.6, 2.1, 1.3, 1.0, 0.5, 1.0, 1.3, 2.1, 5.6},
		RiskMedium: {13, 3, 1.3, 0.7, 0.4, 0.7, 1.3, 3, 13},
		RiskHigh:   {29, 4, 1.5, 0.3, 0.2, 0.3, 1.5, 4, 29},
	},
	12: {
		RiskLow:    {10, 4.5, 2, 1.6, 1.4, 1.2, 1.1, 1.2, 1.4, 1.6, 2, 4.5, 10},
		RiskMedium: {33, 11, 4, 2, 1.1, 0.6, 0.3, 0.6, 1.1, 2, 4, 11, 33},
		RiskHigh:   {170, 48, 11, 4, 2, 0.2, 0.2, 0.2, 2, 4, 11, 48, 170},
	},
	16: {
		RiskLow:    {16, 9, 4.2, 2.1, 1.5, 1.2, 1.1, 1.0, 0.5, 1.0, 1.1, 1.2, 1.5, 2.1, 4.2, 9, 16},
		RiskMedium: {110, 41, 10, 5, 3, 1.5, 1.0, 0.5, 0.3, 0.5, 1.0, 1.5, 3, 5, 10, 41, 110},
		RiskHigh:   {1000, 130, 26, 9, 4, 2, 0.2, 0.2, 0.2, 0.2, 0.2, 2, 4, 9, 26, 130, 1000},
	},
}

// Multipliers returns the slot multipliers for the given board. The same
// table drives both display and settlement.
func Multipliers(rows int, risk Risk) ([]float64, error) {
	byRisk, ok := tables[rows]
	if !ok {
		return nil, fmt.Errorf("unsupported row count %d", rows)
	}
	table, ok := byRisk[risk]
	if !ok {
		return nil, fmt.Errorf("unsupported risk %q", risk)
	}
	return table, nil
}

// Result describes a single completed drop.
type Result struct {
	Bet        *models.Bet
	Path       []bool // true = right
	Slot       int
	Multiplier float64
}

// Drop stakes the bet, walks the ball down the board and settles at the
// landing slot. The slot index is the number of rightward bounces, so the
// landing distribution is binomial and the table edges stay rare.
func Drop(settler games.Settler, src rng.Source, rows int, risk Risk, stake int64) (*Result, error) {
	table, err := Multipliers(rows, risk)
	if err != nil {
		return nil, err
	}

	bet, err := settler.PlaceBet(models.GamePlinko, stake)
	if err != nil {
		return nil, fmt.Errorf("failed to place bet: %w", err)
	}

	path := make([]bool, rows)
	slot := 0
	for i := range path {
		right := src.Float64() < 0.5
		path[i] = right
		if right {
			slot++
		}
	}

	multiplier := table[slot]
	if _, err := settler.Settle(bet, multiplier, multiplier); err != nil {
		return nil, fmt.Errorf("failed to settle drop: %w", err)
	}

	return &Result{
		Bet:        bet,
		Path:       path,
		Slot:       slot,
		Multiplier: multiplier,
	}, nil
}
