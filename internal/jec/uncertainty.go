package jec

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/jetcalib/internal/calib"
)

// ErrOutOfRange marks an uncertainty request outside the parameterization.
// Callers treat it as non-fatal.
var ErrOutOfRange = errors.New("uncertainty requested outside the parameterization")

// Direction selects the upward or downward uncertainty.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// UncertaintyEvaluator returns fractional correction uncertainties. It must
// be given the corrected transverse momentum, never the raw one.
type UncertaintyEvaluator struct {
	table *calib.Table
}

// NewUncertaintyEvaluator wraps an uncertainty-grid table binned in η.
func NewUncertaintyEvaluator(t *calib.Table) (*UncertaintyEvaluator, error) {
	if t == nil {
		return nil, errors.New("no uncertainty table")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Formula != calib.FormulaUncertaintyGrid {
		return nil, fmt.Errorf("table %s: uncertainty needs formula %s, got %s", t.Name, calib.FormulaUncertaintyGrid, t.Formula)
	}
	return &UncertaintyEvaluator{table: t}, nil
}

// Uncertainty returns the fractional uncertainty (>= 0) in direction dir.
func (u *UncertaintyEvaluator) Uncertainty(correctedPt, eta float64, dir Direction) (float64, error) {
	if math.IsNaN(correctedPt) || math.IsInf(correctedPt, 0) || math.IsNaN(eta) || math.IsInf(eta, 0) {
		return 0, fmt.Errorf("%w: pt=%g eta=%g", ErrOutOfRange, correctedPt, eta)
	}
	v, err := u.table.Uncertainty(calib.Inputs{Eta: eta, Pt: correctedPt}, dir == Up)
	if errors.Is(err, calib.ErrNoBin) {
		return 0, fmt.Errorf("%w: pt=%g eta=%g", ErrOutOfRange, correctedPt, eta)
	}
	if err != nil {
		return 0, err
	}
	return math.Abs(v), nil
}
