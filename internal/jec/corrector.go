// Package jec evaluates jet energy corrections and their uncertainties.
//
// Every evaluator here is a pure function of its arguments over immutable
// tables: there is no set-then-get state, so one evaluator may be shared by
// all jets of an event and by concurrent callers.
package jec

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/jetcalib/internal/calib"
)

// DefaultEtaMax is the |η| bound below which corrections are evaluated.
const DefaultEtaMax = 9.9

// Corrector yields a multiplicative correction for a jet described by in.
type Corrector interface {
	Correction(in calib.Inputs) (float64, error)
}

// FactorizedCorrector applies correction levels in sequence. Each level is
// evaluated on the momentum already corrected by the levels before it and
// the result is the product of all level factors. A level with no bin for
// the jet contributes a factor of 1.
type FactorizedCorrector struct {
	levels []*calib.Table
}

// NewFactorizedCorrector builds a chain from levels in application order.
func NewFactorizedCorrector(levels ...*calib.Table) (*FactorizedCorrector, error) {
	if len(levels) == 0 {
		return nil, errors.New("correction chain needs at least one level")
	}
	for _, t := range levels {
		if t == nil {
			return nil, errors.New("correction chain has a nil level")
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if t.Formula == calib.FormulaScaleFactor || t.Formula == calib.FormulaUncertaintyGrid {
			return nil, fmt.Errorf("table %s (%s) cannot be a correction level", t.Name, t.Formula)
		}
	}
	return &FactorizedCorrector{levels: levels}, nil
}

// Correction implements Corrector.
func (c *FactorizedCorrector) Correction(in calib.Inputs) (float64, error) {
	total := 1.0
	for _, level := range c.levels {
		step := in
		step.Pt = in.Pt * total
		step.E = in.E * total

		f, err := level.Evaluate(step)
		if errors.Is(err, calib.ErrNoBin) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("level %s: %w", level.Name, err)
		}
		total *= f
	}
	return total, nil
}

// Levels returns the names of the chain's levels in application order.
func (c *FactorizedCorrector) Levels() []string {
	names := make([]string, len(c.levels))
	for i, t := range c.levels {
		names[i] = t.Name
	}
	return names
}

// CorrectionEvaluator guards a correction chain with the |η| validity bound.
type CorrectionEvaluator struct {
	chain  Corrector
	etaMax float64
}

// NewCorrectionEvaluator wraps chain. A non-positive etaMax selects
// DefaultEtaMax.
func NewCorrectionEvaluator(chain Corrector, etaMax float64) *CorrectionEvaluator {
	if etaMax <= 0 {
		etaMax = DefaultEtaMax
	}
	return &CorrectionEvaluator{chain: chain, etaMax: etaMax}
}

// Correction returns the correction factor for a jet's raw kinematics. Jets
// with |η| at or beyond the bound get 1.
func (e *CorrectionEvaluator) Correction(eta, pt, energy, phi, area, rho float64, nVertices int) (float64, error) {
	if !(math.Abs(eta) < e.etaMax) {
		return 1, nil
	}
	return e.chain.Correction(calib.Inputs{
		Eta:  eta,
		Pt:   pt,
		E:    energy,
		Phi:  phi,
		Area: area,
		Rho:  rho,
		NPV:  float64(nVertices),
	})
}

// Levels returns the level names of the wrapped chain, or nil when the
// chain does not report them.
func (e *CorrectionEvaluator) Levels() []string {
	if l, ok := e.chain.(interface{ Levels() []string }); ok {
		return l.Levels()
	}
	return nil
}

// NewChains builds the full-chain evaluator from every payload and the
// offset-only evaluator from the first payload alone.
func NewChains(payloads []*calib.Table, etaMax float64) (full, offset *CorrectionEvaluator, err error) {
	if len(payloads) == 0 {
		return nil, nil, errors.New("no correction payloads configured")
	}
	fullChain, err := NewFactorizedCorrector(payloads...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build full correction chain: %w", err)
	}
	offsetChain, err := NewFactorizedCorrector(payloads[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build offset correction chain: %w", err)
	}
	return NewCorrectionEvaluator(fullChain, etaMax), NewCorrectionEvaluator(offsetChain, etaMax), nil
}
