// Package met propagates jet energy corrections and jet smearing into
// missing transverse energy corrections.
package met

import (
	"fmt"
	"strings"

	"github.com/chrissnell/jetcalib/internal/jets"
	"github.com/chrissnell/jetcalib/pkg/lorentz"
)

// Defaults for the jet selection applied before a jet contributes to MET.
const (
	DefaultEMFractionThreshold = 0.9
	DefaultJetPtThreshold      = 10.0
)

// DefaultMuonSelection lists the muon flags that mark a constituent for
// subtraction when nothing else is configured.
var DefaultMuonSelection = []string{"global", "standalone"}

// MuonSelector reports whether a muon linked to a constituent is removed
// from the jet momentum before the MET deltas are formed.
type MuonSelector func(m *jets.MuonInfo) bool

// SelectMuons builds a selector accepting a muon that carries any of the
// named flags. An empty list accepts every linked muon.
func SelectMuons(flags []string) (MuonSelector, error) {
	if len(flags) == 0 {
		return func(*jets.MuonInfo) bool { return true }, nil
	}

	checks := make([]func(*jets.MuonInfo) bool, 0, len(flags))
	for _, f := range flags {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "global":
			checks = append(checks, func(m *jets.MuonInfo) bool { return m.Global })
		case "standalone":
			checks = append(checks, func(m *jets.MuonInfo) bool { return m.Standalone })
		case "tracker":
			checks = append(checks, func(m *jets.MuonInfo) bool { return m.Tracker })
		case "pf":
			checks = append(checks, func(m *jets.MuonInfo) bool { return m.PF })
		default:
			return nil, fmt.Errorf("unknown muon flag %q", f)
		}
	}
	return func(m *jets.MuonInfo) bool {
		for _, check := range checks {
			if check(m) {
				return true
			}
		}
		return false
	}, nil
}

// Config selects which jets contribute to the MET corrections.
type Config struct {
	SkipEM              bool
	EMFractionThreshold float64
	SkipMuons           bool
	Muons               MuonSelector
	JetPtThreshold      float64
}

// DefaultConfig returns the standard Type-1 selection.
func DefaultConfig() Config {
	muons, _ := SelectMuons(DefaultMuonSelection)
	return Config{
		SkipEM:              true,
		EMFractionThreshold: DefaultEMFractionThreshold,
		SkipMuons:           true,
		Muons:               muons,
		JetPtThreshold:      DefaultJetPtThreshold,
	}
}

// Delta is a MET correction: the negated change of the jet's transverse
// momentum and the change of its scalar transverse energy.
type Delta struct {
	Px    float64
	Py    float64
	SumEt float64
}

// Variants holds the central and shifted deltas of one correction.
type Variants struct {
	Central Delta
	Up      Delta
	Down    Delta
}

// Scales are per-variant multiplicative factors.
type Scales struct {
	Central float64
	Up      float64
	Down    float64
}

// Propagator computes per-jet MET corrections. It holds no per-event state.
type Propagator struct {
	cfg Config
}

// NewPropagator returns a propagator for cfg. A SkipMuons config without a
// selector uses DefaultMuonSelection.
func NewPropagator(cfg Config) *Propagator {
	if cfg.SkipMuons && cfg.Muons == nil {
		cfg.Muons, _ = SelectMuons(DefaultMuonSelection)
	}
	return &Propagator{cfg: cfg}
}

// base returns the raw jet momentum with selected muons removed, or false
// when the jet fails the electromagnetic-fraction veto.
func (p *Propagator) base(j *jets.Jet) (lorentz.Vector, bool) {
	if p.cfg.SkipEM && j.EMFraction() > p.cfg.EMFractionThreshold {
		return lorentz.Vector{}, false
	}
	raw := j.RawP4
	if p.cfg.SkipMuons {
		for _, c := range j.Constituents {
			if c.Muon != nil && p.cfg.Muons(c.Muon) {
				raw = raw.Sub(c.P4)
			}
		}
	}
	return raw, true
}

// delta is the MET change for a jet moving from before to after. Only jets
// whose gate momentum passes the pt threshold contribute.
func (p *Propagator) delta(gate, before, after lorentz.Vector) Delta {
	if !(gate.Pt() > p.cfg.JetPtThreshold) {
		return Delta{}
	}
	return Delta{
		Px:    -(after.Px - before.Px),
		Py:    -(after.Py - before.Py),
		SumEt: after.Et() - before.Et(),
	}
}

// JEC returns the correction for moving the jet from its offset-corrected
// to its fully corrected momentum. full and offset are the correction
// factors of the two chains for each uncertainty variant. The pt threshold
// is tested once on the centrally corrected momentum, so a jet contributes
// to all three variants or to none.
func (p *Propagator) JEC(j *jets.Jet, full, offset Scales) Variants {
	raw, ok := p.base(j)
	if !ok {
		return Variants{}
	}
	gate := raw.Scale(full.Central)
	jec := func(f, l1 float64) Delta {
		return p.delta(gate, raw.Scale(l1), raw.Scale(f))
	}
	return Variants{
		Central: jec(full.Central, offset.Central),
		Up:      jec(full.Up, offset.Up),
		Down:    jec(full.Down, offset.Down),
	}
}

// JER returns the correction for moving the jet from its corrected to its
// smeared momentum. correction is the full-chain factor and multipliers
// are the smearing multipliers of each resolution variant.
func (p *Propagator) JER(j *jets.Jet, correction float64, multipliers Scales) Variants {
	raw, ok := p.base(j)
	if !ok {
		return Variants{}
	}
	corrected := raw.Scale(correction)
	return Variants{
		Central: p.delta(corrected, corrected, corrected.Scale(multipliers.Central)),
		Up:      p.delta(corrected, corrected, corrected.Scale(multipliers.Up)),
		Down:    p.delta(corrected, corrected, corrected.Scale(multipliers.Down)),
	}
}
