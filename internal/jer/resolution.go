// Package jer models the jet energy resolution and applies the hybrid
// scaling-and-smearing procedure to simulated jets.
package jer

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/jetcalib/internal/calib"
)

// Outcome is the resolution and scale factors for one jet. It is computed
// once per jet and shared by the three smearing variants.
type Outcome struct {
	Sigma  float64
	SF     float64
	SFUp   float64
	SFDown float64
}

// ResolutionModel answers resolution queries from a resolution table and a
// scale-factor table.
type ResolutionModel struct {
	resolution  *calib.Table
	scaleFactor *calib.Table
}

// NewResolutionModel checks that both tables use the expected formulas.
func NewResolutionModel(resolution, scaleFactor *calib.Table) (*ResolutionModel, error) {
	if resolution == nil || scaleFactor == nil {
		return nil, errors.New("resolution model needs a resolution and a scale-factor table")
	}
	for _, t := range []*calib.Table{resolution, scaleFactor} {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if resolution.Formula != calib.FormulaResolution {
		return nil, fmt.Errorf("table %s: resolution needs formula %s, got %s", resolution.Name, calib.FormulaResolution, resolution.Formula)
	}
	if scaleFactor.Formula != calib.FormulaScaleFactor {
		return nil, fmt.Errorf("table %s: scale factors need formula %s, got %s", scaleFactor.Name, calib.FormulaScaleFactor, scaleFactor.Formula)
	}
	return &ResolutionModel{resolution: resolution, scaleFactor: scaleFactor}, nil
}

// LoadFromFiles builds a model from two flat-file tables.
func LoadFromFiles(resolutionPath, scaleFactorPath string) (*ResolutionModel, error) {
	res, err := calib.LoadTableFile(resolutionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load resolution table: %w", err)
	}
	sf, err := calib.LoadTableFile(scaleFactorPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scale-factor table: %w", err)
	}
	return NewResolutionModel(res, sf)
}

// ResolutionName is the name under which the pt resolution of label is stored.
func ResolutionName(label string) string {
	return label + "_pt"
}

// LoadFromSource builds a model from tables fetched by label: the
// resolution is stored as "<label>_pt" and the scale factors as "<label>".
func LoadFromSource(ctx context.Context, src calib.Source, label string) (*ResolutionModel, error) {
	res, err := src.Load(ctx, ResolutionName(label))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resolution %s: %w", ResolutionName(label), err)
	}
	sf, err := src.Load(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scale factors %s: %w", label, err)
	}
	return NewResolutionModel(res, sf)
}

// Resolve returns the fractional pt resolution and the scale factors at
// (pt, eta, rho). A table without a bin for the jet yields 1. Any other
// lookup failure also leaves that part at 1 and is returned so the caller
// can report it.
func (m *ResolutionModel) Resolve(pt, eta, rho float64) (Outcome, error) {
	in := calib.Inputs{Pt: pt, Eta: eta, Rho: rho}
	out := Outcome{Sigma: 1, SF: 1, SFUp: 1, SFDown: 1}

	var errs []error
	sigma, err := m.resolution.Evaluate(in)
	switch {
	case err == nil:
		out.Sigma = sigma
	case !errors.Is(err, calib.ErrNoBin):
		errs = append(errs, fmt.Errorf("resolution: %w", err))
	}

	central, down, up, err := m.scaleFactor.ScaleFactors(in)
	switch {
	case err == nil:
		out.SF, out.SFDown, out.SFUp = central, down, up
	case !errors.Is(err, calib.ErrNoBin):
		errs = append(errs, fmt.Errorf("scale factors: %w", err))
	}
	return out, errors.Join(errs...)
}
