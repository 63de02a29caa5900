// Package annotator runs the per-jet calibration pipeline and attaches its
// results to the jets of an event.
package annotator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chrissnell/jetcalib/internal/jec"
	"github.com/chrissnell/jetcalib/internal/jer"
	"github.com/chrissnell/jetcalib/internal/jets"
	"github.com/chrissnell/jetcalib/internal/log"
	"github.com/chrissnell/jetcalib/internal/met"
	"github.com/chrissnell/jetcalib/internal/secvtx"
)

// Components are the evaluators the annotator drives.
type Components struct {
	FullCorrection   *jec.CorrectionEvaluator
	OffsetCorrection *jec.CorrectionEvaluator
	Uncertainty      *jec.UncertaintyEvaluator
	Resolution       *jer.ResolutionModel
	Smearer          *jer.HybridSmearer
	MET              *met.Propagator
	SecondaryVertex  *secvtx.Summarizer
}

// Annotator computes and attaches calibration attributes. It draws from
// the smearer's random source, so one Annotator must not process two
// events concurrently; jets are handled in collection order.
type Annotator struct {
	c      Components
	logger *zap.SugaredLogger
}

// New returns an annotator. Every component is required.
func New(c Components, logger *zap.SugaredLogger) (*Annotator, error) {
	switch {
	case c.FullCorrection == nil || c.OffsetCorrection == nil:
		return nil, errors.New("annotator needs full and offset correction evaluators")
	case c.Uncertainty == nil:
		return nil, errors.New("annotator needs an uncertainty evaluator")
	case c.Resolution == nil || c.Smearer == nil:
		return nil, errors.New("annotator needs a resolution model and a smearer")
	case c.MET == nil:
		return nil, errors.New("annotator needs a MET propagator")
	case c.SecondaryVertex == nil:
		return nil, errors.New("annotator needs a secondary vertex summarizer")
	}
	return &Annotator{c: c, logger: log.OrNop(logger)}, nil
}

// Result is everything derived for one jet.
type Result struct {
	CorrFactor   float64
	CorrFactorL1 float64

	UncertaintyUp     float64
	UncertaintyDown   float64
	UncertaintyL1Up   float64
	UncertaintyL1Down float64

	Resolution jer.Outcome
	Smeared    jer.Variants

	METJEC met.Variants
	METJER met.Variants

	SecondaryVertex secvtx.Summary
	PFKeys          []uint32
}

// AnnotateEvent annotates every jet of ev in place.
func (a *Annotator) AnnotateEvent(ev *jets.Event) error {
	for i := range ev.Jets {
		res, err := a.AnnotateJet(&ev.Jets[i], ev.Context)
		if err != nil {
			return fmt.Errorf("event %d:%d:%d jet %d: %w", ev.Run, ev.Lumi, ev.Number, i, err)
		}
		res.Apply(&ev.Jets[i])
	}
	return nil
}

// AnnotateJet computes the attributes of j without modifying it.
func (a *Annotator) AnnotateJet(j *jets.Jet, ctx jets.EventContext) (Result, error) {
	raw := j.RawP4
	eta, pt, phi := raw.Eta(), raw.Pt(), raw.Phi()

	var r Result
	var err error
	r.CorrFactor, err = a.c.FullCorrection.Correction(eta, pt, raw.E, phi, j.Area, ctx.Rho, ctx.NVertices)
	if err != nil {
		return Result{}, fmt.Errorf("full correction: %w", err)
	}
	r.CorrFactorL1, err = a.c.OffsetCorrection.Correction(eta, pt, raw.E, phi, j.Area, ctx.Rho, ctx.NVertices)
	if err != nil {
		return Result{}, fmt.Errorf("offset correction: %w", err)
	}

	corrected := raw.Scale(r.CorrFactor)
	offset := raw.Scale(r.CorrFactorL1)

	// Uncertainties are parameterized in corrected pt.
	if r.UncertaintyUp, err = a.uncertainty(corrected.Pt(), eta, jec.Up, "full"); err != nil {
		return Result{}, err
	}
	if r.UncertaintyDown, err = a.uncertainty(corrected.Pt(), eta, jec.Down, "full"); err != nil {
		return Result{}, err
	}
	if r.UncertaintyL1Up, err = a.uncertainty(offset.Pt(), eta, jec.Up, "offset"); err != nil {
		return Result{}, err
	}
	if r.UncertaintyL1Down, err = a.uncertainty(offset.Pt(), eta, jec.Down, "offset"); err != nil {
		return Result{}, err
	}

	r.METJEC = a.c.MET.JEC(j,
		met.Scales{
			Central: r.CorrFactor,
			Up:      r.CorrFactor * (1 + r.UncertaintyUp),
			Down:    r.CorrFactor * (1 - r.UncertaintyDown),
		},
		met.Scales{
			Central: r.CorrFactorL1,
			Up:      r.CorrFactorL1 * (1 + r.UncertaintyL1Up),
			Down:    r.CorrFactorL1 * (1 - r.UncertaintyL1Down),
		})

	if r.Resolution, err = a.c.Resolution.Resolve(corrected.Pt(), eta, ctx.Rho); err != nil {
		a.logger.Debugw("jer resolution lookup failed, using 1", "pt", corrected.Pt(), "eta", eta, "error", err)
	}
	if ctx.IsData {
		r.Smeared = jer.Unsmeared(corrected)
	} else {
		if j.GenJet != nil && !(corrected.Pt() > 1e-9) {
			a.logger.Debugw("corrected pt is degenerate; generator match skipped", "pt", corrected.Pt(), "eta", eta)
		}
		r.Smeared = a.c.Smearer.SmearAll(corrected, j.GenJet, r.Resolution)
	}

	r.METJER = a.c.MET.JER(j, r.CorrFactor, met.Scales{
		Central: r.Smeared.Central.Multiplier,
		Up:      r.Smeared.Up.Multiplier,
		Down:    r.Smeared.Down.Multiplier,
	})

	if label := a.c.SecondaryVertex.Label(); !j.HasTagInfo(label) && len(j.TagInfos) > 0 {
		a.logger.Debugw("jet has no secondary vertex tag info under the configured label",
			"label", label, "available", j.TagInfoLabels())
	}
	r.SecondaryVertex = a.c.SecondaryVertex.Summarize(j)
	r.PFKeys = j.ConstituentKeys()
	return r, nil
}

// uncertainty evaluates one uncertainty, replacing an out-of-range request
// with 0.
func (a *Annotator) uncertainty(pt, eta float64, dir jec.Direction, basis string) (float64, error) {
	u, err := a.c.Uncertainty.Uncertainty(pt, eta, dir)
	if errors.Is(err, jec.ErrOutOfRange) {
		a.logger.Debugw("jec uncertainty out of range, using 0", "basis", basis, "direction", dir.String(), "pt", pt, "eta", eta)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s %s uncertainty: %w", basis, dir, err)
	}
	return u, nil
}

// Apply attaches the result to j as named user attributes.
func (r Result) Apply(j *jets.Jet) {
	floats := []struct {
		name  string
		value float64
	}{
		{jets.AttrJECUncertaintyUp, r.UncertaintyUp},
		{jets.AttrJECUncertaintyDown, r.UncertaintyDown},
		{jets.AttrJECUncertaintyL1Up, r.UncertaintyL1Up},
		{jets.AttrJECUncertaintyL1Down, r.UncertaintyL1Down},
		{jets.AttrJetCorrFactor, r.CorrFactor},
		{jets.AttrJetCorrFactorL1, r.CorrFactorL1},

		{jets.AttrPtResolution, r.Resolution.Sigma},
		{jets.AttrJERSF, r.Resolution.SF},
		{jets.AttrJERSFUp, r.Resolution.SFUp},
		{jets.AttrJERSFDown, r.Resolution.SFDown},

		{jets.AttrSmearedPt, r.Smeared.Central.P4.Pt()},
		{jets.AttrSmearedE, r.Smeared.Central.P4.E},
		{jets.AttrSmearedPtUp, r.Smeared.Up.P4.Pt()},
		{jets.AttrSmearedEUp, r.Smeared.Up.P4.E},
		{jets.AttrSmearedPtDown, r.Smeared.Down.P4.Pt()},
		{jets.AttrSmearedEDown, r.Smeared.Down.P4.E},

		{jets.AttrCorrExMETJEC, r.METJEC.Central.Px},
		{jets.AttrCorrEyMETJEC, r.METJEC.Central.Py},
		{jets.AttrCorrSumEtMETJEC, r.METJEC.Central.SumEt},
		{jets.AttrCorrExMETJECUp, r.METJEC.Up.Px},
		{jets.AttrCorrEyMETJECUp, r.METJEC.Up.Py},
		{jets.AttrCorrSumEtMETJECUp, r.METJEC.Up.SumEt},
		{jets.AttrCorrExMETJECDown, r.METJEC.Down.Px},
		{jets.AttrCorrEyMETJECDown, r.METJEC.Down.Py},
		{jets.AttrCorrSumEtMETJECDown, r.METJEC.Down.SumEt},

		{jets.AttrCorrExMETJER, r.METJER.Central.Px},
		{jets.AttrCorrEyMETJER, r.METJER.Central.Py},
		{jets.AttrCorrSumEtMETJER, r.METJER.Central.SumEt},
		{jets.AttrCorrExMETJERUp, r.METJER.Up.Px},
		{jets.AttrCorrEyMETJERUp, r.METJER.Up.Py},
		{jets.AttrCorrSumEtMETJERUp, r.METJER.Up.SumEt},
		{jets.AttrCorrExMETJERDown, r.METJER.Down.Px},
		{jets.AttrCorrEyMETJERDown, r.METJER.Down.Py},
		{jets.AttrCorrSumEtMETJERDown, r.METJER.Down.SumEt},

		{jets.AttrSV0Mass, r.SecondaryVertex.Mass0},
		{jets.AttrSV1Mass, r.SecondaryVertex.Mass1},
	}
	for _, f := range floats {
		j.AddUserFloat(f.name, f.value)
	}

	matched := int64(0)
	if r.Smeared.Central.GenMatched {
		matched = 1
	}
	j.AddUserInt(jets.AttrIsGenMatched, matched)
	j.AddUserInt(jets.AttrNSV, int64(r.SecondaryVertex.NVertices))
	j.AddUserData(jets.AttrPFKeys, r.PFKeys)
}
