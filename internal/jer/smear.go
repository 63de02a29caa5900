package jer

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/chrissnell/jetcalib/internal/jets"
	"github.com/chrissnell/jetcalib/pkg/lorentz"
)

// DefaultConeSize is the jet clustering radius used for generator matching.
const DefaultConeSize = 0.4

// minMatchPt is the corrected pt below which a jet cannot take the matched
// branch; the rescale divides by it.
const minMatchPt = 1e-9

// Result is the outcome of smearing one jet for one variant.
type Result struct {
	P4         lorentz.Vector
	Multiplier float64
	GenMatched bool
}

// Variants holds the central and scale-factor-shifted smearing results.
type Variants struct {
	Central Result
	Up      Result
	Down    Result
}

// HybridSmearer scales simulated jets toward their generator jets when a
// good match exists and smears them stochastically otherwise.
//
// The random source is stateful: a smearer must not be used by two
// goroutines at once. Results are reproducible for a fixed seed and a fixed
// order of calls.
type HybridSmearer struct {
	coneSize float64
	src      rand.Source
}

// NewHybridSmearer returns a smearer drawing from src. A non-positive
// coneSize selects DefaultConeSize.
func NewHybridSmearer(coneSize float64, src rand.Source) *HybridSmearer {
	if coneSize <= 0 {
		coneSize = DefaultConeSize
	}
	return &HybridSmearer{coneSize: coneSize, src: src}
}

// NewSeededSmearer returns a smearer with a PCG source seeded from seed.
func NewSeededSmearer(coneSize float64, seed uint64) *HybridSmearer {
	return NewHybridSmearer(coneSize, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ConeSize returns the matching cone radius.
func (s *HybridSmearer) ConeSize() float64 {
	return s.coneSize
}

// Smear computes the smeared momentum of a jet with corrected momentum
// corrected, optional generator jet gen, fractional resolution sigma and
// scale factor sf.
func (s *HybridSmearer) Smear(corrected lorentz.Vector, gen *jets.GenJet, sigma, sf float64) Result {
	multiplier, matched := s.multiplier(corrected, gen, sigma, sf)
	return Result{
		P4:         corrected.Scale(multiplier),
		Multiplier: multiplier,
		GenMatched: matched,
	}
}

// SmearAll runs the central, up and down variants. Each variant takes its
// own match decision with its own scale factor; the random source is drawn
// from in that order.
func (s *HybridSmearer) SmearAll(corrected lorentz.Vector, gen *jets.GenJet, res Outcome) Variants {
	return Variants{
		Central: s.Smear(corrected, gen, res.Sigma, res.SF),
		Up:      s.Smear(corrected, gen, res.Sigma, res.SFUp),
		Down:    s.Smear(corrected, gen, res.Sigma, res.SFDown),
	}
}

// Unsmeared is the result for jets that are never smeared, such as jets in
// collision data.
func Unsmeared(corrected lorentz.Vector) Variants {
	r := Result{P4: corrected, Multiplier: 1}
	return Variants{Central: r, Up: r, Down: r}
}

func (s *HybridSmearer) multiplier(corrected lorentz.Vector, gen *jets.GenJet, sigma, sf float64) (float64, bool) {
	pt := corrected.Pt()
	if gen != nil && pt > minMatchPt && !math.IsInf(pt, 0) && !math.IsNaN(pt) {
		dR := lorentz.DeltaR(corrected, gen.P4)
		dPt := pt - gen.P4.Pt()
		if dR < s.coneSize/2 && math.Abs(dPt) < 3*sigma*pt {
			return math.Max(0, 1+(sf-1)*dPt/pt), true
		}
	}

	if sf <= 1 {
		return 1, false
	}
	width := sigma * math.Sqrt(sf*sf-1)
	if !(width > 0) {
		return 1, false
	}
	gauss := distuv.Normal{Mu: 0, Sigma: width, Src: s.src}
	return math.Max(0, 1+gauss.Rand()), false
}
