package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// FormulaName selects how a record's parameters turn inputs into a value.
type FormulaName string

const (
	// FormulaOffset is the area-based pile-up offset (L1FastJet):
	// max(1e-4, 1 - A·(p0 + p1·(ρ-p2))·(1 + p3·ln pt)/pt).
	FormulaOffset FormulaName = "offset"
	// FormulaLogPolynomial is Σ p_i·(log10 pt)^i.
	FormulaLogPolynomial FormulaName = "log-polynomial"
	// FormulaConstant is p0.
	FormulaConstant FormulaName = "constant"
	// FormulaResolution is the relative pt resolution
	// sqrt(p0·|p0|/pt² + p1²·pt^p3 + p2²).
	FormulaResolution FormulaName = "resolution"
	// FormulaScaleFactor stores [central, down, up] resolution scale factors.
	FormulaScaleFactor FormulaName = "scale-factor"
	// FormulaUncertaintyGrid stores (pt, up, down) triplets interpolated
	// linearly in pt.
	FormulaUncertaintyGrid FormulaName = "uncertainty-grid"
)

const minOffsetCorrection = 1e-4

type formulaDef struct {
	requires  []Variable
	minParams int
	multiple  int // params must come in groups of this size; 0 means any
	exact     int // params count must equal this; 0 means unchecked
	check     func(p []float64) error
	eval      func(p []float64, in Inputs) float64
}

func (s formulaDef) checkParams(n int) error {
	if n < s.minParams {
		return fmt.Errorf("%d parameters, need at least %d", n, s.minParams)
	}
	if s.exact > 0 && n != s.exact {
		return fmt.Errorf("%d parameters, need exactly %d", n, s.exact)
	}
	if s.multiple > 0 && n%s.multiple != 0 {
		return fmt.Errorf("%d parameters, need a multiple of %d", n, s.multiple)
	}
	return nil
}

func (s formulaDef) checkRecord(p []float64) error {
	if err := s.checkParams(len(p)); err != nil {
		return err
	}
	if s.check != nil {
		return s.check(p)
	}
	return nil
}

var formulas = map[FormulaName]formulaDef{
	FormulaOffset: {
		requires:  []Variable{VarJetPt},
		minParams: 4,
		eval: func(p []float64, in Inputs) float64 {
			if in.Pt <= 0 {
				return 1
			}
			offset := in.Area * (p[0] + p[1]*(in.Rho-p[2])) * (1 + p[3]*math.Log(in.Pt)) / in.Pt
			return math.Max(minOffsetCorrection, 1-offset)
		},
	},
	FormulaLogPolynomial: {
		requires:  []Variable{VarJetPt},
		minParams: 1,
		eval: func(p []float64, in Inputs) float64 {
			if in.Pt <= 0 {
				return 1
			}
			x := math.Log10(in.Pt)
			result := 0.0
			for i := len(p) - 1; i >= 0; i-- {
				result = result*x + p[i]
			}
			return result
		},
	},
	FormulaConstant: {
		minParams: 1,
		eval: func(p []float64, _ Inputs) float64 {
			return p[0]
		},
	},
	FormulaResolution: {
		requires:  []Variable{VarJetPt},
		minParams: 4,
		eval: func(p []float64, in Inputs) float64 {
			pt := in.Pt
			if pt <= 0 {
				return 0
			}
			return math.Sqrt(p[0]*math.Abs(p[0])/(pt*pt) + p[1]*p[1]*math.Pow(pt, p[3]) + p[2]*p[2])
		},
	},
	FormulaScaleFactor: {
		exact:     3,
		minParams: 3,
	},
	FormulaUncertaintyGrid: {
		requires:  []Variable{VarJetPt},
		minParams: 3,
		multiple:  3,
		check: func(p []float64) error {
			for i := 3; i < len(p); i += 3 {
				if p[i] <= p[i-3] {
					return fmt.Errorf("uncertainty grid pt values must be strictly ascending (%g after %g)", p[i], p[i-3])
				}
			}
			return nil
		},
	},
}

// ScaleFactors returns the central, down and up values of a scale-factor
// table for in.
func (t *Table) ScaleFactors(in Inputs) (central, down, up float64, err error) {
	if t.Formula != FormulaScaleFactor {
		return 0, 0, 0, fmt.Errorf("table %s: formula %s is not %s", t.Name, t.Formula, FormulaScaleFactor)
	}
	rec, err := t.Lookup(in)
	if err != nil {
		return 0, 0, 0, err
	}
	return rec.Params[0], rec.Params[1], rec.Params[2], nil
}

// Uncertainty interpolates an uncertainty-grid table at the inputs' pt.
// Outside the grid the edge value is used.
func (t *Table) Uncertainty(in Inputs, up bool) (float64, error) {
	if t.Formula != FormulaUncertaintyGrid {
		return 0, fmt.Errorf("table %s: formula %s is not %s", t.Name, t.Formula, FormulaUncertaintyGrid)
	}
	rec, err := t.Lookup(in)
	if err != nil {
		return 0, err
	}
	in = t.clamped(rec, in)

	n := len(rec.Params) / 3
	pts := make([]float64, n)
	vals := make([]float64, n)
	col := 2
	if up {
		col = 1
	}
	for i := 0; i < n; i++ {
		pts[i] = rec.Params[3*i]
		vals[i] = rec.Params[3*i+col]
	}
	return interpolate(pts, vals, in.Pt), nil
}

// interpolate evaluates the piecewise-linear function through (xs, ys) at x,
// holding the edge values outside [xs[0], xs[n-1]]. xs must be ascending.
func interpolate(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 1 || x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	i := floats.Within(xs, x)
	if i < 0 {
		return ys[n-1]
	}
	frac := (x - xs[i]) / (xs[i+1] - xs[i])
	return ys[i] + frac*(ys[i+1]-ys[i])
}
