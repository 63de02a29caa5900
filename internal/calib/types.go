// Package calib holds the binned parameter tables behind every calibration
// lookup in the pipeline: jet energy corrections, their uncertainties, jet
// resolution and resolution scale factors. Tables are loaded once at setup
// from flat files or from a registry database and are read-only afterwards.
package calib

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoBin is returned when no record of a table covers the requested inputs.
	ErrNoBin = errors.New("no bin covers the requested inputs")
	// ErrLabelNotFound is returned by the registry for an unknown label/name pair.
	ErrLabelNotFound = errors.New("calibration label not found")
)

// Variable names a kinematic or event quantity a table can be binned in or
// parameterized by.
type Variable string

const (
	VarJetEta Variable = "JetEta"
	VarJetPt  Variable = "JetPt"
	VarJetE   Variable = "JetE"
	VarJetPhi Variable = "JetPhi"
	VarJetA   Variable = "JetA"
	VarRho    Variable = "Rho"
	VarNPV    Variable = "NPV"
)

// Inputs carries every quantity a table may ask for.
type Inputs struct {
	Eta  float64
	Pt   float64
	E    float64
	Phi  float64
	Area float64
	Rho  float64
	NPV  float64
}

// Value returns the input named by v.
func (in Inputs) Value(v Variable) (float64, error) {
	switch v {
	case VarJetEta:
		return in.Eta, nil
	case VarJetPt:
		return in.Pt, nil
	case VarJetE:
		return in.E, nil
	case VarJetPhi:
		return in.Phi, nil
	case VarJetA:
		return in.Area, nil
	case VarRho:
		return in.Rho, nil
	case VarNPV:
		return in.NPV, nil
	}
	return 0, fmt.Errorf("unknown variable %q", v)
}

// With returns a copy of in with variable v replaced by x.
func (in Inputs) With(v Variable, x float64) Inputs {
	switch v {
	case VarJetEta:
		in.Eta = x
	case VarJetPt:
		in.Pt = x
	case VarJetE:
		in.E = x
	case VarJetPhi:
		in.Phi = x
	case VarJetA:
		in.Area = x
	case VarRho:
		in.Rho = x
	case VarNPV:
		in.NPV = x
	}
	return in
}

func knownVariable(v Variable) bool {
	_, err := Inputs{}.Value(v)
	return err == nil
}

// Range is a half-open interval [Min, Max).
type Range struct {
	Min float64 `json:"min" msgpack:"min"`
	Max float64 `json:"max" msgpack:"max"`
}

// Contains reports whether Min <= x < Max.
func (r Range) Contains(x float64) bool {
	return x >= r.Min && x < r.Max
}

// Clamp limits x to [Min, Max].
func (r Range) Clamp(x float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, x))
}

// Record is one row of a table: a bin in the binning variables, the valid
// range of each parameter variable and the formula parameters.
type Record struct {
	Bins   []Range   `json:"bins" msgpack:"bins"`
	Vars   []Range   `json:"vars" msgpack:"vars"`
	Params []float64 `json:"params" msgpack:"params"`
}

// Table is a named, leveled set of records sharing one formula.
type Table struct {
	Name    string
	Level   string
	Formula FormulaName
	BinVars []Variable
	ParVars []Variable
	Records []Record
}

// Validate checks that the table is usable: a known formula, known variables
// and records whose arity matches the header.
func (t *Table) Validate() error {
	def, ok := formulas[t.Formula]
	if !ok {
		return fmt.Errorf("table %s: unknown formula %q", t.Name, t.Formula)
	}
	if len(t.BinVars) == 0 {
		return fmt.Errorf("table %s: no binning variables", t.Name)
	}
	for _, v := range append(append([]Variable{}, t.BinVars...), t.ParVars...) {
		if !knownVariable(v) {
			return fmt.Errorf("table %s: unknown variable %q", t.Name, v)
		}
	}
	for _, v := range def.requires {
		if !t.hasParVar(v) {
			return fmt.Errorf("table %s: formula %s needs parameter variable %s", t.Name, t.Formula, v)
		}
	}
	if len(t.Records) == 0 {
		return fmt.Errorf("table %s: no records", t.Name)
	}
	for i, rec := range t.Records {
		if len(rec.Bins) != len(t.BinVars) {
			return fmt.Errorf("table %s record %d: %d bin ranges for %d binning variables", t.Name, i, len(rec.Bins), len(t.BinVars))
		}
		if len(rec.Vars) != len(t.ParVars) {
			return fmt.Errorf("table %s record %d: %d variable ranges for %d parameter variables", t.Name, i, len(rec.Vars), len(t.ParVars))
		}
		if err := def.checkRecord(rec.Params); err != nil {
			return fmt.Errorf("table %s record %d: %w", t.Name, i, err)
		}
	}
	return nil
}

func (t *Table) hasParVar(v Variable) bool {
	for _, pv := range t.ParVars {
		if pv == v {
			return true
		}
	}
	return false
}

// Lookup returns the first record whose bins contain the inputs.
func (t *Table) Lookup(in Inputs) (*Record, error) {
	xs := make([]float64, len(t.BinVars))
	for i, v := range t.BinVars {
		x, err := in.Value(v)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}

next:
	for i := range t.Records {
		rec := &t.Records[i]
		for j, r := range rec.Bins {
			if !r.Contains(xs[j]) {
				continue next
			}
		}
		return rec, nil
	}
	return nil, fmt.Errorf("table %s: %w", t.Name, ErrNoBin)
}

// clamped returns in with each parameter variable clamped into the record's
// validity range.
func (t *Table) clamped(rec *Record, in Inputs) Inputs {
	for i, v := range t.ParVars {
		x, _ := in.Value(v)
		in = in.With(v, rec.Vars[i].Clamp(x))
	}
	return in
}

// Evaluate finds the record for in and evaluates the table's scalar formula.
func (t *Table) Evaluate(in Inputs) (float64, error) {
	rec, err := t.Lookup(in)
	if err != nil {
		return 0, err
	}
	def := formulas[t.Formula]
	if def.eval == nil {
		return 0, fmt.Errorf("table %s: formula %s has no scalar value", t.Name, t.Formula)
	}
	return def.eval(rec.Params, t.clamped(rec, in)), nil
}
