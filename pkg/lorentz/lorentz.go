// Package lorentz provides the four-momentum arithmetic used by the jet
// calibration pipeline. Vectors are stored in (px, py, pz, E) form; the
// spatial part is handled with gonum's r3 package.
package lorentz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vector is a Lorentz four-vector in Cartesian form. Units are GeV.
type Vector struct {
	Px float64 `json:"px"`
	Py float64 `json:"py"`
	Pz float64 `json:"pz"`
	E  float64 `json:"e"`
}

// New returns a vector from Cartesian components.
func New(px, py, pz, e float64) Vector {
	return Vector{Px: px, Py: py, Pz: pz, E: e}
}

// FromPtEtaPhiE builds a vector from collider coordinates.
func FromPtEtaPhiE(pt, eta, phi, e float64) Vector {
	return Vector{
		Px: pt * math.Cos(phi),
		Py: pt * math.Sin(phi),
		Pz: pt * math.Sinh(eta),
		E:  e,
	}
}

func fromSpatial(p r3.Vec, e float64) Vector {
	return Vector{Px: p.X, Py: p.Y, Pz: p.Z, E: e}
}

// Spatial returns the three-momentum.
func (v Vector) Spatial() r3.Vec {
	return r3.Vec{X: v.Px, Y: v.Py, Z: v.Pz}
}

// P returns the magnitude of the three-momentum.
func (v Vector) P() float64 {
	return r3.Norm(v.Spatial())
}

// Pt returns the transverse momentum.
func (v Vector) Pt() float64 {
	return math.Hypot(v.Px, v.Py)
}

// Eta returns the pseudorapidity. A vector along the beam axis has
// infinite pseudorapidity with the sign of pz; the null vector has 0.
func (v Vector) Eta() float64 {
	pt := v.Pt()
	if pt == 0 {
		if v.Pz == 0 {
			return 0
		}
		return math.Copysign(math.Inf(1), v.Pz)
	}
	return math.Asinh(v.Pz / pt)
}

// Phi returns the azimuthal angle in (-π, π].
func (v Vector) Phi() float64 {
	if v.Px == 0 && v.Py == 0 {
		return 0
	}
	return math.Atan2(v.Py, v.Px)
}

// M returns the invariant mass. Space-like vectors return -sqrt(-m²).
func (v Vector) M() float64 {
	m2 := v.E*v.E - r3.Norm2(v.Spatial())
	if m2 < 0 {
		return -math.Sqrt(-m2)
	}
	return math.Sqrt(m2)
}

// Et returns the transverse energy E·sinθ.
func (v Vector) Et() float64 {
	p := v.P()
	if p == 0 {
		return 0
	}
	return v.E * v.Pt() / p
}

// Scale multiplies all four components by f.
func (v Vector) Scale(f float64) Vector {
	return fromSpatial(r3.Scale(f, v.Spatial()), f*v.E)
}

// Add returns v + w.
func (v Vector) Add(w Vector) Vector {
	return fromSpatial(r3.Add(v.Spatial(), w.Spatial()), v.E+w.E)
}

// Sub returns v - w.
func (v Vector) Sub(w Vector) Vector {
	return fromSpatial(r3.Sub(v.Spatial(), w.Spatial()), v.E-w.E)
}

// DeltaPhi returns a - b wrapped into [-π, π].
func DeltaPhi(a, b float64) float64 {
	return math.Remainder(a-b, 2*math.Pi)
}

// DeltaR returns the η-φ distance between two vectors.
func DeltaR(a, b Vector) float64 {
	return math.Hypot(a.Eta()-b.Eta(), DeltaPhi(a.Phi(), b.Phi()))
}
