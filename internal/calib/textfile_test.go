package calib

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const l2Table = `
# L2Relative, AK4PFchs
level: L2Relative
formula: log-polynomial
bins: JetEta
vars: JetPt
-5.191 -1.3   10 6500   1.10 -0.02
-1.3    1.3   10 6500   1.00  0.01   # barrel
 1.3    5.191 10 6500   1.10 -0.02
`

func TestParseTable(t *testing.T) {
	table, err := ParseTable(strings.NewReader(l2Table), "Summer16_L2Relative")
	if err != nil {
		t.Fatalf("ParseTable failed: %v", err)
	}

	expected := &Table{
		Name:    "Summer16_L2Relative",
		Level:   "L2Relative",
		Formula: FormulaLogPolynomial,
		BinVars: []Variable{VarJetEta},
		ParVars: []Variable{VarJetPt},
		Records: []Record{
			{Bins: []Range{{-5.191, -1.3}}, Vars: []Range{{10, 6500}}, Params: []float64{1.10, -0.02}},
			{Bins: []Range{{-1.3, 1.3}}, Vars: []Range{{10, 6500}}, Params: []float64{1.00, 0.01}},
			{Bins: []Range{{1.3, 5.191}}, Vars: []Range{{10, 6500}}, Params: []float64{1.10, -0.02}},
		},
	}
	if diff := cmp.Diff(expected, table, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("parsed table mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTableErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "unknown formula", input: "formula: spline\nbins: JetEta\nvars: JetPt\n-1 1 0 10 1\n"},
		{name: "unknown variable", input: "formula: constant\nbins: JetY\n-1 1 1\n"},
		{name: "record before bins", input: "formula: constant\n-1 1 1\n"},
		{name: "too few columns", input: "formula: constant\nbins: JetEta\n-1 1\n"},
		{name: "bad number", input: "formula: constant\nbins: JetEta\n-1 one 1\n"},
		{name: "inverted range", input: "formula: constant\nbins: JetEta\n1 -1 1\n"},
		{name: "header after records", input: "formula: constant\nbins: JetEta\n-1 1 1\nlevel: L1\n"},
		{name: "unknown header", input: "formula: constant\ncolour: red\n"},
		{name: "offset needs four params", input: "formula: offset\nbins: JetEta\nvars: JetPt\n-1 1 0 10 1 2 3\n"},
		{name: "offset needs pt variable", input: "formula: offset\nbins: JetEta\n-1 1 1 2 3 4\n"},
		{name: "scale factor needs three", input: "formula: scale-factor\nbins: JetEta\n-1 1 1.1 1.0\n"},
		{name: "grid not multiple of three", input: "formula: uncertainty-grid\nbins: JetEta\nvars: JetPt\n-1 1 0 100 10 0.1\n"},
		{name: "grid not ascending", input: "formula: uncertainty-grid\nbins: JetEta\nvars: JetPt\n-1 1 0 100 20 0.1 0.1 10 0.2 0.2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTable(strings.NewReader(tt.input), "bad"); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestLoadTableFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Summer16_L2Relative_AK4PFchs.txt")
	if err := os.WriteFile(path, []byte(l2Table), 0644); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}

	table, err := LoadTableFile(path)
	if err != nil {
		t.Fatalf("LoadTableFile failed: %v", err)
	}
	if table.Name != "Summer16_L2Relative_AK4PFchs" {
		t.Errorf("Name = %q, expected file base name", table.Name)
	}

	if _, err := LoadTableFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestFileSourceResolvesAgainstDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tables"), 0755); err != nil {
		t.Fatalf("failed to create table dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tables", "L2.txt"), []byte(l2Table), 0644); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}

	src := FileSource{Dir: dir}
	if got, want := src.Path("tables/L2.txt"), filepath.Join(dir, "tables", "L2.txt"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if got := src.Path("/abs/L2.txt"); got != "/abs/L2.txt" {
		t.Errorf("absolute Path = %q", got)
	}
	if got := (FileSource{}).Path("tables/L2.txt"); got != "tables/L2.txt" {
		t.Errorf("Path without Dir = %q", got)
	}

	table, err := src.Load(context.Background(), "tables/L2.txt")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Name != "L2" {
		t.Errorf("Name = %q", table.Name)
	}
}

func TestEvaluateFormulas(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		in       Inputs
		expected float64
	}{
		{
			name:     "log polynomial",
			table:    l2Table,
			in:       Inputs{Eta: 0.5, Pt: 100},
			expected: 1.00 + 0.01*2,
		},
		{
			name:     "log polynomial clamps pt to record range",
			table:    l2Table,
			in:       Inputs{Eta: 0.5, Pt: 1},
			expected: 1.00 + 0.01*1,
		},
		{
			name:  "offset",
			table: "formula: offset\nbins: JetEta\nvars: JetPt\n-5 5 1 1000 1.0 0.5 2.0 0.0\n",
			in:    Inputs{Eta: 0, Pt: 50, Area: 0.5, Rho: 10},
			// 1 - 0.5*(1 + 0.5*8)/50
			expected: 1 - 0.5*5/50,
		},
		{
			name:     "offset floor",
			table:    "formula: offset\nbins: JetEta\nvars: JetPt\n-5 5 1 1000 100 0 0 0\n",
			in:       Inputs{Eta: 0, Pt: 10, Area: 1, Rho: 10},
			expected: 1e-4,
		},
		{
			name:     "constant",
			table:    "formula: constant\nbins: JetEta\n-5 5 1.05\n",
			in:       Inputs{Eta: 2},
			expected: 1.05,
		},
		{
			name:     "resolution",
			table:    "formula: resolution\nbins: JetEta Rho\nvars: JetPt\n-5 5 0 100 10 4000 2 1 0.03 -1\n",
			in:       Inputs{Eta: 0.1, Pt: 100, Rho: 20},
			expected: math.Sqrt(2*2/(100.0*100.0) + 1.0/100 + 0.03*0.03),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseTable(strings.NewReader(tt.table), tt.name)
			if err != nil {
				t.Fatalf("ParseTable failed: %v", err)
			}
			got, err := table.Evaluate(tt.in)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Evaluate = %.12f, expected %.12f", got, tt.expected)
			}
		})
	}
}

func TestLookupNoBin(t *testing.T) {
	table, err := ParseTable(strings.NewReader(l2Table), "l2")
	if err != nil {
		t.Fatalf("ParseTable failed: %v", err)
	}
	_, err = table.Evaluate(Inputs{Eta: 6, Pt: 50})
	if !errors.Is(err, ErrNoBin) {
		t.Errorf("expected ErrNoBin, got %v", err)
	}
	// upper edge is exclusive
	if _, err := table.Lookup(Inputs{Eta: 5.191}); !errors.Is(err, ErrNoBin) {
		t.Errorf("expected ErrNoBin at the exclusive upper edge, got %v", err)
	}
}

func TestScaleFactors(t *testing.T) {
	table, err := ParseTable(strings.NewReader("formula: scale-factor\nbins: JetEta\n0 0.5 1.109 1.101 1.117\n0.5 5 1.138 1.125 1.151\n"), "sf")
	if err != nil {
		t.Fatalf("ParseTable failed: %v", err)
	}
	central, down, up, err := table.ScaleFactors(Inputs{Eta: 0.7})
	if err != nil {
		t.Fatalf("ScaleFactors failed: %v", err)
	}
	if central != 1.138 || down != 1.125 || up != 1.151 {
		t.Errorf("ScaleFactors = (%v, %v, %v)", central, down, up)
	}
	if _, err := table.Evaluate(Inputs{Eta: 0.7}); err == nil {
		t.Error("a scale-factor table has no scalar value")
	}
}

func TestUncertaintyGrid(t *testing.T) {
	table, err := ParseTable(strings.NewReader(
		"formula: uncertainty-grid\nbins: JetEta\nvars: JetPt\n-5 5 0 10000 10 0.05 0.06 100 0.02 0.03 1000 0.01 0.01\n"), "unc")
	if err != nil {
		t.Fatalf("ParseTable failed: %v", err)
	}

	tests := []struct {
		name     string
		pt       float64
		up       bool
		expected float64
	}{
		{name: "grid point up", pt: 100, up: true, expected: 0.02},
		{name: "grid point down", pt: 100, up: false, expected: 0.03},
		{name: "interpolated", pt: 55, up: true, expected: 0.035},
		{name: "below grid", pt: 5, up: false, expected: 0.06},
		{name: "above grid", pt: 5000, up: true, expected: 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Uncertainty(Inputs{Eta: 0, Pt: tt.pt}, tt.up)
			if err != nil {
				t.Fatalf("Uncertainty failed: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Uncertainty = %f, expected %f", got, tt.expected)
			}
		})
	}
}
