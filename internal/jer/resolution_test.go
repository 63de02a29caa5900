package jer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/jetcalib/internal/calib"
)

const (
	resolutionText = `
formula: resolution
bins: JetEta
vars: JetPt
-5 5  1 10000  0 0 0.05 0
`
	scaleFactorText = `
formula: scale-factor
bins: JetEta
-2 2  1.1 1.05 1.15
`
)

func parse(t *testing.T, name, text string) *calib.Table {
	t.Helper()
	table, err := calib.ParseTable(strings.NewReader(text), name)
	require.NoError(t, err)
	return table
}

func TestResolve(t *testing.T) {
	model, err := NewResolutionModel(parse(t, "res", resolutionText), parse(t, "sf", scaleFactorText))
	require.NoError(t, err)

	got, err := model.Resolve(80, 0.5, 12)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, got.Sigma, 1e-12)
	assert.Equal(t, 1.1, got.SF)
	assert.Equal(t, 1.15, got.SFUp)
	assert.Equal(t, 1.05, got.SFDown)

	// No scale-factor bin beyond |eta| 2; the resolution still applies.
	got, err = model.Resolve(80, 3.1, 12)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, got.Sigma, 1e-12)
	assert.Equal(t, Outcome{Sigma: got.Sigma, SF: 1, SFUp: 1, SFDown: 1}, got)

	got, err = model.Resolve(80, 6, 12)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Sigma: 1, SF: 1, SFUp: 1, SFDown: 1}, got)
}

func TestResolveReportsLookupFailures(t *testing.T) {
	res := parse(t, "res", resolutionText)
	res.BinVars = []calib.Variable{"JetFlavour"}
	model := &ResolutionModel{resolution: res, scaleFactor: parse(t, "sf", scaleFactorText)}

	got, err := model.Resolve(80, 0.5, 12)
	require.Error(t, err)
	assert.NotErrorIs(t, err, calib.ErrNoBin)
	assert.Contains(t, err.Error(), "resolution")
	assert.Equal(t, Outcome{Sigma: 1, SF: 1.1, SFUp: 1.15, SFDown: 1.05}, got)
}

func TestNewResolutionModelFormulaCheck(t *testing.T) {
	res := parse(t, "res", resolutionText)
	sf := parse(t, "sf", scaleFactorText)

	_, err := NewResolutionModel(sf, res)
	assert.Error(t, err)
	_, err = NewResolutionModel(res, nil)
	assert.Error(t, err)
}

func TestLoadFromSource(t *testing.T) {
	src := calib.MapSource{
		"Summer16_25nsV1_MC_pt": parse(t, "Summer16_25nsV1_MC_pt", resolutionText),
		"Summer16_25nsV1_MC":    parse(t, "Summer16_25nsV1_MC", scaleFactorText),
	}

	model, err := LoadFromSource(context.Background(), src, "Summer16_25nsV1_MC")
	require.NoError(t, err)
	got, err := model.Resolve(50, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1.1, got.SF)

	_, err = LoadFromSource(context.Background(), src, "Fall17_V3_MC")
	assert.ErrorIs(t, err, calib.ErrLabelNotFound)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	resPath := filepath.Join(dir, "res.txt")
	sfPath := filepath.Join(dir, "sf.txt")
	require.NoError(t, os.WriteFile(resPath, []byte(resolutionText), 0o644))
	require.NoError(t, os.WriteFile(sfPath, []byte(scaleFactorText), 0o644))

	model, err := LoadFromFiles(resPath, sfPath)
	require.NoError(t, err)
	got, err := model.Resolve(50, 0, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, got.Sigma, 1e-12)

	_, err = LoadFromFiles(filepath.Join(dir, "missing.txt"), sfPath)
	assert.Error(t, err)
}
