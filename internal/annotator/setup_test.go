package annotator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chrissnell/jetcalib/internal/calib"
	"github.com/chrissnell/jetcalib/internal/jets"
	"github.com/chrissnell/jetcalib/internal/secvtx"
	"github.com/chrissnell/jetcalib/pkg/config"
)

func writeTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range testTables {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(body), 0o644))
	}
	return dir
}

func TestSetupFromFiles(t *testing.T) {
	dir := writeTables(t)
	cfg := &config.ConfigData{
		JEC: config.JECData{
			Payloads:    []string{filepath.Join(dir, "L1FastJet.txt"), filepath.Join(dir, "L2Relative.txt")},
			Uncertainty: filepath.Join(dir, "Uncertainty.txt"),
		},
		JER: config.JERData{
			FromText:        true,
			ResolutionFile:  filepath.Join(dir, "JER_pt.txt"),
			ScaleFactorFile: filepath.Join(dir, "JER.txt"),
		},
		MET: config.METData{SkipEM: true, SkipMuons: true},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	a, err := Setup(context.Background(), cfg, nil)
	require.NoError(t, err)

	r, err := a.AnnotateJet(matchedJet(), jets.EventContext{Rho: 12, NVertices: 18})
	require.NoError(t, err)
	assert.InDelta(t, 1.08, r.CorrFactor, 1e-12)
	assert.InDelta(t, 0.9, r.CorrFactorL1, 1e-12)
	assert.InDelta(t, 108.2, r.Smeared.Central.P4.Pt(), 1e-9)
}

func TestSetupResolvesRelativePathsAgainstBaseDir(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := &config.ConfigData{
		JEC: config.JECData{
			Payloads:    []string{"L1FastJet.txt", "L2Relative.txt"},
			Uncertainty: "Uncertainty.txt",
		},
		JER: config.JERData{
			FromText:        true,
			ResolutionFile:  "JER_pt.txt",
			ScaleFactorFile: "JER.txt",
		},
		MET:     config.METData{SkipEM: true, SkipMuons: true},
		BaseDir: writeTables(t),
	}
	cfg.ApplyDefaults()

	a, err := Setup(context.Background(), cfg, zap.New(core).Sugar())
	require.NoError(t, err)

	r, err := a.AnnotateJet(matchedJet(), jets.EventContext{Rho: 12, NVertices: 18})
	require.NoError(t, err)
	assert.InDelta(t, 1.08, r.CorrFactor, 1e-12)

	entries := logs.FilterMessage("calibration tables loaded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, []interface{}{"L1FastJet", "L2Relative"}, fields["levels"])
	assert.Equal(t, []interface{}{"L1FastJet"}, fields["offset"])
	assert.Equal(t, secvtx.DefaultTagInfoLabel, fields["sv_tag_info"])
}

func TestSetupFromRegistry(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "calib.db")

	reg, err := calib.OpenRegistry(ctx, "sqlite", dsn, nil)
	require.NoError(t, err)
	parse := func(name, stored string) *calib.Table {
		tbl, err := calib.ParseTable(strings.NewReader(testTables[name]), stored)
		require.NoError(t, err)
		return tbl
	}
	_, err = reg.Import(ctx, "Summer16_V11_MC",
		parse("L1FastJet", "L1FastJet"), parse("L2Relative", "L2Relative"), parse("Uncertainty", "Uncertainty"))
	require.NoError(t, err)
	_, err = reg.Import(ctx, "Summer16_25nsV1_MC",
		parse("JER_pt", "Summer16_25nsV1_MC_pt"), parse("JER", "Summer16_25nsV1_MC"))
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	cfg := &config.ConfigData{
		Registry: &config.RegistryData{Driver: "sqlite", DSN: dsn},
		JEC: config.JECData{
			RegistryLabel: "Summer16_V11_MC",
			Levels:        []string{"L1FastJet", "L2Relative"},
			Uncertainty:   "Uncertainty",
		},
		JER: config.JERData{Label: "Summer16_25nsV1_MC"},
		MET: config.METData{SkipEM: true, SkipMuons: true},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	a, err := Setup(ctx, cfg, nil)
	require.NoError(t, err)

	r, err := a.AnnotateJet(matchedJet(), jets.EventContext{Rho: 12, NVertices: 18})
	require.NoError(t, err)
	assert.InDelta(t, 1.08, r.CorrFactor, 1e-12)
	assert.InDelta(t, 1.1, r.Resolution.SF, 1e-12)
	assert.InDelta(t, 108.2, r.Smeared.Central.P4.Pt(), 1e-9)

	cfg.JER.Label = "Fall17_V3_MC"
	_, err = Setup(ctx, cfg, nil)
	assert.ErrorIs(t, err, calib.ErrLabelNotFound)
}

func TestSetupMissingFile(t *testing.T) {
	dir := writeTables(t)
	cfg := &config.ConfigData{
		JEC: config.JECData{
			Payloads:    []string{filepath.Join(dir, "L1FastJet.txt"), filepath.Join(dir, "L3Absolute.txt")},
			Uncertainty: filepath.Join(dir, "Uncertainty.txt"),
		},
		JER: config.JERData{
			FromText:        true,
			ResolutionFile:  filepath.Join(dir, "JER_pt.txt"),
			ScaleFactorFile: filepath.Join(dir, "JER.txt"),
		},
	}
	cfg.ApplyDefaults()

	_, err := Setup(context.Background(), cfg, nil)
	assert.Error(t, err)
}
