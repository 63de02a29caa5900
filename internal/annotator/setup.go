package annotator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chrissnell/jetcalib/internal/calib"
	"github.com/chrissnell/jetcalib/internal/jec"
	"github.com/chrissnell/jetcalib/internal/jer"
	"github.com/chrissnell/jetcalib/internal/log"
	"github.com/chrissnell/jetcalib/internal/met"
	"github.com/chrissnell/jetcalib/internal/secvtx"
	"github.com/chrissnell/jetcalib/pkg/config"
)

// Setup loads every calibration table named by cfg and builds an
// annotator. All table loading happens here; a missing or malformed table
// is returned as an error.
func Setup(ctx context.Context, cfg *config.ConfigData, logger *zap.SugaredLogger) (*Annotator, error) {
	logger = log.OrNop(logger)

	var reg *calib.Registry
	if cfg.UsesRegistry() {
		if cfg.Registry == nil {
			return nil, fmt.Errorf("%w: registry tables configured without a registry", config.ErrInvalid)
		}
		var err error
		reg, err = calib.OpenRegistry(ctx, cfg.Registry.Driver, cfg.Registry.DSN, logger)
		if err != nil {
			return nil, err
		}
		defer reg.Close()
	}

	files := calib.FileSource{Dir: cfg.BaseDir}
	var jecSource calib.Source = files
	names := cfg.JEC.Payloads
	if cfg.JEC.RegistryLabel != "" {
		jecSource = reg.Labeled(cfg.JEC.RegistryLabel)
		names = cfg.JEC.Levels
	}

	payloads, err := loadTables(ctx, jecSource, names)
	if err != nil {
		return nil, fmt.Errorf("failed to load correction payloads: %w", err)
	}
	full, offset, err := jec.NewChains(payloads, cfg.CorrectionEtaMax)
	if err != nil {
		return nil, err
	}

	uncTable, err := jecSource.Load(ctx, cfg.JEC.Uncertainty)
	if err != nil {
		return nil, fmt.Errorf("failed to load correction uncertainty: %w", err)
	}
	unc, err := jec.NewUncertaintyEvaluator(uncTable)
	if err != nil {
		return nil, err
	}

	var resolution *jer.ResolutionModel
	if cfg.JER.FromText {
		resolution, err = jer.LoadFromFiles(files.Path(cfg.JER.ResolutionFile), files.Path(cfg.JER.ScaleFactorFile))
	} else {
		resolution, err = jer.LoadFromSource(ctx, reg.Labeled(cfg.JER.Label), cfg.JER.Label)
	}
	if err != nil {
		return nil, err
	}

	muons, err := met.SelectMuons(cfg.MET.MuonSelection)
	if err != nil {
		return nil, err
	}
	propagator := met.NewPropagator(met.Config{
		SkipEM:              cfg.MET.SkipEM,
		EMFractionThreshold: cfg.MET.GetSkipEMFractionThreshold(),
		SkipMuons:           cfg.MET.SkipMuons,
		Muons:               muons,
		JetPtThreshold:      cfg.MET.GetJetPtThreshold(),
	})

	summarizer := secvtx.NewSummarizer(cfg.SVTagInfoLabel)

	logger.Infow("calibration tables loaded",
		"levels", full.Levels(),
		"offset", offset.Levels(),
		"uncertainty", uncTable.Name,
		"jer_from_text", cfg.JER.FromText,
		"sv_tag_info", summarizer.Label(),
		"seed", cfg.Seed,
	)

	return New(Components{
		FullCorrection:   full,
		OffsetCorrection: offset,
		Uncertainty:      unc,
		Resolution:       resolution,
		Smearer:          jer.NewSeededSmearer(cfg.ConeSize, cfg.Seed),
		MET:              propagator,
		SecondaryVertex:  summarizer,
	}, logger)
}

func loadTables(ctx context.Context, src calib.Source, names []string) ([]*calib.Table, error) {
	tables := make([]*calib.Table, 0, len(names))
	for _, name := range names {
		t, err := src.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}
