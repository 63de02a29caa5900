package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// YAML-specific structs with yaml tags. Booleans that default to true are
// pointers so an absent key can be told apart from false.
type ConfigYAML struct {
	JEC              JECYAML       `yaml:"jec"`
	JER              JERYAML       `yaml:"jer"`
	Registry         *RegistryYAML `yaml:"registry,omitempty"`
	MET              METYAML       `yaml:"met,omitempty"`
	ConeSize         float64       `yaml:"cone_size,omitempty"`
	SVTagInfoLabel   string        `yaml:"sv_tag_info_label,omitempty"`
	Seed             uint64        `yaml:"seed,omitempty"`
	CorrectionEtaMax float64       `yaml:"correction_eta_max,omitempty"`
}

type JECYAML struct {
	Payloads      []string `yaml:"payloads,omitempty"`
	RegistryLabel string   `yaml:"registry_label,omitempty"`
	Levels        []string `yaml:"levels,omitempty"`
	Uncertainty   string   `yaml:"uncertainty"`
}

type JERYAML struct {
	FromText        bool   `yaml:"from_text,omitempty"`
	ResolutionFile  string `yaml:"resolution_file,omitempty"`
	ScaleFactorFile string `yaml:"scale_factor_file,omitempty"`
	Label           string `yaml:"label,omitempty"`
}

type RegistryYAML struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn"`
}

type METYAML struct {
	SkipEM                  *bool    `yaml:"skip_em,omitempty"`
	SkipEMFractionThreshold *float64 `yaml:"skip_em_fraction_threshold,omitempty"`
	SkipMuons               *bool    `yaml:"skip_muons,omitempty"`
	MuonSelection           []string `yaml:"muon_selection,omitempty"`
	JetPtThreshold          *float64 `yaml:"jet_pt_threshold,omitempty"`
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// LoadConfig loads, defaults and validates the configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(cfgFile, &yamlConfig); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}

	// Convert to our internal format
	config := &ConfigData{
		JEC: JECData{
			Payloads:      yamlConfig.JEC.Payloads,
			RegistryLabel: yamlConfig.JEC.RegistryLabel,
			Levels:        yamlConfig.JEC.Levels,
			Uncertainty:   yamlConfig.JEC.Uncertainty,
		},
		JER: JERData{
			FromText:        yamlConfig.JER.FromText,
			ResolutionFile:  yamlConfig.JER.ResolutionFile,
			ScaleFactorFile: yamlConfig.JER.ScaleFactorFile,
			Label:           yamlConfig.JER.Label,
		},
		MET: METData{
			SkipEM:                  boolOr(yamlConfig.MET.SkipEM, true),
			SkipEMFractionThreshold: yamlConfig.MET.SkipEMFractionThreshold,
			SkipMuons:               boolOr(yamlConfig.MET.SkipMuons, true),
			MuonSelection:           yamlConfig.MET.MuonSelection,
			JetPtThreshold:          yamlConfig.MET.JetPtThreshold,
		},
		ConeSize:         yamlConfig.ConeSize,
		SVTagInfoLabel:   yamlConfig.SVTagInfoLabel,
		Seed:             yamlConfig.Seed,
		CorrectionEtaMax: yamlConfig.CorrectionEtaMax,
	}
	if yamlConfig.Registry != nil {
		config.Registry = &RegistryData{
			Driver: yamlConfig.Registry.Driver,
			DSN:    yamlConfig.Registry.DSN,
		}
	}

	config.BaseDir = filepath.Dir(y.filename)
	if abs, err := filepath.Abs(config.BaseDir); err == nil {
		config.BaseDir = abs
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// IsReadOnly returns true since YAML files are read-only in this context
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
