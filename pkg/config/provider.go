package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults applied to settings left empty.
const (
	DefaultConeSize            = 0.4
	DefaultSVTagInfoLabel      = "pfInclusiveSecondaryVertexFinder"
	DefaultSeed         uint64 = 37428479
	DefaultEMFraction          = 0.9
	DefaultJetPtThreshold      = 10.0
	DefaultCorrectionEtaMax    = 9.9
)

// DefaultMuonSelection is used when met.muon_selection is not set.
var DefaultMuonSelection = []string{"global", "standalone"}

var muonFlags = map[string]bool{"global": true, "standalone": true, "tracker": true, "pf": true}

var registryDrivers = map[string]bool{"sqlite": true, "postgres": true, "pgx": true}

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete pipeline configuration
type ConfigData struct {
	JEC              JECData       `json:"jec"`
	JER              JERData       `json:"jer"`
	Registry         *RegistryData `json:"registry,omitempty"`
	MET              METData       `json:"met"`
	ConeSize         float64       `json:"cone_size"`
	SVTagInfoLabel   string        `json:"sv_tag_info_label"`
	Seed             uint64        `json:"seed"`
	CorrectionEtaMax float64       `json:"correction_eta_max"`

	// BaseDir anchors relative table paths. The YAML provider sets it to
	// the directory holding the configuration file.
	BaseDir string `json:"-"`
}

// JECData selects the correction payloads. In file mode Payloads lists
// table files in application order, the first being the pile-up offset.
// In registry mode Levels lists table names stored under RegistryLabel.
// Uncertainty is a file path or a table name to match.
type JECData struct {
	Payloads      []string `json:"payloads,omitempty"`
	RegistryLabel string   `json:"registry_label,omitempty"`
	Levels        []string `json:"levels,omitempty"`
	Uncertainty   string   `json:"uncertainty"`
}

// JERData selects the resolution tables: two files when FromText is set,
// otherwise the registry tables "<Label>_pt" and "<Label>" under Label.
type JERData struct {
	FromText        bool   `json:"from_text"`
	ResolutionFile  string `json:"resolution_file,omitempty"`
	ScaleFactorFile string `json:"scale_factor_file,omitempty"`
	Label           string `json:"label,omitempty"`
}

// RegistryData holds the calibration registry connection
type RegistryData struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// METData holds the jet selection for MET propagation. The thresholds are
// pointers so an explicit 0 is kept apart from an unset value.
type METData struct {
	SkipEM                  bool     `json:"skip_em"`
	SkipEMFractionThreshold *float64 `json:"skip_em_fraction_threshold,omitempty"`
	SkipMuons               bool     `json:"skip_muons"`
	MuonSelection           []string `json:"muon_selection"`
	JetPtThreshold          *float64 `json:"jet_pt_threshold,omitempty"`
}

// GetSkipEMFractionThreshold returns the EM fraction veto threshold or its
// default.
func (m METData) GetSkipEMFractionThreshold() float64 {
	if m.SkipEMFractionThreshold == nil {
		return DefaultEMFraction
	}
	return *m.SkipEMFractionThreshold
}

// GetJetPtThreshold returns the MET jet pt threshold or its default.
func (m METData) GetJetPtThreshold() float64 {
	if m.JetPtThreshold == nil {
		return DefaultJetPtThreshold
	}
	return *m.JetPtThreshold
}

// UsesRegistry reports whether any table comes from the registry.
func (c *ConfigData) UsesRegistry() bool {
	return c.JEC.RegistryLabel != "" || !c.JER.FromText
}

// ApplyDefaults fills settings left unset. Scalars treat their zero value as
// unset; the MET thresholds only default when nil.
func (c *ConfigData) ApplyDefaults() {
	if c.ConeSize == 0 {
		c.ConeSize = DefaultConeSize
	}
	if c.SVTagInfoLabel == "" {
		c.SVTagInfoLabel = DefaultSVTagInfoLabel
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.CorrectionEtaMax == 0 {
		c.CorrectionEtaMax = DefaultCorrectionEtaMax
	}
	if c.MET.SkipEMFractionThreshold == nil {
		t := DefaultEMFraction
		c.MET.SkipEMFractionThreshold = &t
	}
	if c.MET.JetPtThreshold == nil {
		t := DefaultJetPtThreshold
		c.MET.JetPtThreshold = &t
	}
	if c.MET.MuonSelection == nil {
		c.MET.MuonSelection = append([]string(nil), DefaultMuonSelection...)
	}
	if c.Registry != nil && c.Registry.Driver == "" {
		c.Registry.Driver = "sqlite"
	}
}

// Validate checks the configuration for consistency
func (c *ConfigData) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	switch {
	case len(c.JEC.Payloads) > 0 && c.JEC.RegistryLabel != "":
		return invalid("jec.payloads and jec.registry_label are mutually exclusive")
	case len(c.JEC.Payloads) == 0 && c.JEC.RegistryLabel == "":
		return invalid("jec needs payloads or a registry_label")
	case c.JEC.RegistryLabel != "" && len(c.JEC.Levels) == 0:
		return invalid("jec.registry_label %q needs levels", c.JEC.RegistryLabel)
	}
	if c.JEC.Uncertainty == "" {
		return invalid("jec.uncertainty is required")
	}

	if c.JER.FromText {
		if c.JER.ResolutionFile == "" || c.JER.ScaleFactorFile == "" {
			return invalid("jer.from_text needs resolution_file and scale_factor_file")
		}
	} else if c.JER.Label == "" {
		return invalid("jer.label is required unless jer.from_text is set")
	}

	if c.UsesRegistry() {
		if c.Registry == nil || c.Registry.DSN == "" {
			return invalid("registry.dsn is required for registry tables")
		}
	}
	if c.Registry != nil && !registryDrivers[c.Registry.Driver] {
		return invalid("unsupported registry driver %q", c.Registry.Driver)
	}

	if c.ConeSize <= 0 {
		return invalid("cone_size must be positive, got %g", c.ConeSize)
	}
	if c.CorrectionEtaMax <= 0 {
		return invalid("correction_eta_max must be positive, got %g", c.CorrectionEtaMax)
	}
	if t := c.MET.GetSkipEMFractionThreshold(); t < 0 || t > 1 {
		return invalid("met.skip_em_fraction_threshold must be within [0, 1], got %g", t)
	}
	if t := c.MET.GetJetPtThreshold(); t < 0 {
		return invalid("met.jet_pt_threshold must not be negative, got %g", t)
	}
	for _, f := range c.MET.MuonSelection {
		if !muonFlags[strings.ToLower(f)] {
			return invalid("unknown muon selection flag %q", f)
		}
	}
	return nil
}
