package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/ranking"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "climatescope.json"

// Config is the pipeline configuration
type Config struct {
	Paths PathsConfig `json:"paths"`

	// Languages every document is produced in
	Langs []string `json:"langs"`

	Core      CoreConfig      `json:"core"`
	Ranking   RankingConfig   `json:"ranking"`
	Export    ExportConfig    `json:"export"`
	WorldBank WorldBankConfig `json:"worldbank"`
	Profile   ProfileConfig   `json:"profile"`
	Auxiliary AuxiliaryConfig `json:"auxiliary"`

	// path the config was loaded from; empty for defaults
	path string
}

// PathsConfig holds source and export locations
type PathsConfig struct {
	CoreDir      string `json:"core_dir"`
	AuxiliaryDir string `json:"auxiliary_dir"`
	AdminAreas   string `json:"admin_areas"`
	Index        string `json:"index"`
	Profiles     string `json:"profiles"`
	ExportDir    string `json:"export_dir"`
	Database     string `json:"database"`
	LogDir       string `json:"log_dir,omitempty"`
}

// CoreConfig describes the edition workbooks
type CoreConfig struct {
	Sheets  []string      `json:"sheets"`
	Columns facts.Columns `json:"columns"`
}

// RankingConfig is the null/zero policy
type RankingConfig struct {
	ZeroIsMissing bool  `json:"zero_is_missing"`
	GenuineZero   []int `json:"genuine_zero,omitempty"` // indicator ids where 0 is a real value
}

// Policy converts the config into a ranking policy.
func (r RankingConfig) Policy() ranking.Policy {
	p := ranking.Policy{ZeroIsMissing: r.ZeroIsMissing}
	if len(r.GenuineZero) > 0 {
		p.GenuineZero = make(map[meta.IndicatorID]bool, len(r.GenuineZero))
		for _, id := range r.GenuineZero {
			p.GenuineZero[meta.IndicatorID(id)] = true
		}
	}
	return p
}

// Output directory policies
const (
	PolicyRefuse = "refuse" // stop if the export dir exists
	PolicyWipe   = "wipe"   // remove and recreate it
)

// ExportConfig controls the output sink
type ExportConfig struct {
	OutputPolicy string `json:"output_policy"`
	// Decimal places per export target; negative leaves values unrounded
	Precision map[string]int `json:"precision"`
}

// Export targets
const (
	TargetJSON = "json"
	TargetCSV  = "csv"
	TargetDB   = "db"
)

// PrecisionFor returns the precision of target, unrounded when unset.
func (e ExportConfig) PrecisionFor(target string) int {
	if p, ok := e.Precision[target]; ok {
		return p
	}
	return -1
}

// WorldBankConfig configures the World Bank API client
type WorldBankConfig struct {
	BaseURL           string  `json:"base_url"`
	MaxFallbackYears  int     `json:"max_fallback_years"` // how far back to step when a year has no value
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
}

// ProfileIndicator is one figure of an area profile
type ProfileIndicator struct {
	ID         string     `json:"id"`
	Name       meta.Names `json:"name"`
	Unit       meta.Names `json:"unit"`
	Conversion string     `json:"conversion,omitempty"` // e.g. "percent|round2"
	WorldBank  string     `json:"worldbank,omitempty"`  // indicator code used when the profile cell is blank

	// Applied to World Bank observations instead of Conversion
	WorldBankConversion string `json:"worldbank_conversion,omitempty"`
}

// ProfileConfig lists the profile indicators
type ProfileConfig struct {
	Year       int                `json:"year"` // year asked of the World Bank; 0 means the current edition
	Indicators []ProfileIndicator `json:"indicators"`
}

// Series is one line of an auxiliary chart
type Series struct {
	ID       string     `json:"id"`        // id in the export; "country" labels the serie with the area
	SourceID string     `json:"source_id"` // sub_indicator value in the source CSV
	Name     meta.Names `json:"name,omitempty"`
}

// Chart is one auxiliary chart
type Chart struct {
	ID     int        `json:"id"`     // source file is <edition>-<id>.csv
	Export string     `json:"export"` // folder of the exported documents
	Title  meta.Names `json:"title"`
	LabelX meta.Names `json:"label_x"`
	LabelY meta.Names `json:"label_y"`
	Series []Series   `json:"series"`
	Years  []int      `json:"years"`
}

// AuxiliaryConfig lists the auxiliary charts
type AuxiliaryConfig struct {
	Edition int     `json:"edition"`
	Charts  []Chart `json:"charts"`
}

// DefaultConfig returns the settings of the published site
func DefaultConfig() *Config {
	history := []int{2006, 2007, 2008, 2009, 2010, 2011, 2012, 2013}
	return &Config{
		Paths: PathsConfig{
			CoreDir:      "source/cs-core",
			AuxiliaryDir: "source/cs-auxiliary",
			AdminAreas:   "source/meta/admin_areas.csv",
			Index:        "source/meta/index.csv",
			Profiles:     "source/cs-profiles/profiles.csv",
			ExportDir:    "data",
			Database:     filepath.Join("data", DatabaseFile),
		},
		Langs: []string{"en", "es"},
		Core: CoreConfig{
			Sheets:  append([]string(nil), facts.DefaultSheets...),
			Columns: facts.DefaultColumns,
		},
		Ranking: RankingConfig{ZeroIsMissing: true},
		Export: ExportConfig{
			OutputPolicy: PolicyWipe,
			Precision: map[string]int{
				TargetJSON: 2,
				TargetCSV:  5,
				TargetDB:   -1,
			},
		},
		WorldBank: WorldBankConfig{
			BaseURL:           "https://api.worldbank.org/v2",
			MaxFallbackYears:  5,
			RequestsPerSecond: 4,
			TimeoutSeconds:    30,
		},
		Profile: ProfileConfig{
			Indicators: []ProfileIndicator{
				{ID: "gdp", Name: meta.Names{"en": "GDP", "es": "PIB"}, Unit: meta.Names{"en": "$bn", "es": "$mm"}, WorldBank: "NY.GDP.MKTP.CD", WorldBankConversion: "billion|round2"},
				{ID: "growth_rate", Name: meta.Names{"en": "Five-year economic growth rate", "es": "Tasa de Crecimiento Anual Compuesto del PIB en 5 Años"}, Unit: meta.Names{"": "%"}, Conversion: "percent|round2"},
				{ID: "population", Name: meta.Names{"en": "Population", "es": "Población"}, Unit: meta.Names{"": "m"}, WorldBank: "SP.POP.TOTL", WorldBankConversion: "million|round2"},
				{ID: "clean_energy_investments", Name: meta.Names{"en": "Total clean energy investments, 2012-2016", "es": "Total de Inversiones Acumuladas de Energía Limpia, 2012-2016"}, Unit: meta.Names{"en": "$bn", "es": "$mm"}},
				{ID: "installed_power_capacity", Name: meta.Names{"en": "Installed power capacity", "es": "Potencia Instalada"}, Unit: meta.Names{"": "GW"}},
				{ID: "renewable_share", Name: meta.Names{"en": "Renewable share", "es": "Proporción de Renovables"}, Unit: meta.Names{"": "%"}, Conversion: "percent|round2"},
				{ID: "clean_energy_generation", Name: meta.Names{"en": "Total clean energy generation", "es": "Generación Total de Energía Limpia"}, Unit: meta.Names{"": "GWh"}},
			},
		},
		Auxiliary: AuxiliaryConfig{
			Edition: 2014,
			Charts: []Chart{
				{
					ID:     107,
					Export: "installed-capacity",
					Title:  meta.Names{"en": "Installed capacity", "es": "Capacidad instalada"},
					LabelX: meta.Names{"en": "year", "es": "año"},
					LabelY: meta.Names{"": "MW"},
					Series: []Series{
						{ID: "non-clean-energy", SourceID: "Non-clean Energy", Name: meta.Names{"en": "Non-clean Energy", "es": "Energía no limpia"}},
						{ID: "clean-energy", SourceID: "Clean Energy", Name: meta.Names{"en": "Clean Energy", "es": "Energía limpia"}},
					},
					Years: history,
				},
				{
					ID:     201,
					Export: "clean-energy-investments",
					Title:  meta.Names{"en": "Clean energy investments", "es": "Inversiones en energías limpias"},
					LabelX: meta.Names{"en": "year", "es": "año"},
					LabelY: meta.Names{"": "USDm"},
					Series: []Series{{ID: "country", SourceID: "Clean energy investments"}},
					Years:  history,
				},
				{
					ID:     401,
					Export: "carbon-offset-projects",
					Title:  meta.Names{"en": "Carbon offset projects by sector", "es": "Compensaciones de carbono por sector"},
					LabelX: meta.Names{"en": "category", "es": "categoria"},
					LabelY: meta.Names{"": ""},
					Series: []Series{
						{ID: "power-generation", SourceID: "Power generation", Name: meta.Names{"en": "Power generation", "es": "Generación eléctrica"}},
						{ID: "methane", SourceID: "Methane", Name: meta.Names{"en": "Methane", "es": "Metano"}},
						{ID: "forestry", SourceID: "Forestry", Name: meta.Names{"en": "Forestry", "es": "Silvicultura"}},
						{ID: "waste", SourceID: "Waste", Name: meta.Names{"en": "Waste", "es": "Residuos"}},
						{ID: "energy-efficiency", SourceID: "Energy efficiency", Name: meta.Names{"en": "Energy efficiency", "es": "Eficiencia energética"}},
						{ID: "other", SourceID: "Other", Name: meta.Names{"en": "Other", "es": "Otro"}},
					},
					Years: []int{2014},
				},
			},
		},
	}
}

// Load reads config from path, or returns defaults when the file does
// not exist. Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		// Decode over the defaults so a partial file only overrides what it names
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.path = path
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config came from, empty for defaults.
func (c *Config) Path() string { return c.path }

// Save writes config to path
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DatabaseFile is the build database's file name under the export dir.
const DatabaseFile = "climatescope.db"

// ApplyEnv overrides paths and endpoints from environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CS_SOURCE_DIR"); v != "" {
		c.Paths.CoreDir = filepath.Join(v, "cs-core")
		c.Paths.AuxiliaryDir = filepath.Join(v, "cs-auxiliary")
		c.Paths.AdminAreas = filepath.Join(v, "meta", "admin_areas.csv")
		c.Paths.Index = filepath.Join(v, "meta", "index.csv")
		c.Paths.Profiles = filepath.Join(v, "cs-profiles", "profiles.csv")
	}
	if v := os.Getenv("CS_EXPORT_DIR"); v != "" {
		// a database kept inside the export dir moves with it
		if c.Paths.Database == filepath.Join(c.Paths.ExportDir, DatabaseFile) {
			c.Paths.Database = filepath.Join(v, DatabaseFile)
		}
		c.Paths.ExportDir = v
	}
	if v := os.Getenv("CS_DATABASE"); v != "" {
		c.Paths.Database = v
	}
	if v := os.Getenv("WORLDBANK_API_URL"); v != "" {
		c.WorldBank.BaseURL = v
	}
	if v := os.Getenv("CS_ZERO_IS_MISSING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Ranking.ZeroIsMissing = b
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Export.OutputPolicy {
	case PolicyRefuse, PolicyWipe:
	default:
		return fmt.Errorf("config: output_policy %q must be %q or %q", c.Export.OutputPolicy, PolicyRefuse, PolicyWipe)
	}
	if len(c.Langs) == 0 {
		return fmt.Errorf("config: at least one language is required")
	}
	if c.Paths.ExportDir == "" {
		return fmt.Errorf("config: export_dir is required")
	}
	if c.WorldBank.MaxFallbackYears < 0 {
		return fmt.Errorf("config: max_fallback_years must not be negative")
	}
	return nil
}
