package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfigPath is the path to the canonical run defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig is the per-run configuration of a post-classification
// run. Thresholds and class codes are not here: they live in the rule set
// the run selects, so one binary can reproduce any dataset.
type PipelineConfig struct {
	// Rule set selection: an embedded rule set by name, or a YAML file.
	RuleSet     *string `json:"ruleset,omitempty"`
	RuleSetPath *string `json:"ruleset_path,omitempty"`

	// Execution
	Workers    *int  `json:"workers,omitempty"` // 0 = one per CPU
	Checkpoint *bool `json:"checkpoint,omitempty"`
	Resume     *bool `json:"resume,omitempty"`

	// Outputs
	DBPath          *string `json:"db_path,omitempty"`
	MetricsTextfile *string `json:"metrics_textfile,omitempty"`

	// Study region clip (GeoJSON FeatureCollection of polygons)
	RegionGeoJSON *string `json:"region_geojson,omitempty"`

	// Logging
	LogDiag  *bool `json:"log_diag,omitempty"`
	LogTrace *bool `json:"log_trace,omitempty"`
}

func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields set to nil.
// Use LoadPipelineConfig to load actual values from a file.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field populated with
// the same values the Get* accessors fall back to.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		RuleSet:         ptrString(DefaultRuleSet),
		RuleSetPath:     ptrString(""),
		Workers:         ptrInt(0),
		Checkpoint:      ptrBool(true),
		Resume:          ptrBool(false),
		DBPath:          ptrString("landcover.db"),
		MetricsTextfile: ptrString(""),
		RegionGeoJSON:   ptrString(""),
		LogDiag:         ptrBool(false),
		LogTrace:        ptrBool(false),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON keep their defaults, so partial configs are
// safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Relative paths inside the file are relative to the file.
	base := filepath.Dir(cleanPath)
	for _, p := range []*string{cfg.RuleSetPath, cfg.RegionGeoJSON} {
		if p != nil && *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/landcover/pipeline/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	hasName := c.RuleSet != nil && *c.RuleSet != ""
	hasPath := c.RuleSetPath != nil && *c.RuleSetPath != ""
	if hasName && hasPath {
		return fmt.Errorf("ruleset and ruleset_path are mutually exclusive")
	}
	if hasName && !IsEmbeddedRuleSet(*c.RuleSet) {
		return fmt.Errorf("unknown ruleset %q (embedded: %v)", *c.RuleSet, EmbeddedRuleSets())
	}
	if hasPath {
		if ext := filepath.Ext(*c.RuleSetPath); ext != ".yaml" && ext != ".yml" {
			return fmt.Errorf("ruleset_path must be a .yaml file, got %q", ext)
		}
	}

	if c.RegionGeoJSON != nil && *c.RegionGeoJSON != "" {
		if ext := filepath.Ext(*c.RegionGeoJSON); ext != ".geojson" && ext != ".json" {
			return fmt.Errorf("region_geojson must be a .geojson or .json file, got %q", ext)
		}
	}

	if c.GetResume() && !c.GetCheckpoint() {
		return fmt.Errorf("resume requires checkpoint")
	}
	return nil
}

// GetRuleSet returns the embedded rule set name, or "" when a rule set file
// is configured.
func (c *PipelineConfig) GetRuleSet() string {
	if c.RuleSetPath != nil && *c.RuleSetPath != "" {
		return ""
	}
	if c.RuleSet == nil || *c.RuleSet == "" {
		return DefaultRuleSet
	}
	return *c.RuleSet
}

// GetRuleSetPath returns the rule set file path, if any.
func (c *PipelineConfig) GetRuleSetPath() string {
	if c.RuleSetPath == nil {
		return ""
	}
	return *c.RuleSetPath
}

// GetWorkers returns the worker count, resolving 0 to the number of CPUs.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetCheckpoint returns the checkpoint value or the default.
func (c *PipelineConfig) GetCheckpoint() bool {
	if c.Checkpoint == nil {
		return true
	}
	return *c.Checkpoint
}

// GetResume returns the resume value or the default.
func (c *PipelineConfig) GetResume() bool {
	if c.Resume == nil {
		return false
	}
	return *c.Resume
}

// GetDBPath returns the asset registry path or the default.
func (c *PipelineConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "landcover.db"
	}
	return *c.DBPath
}

// GetMetricsTextfile returns the metrics textfile path; "" disables export.
func (c *PipelineConfig) GetMetricsTextfile() string {
	if c.MetricsTextfile == nil {
		return ""
	}
	return *c.MetricsTextfile
}

// GetRegionGeoJSON returns the region file path; "" disables clipping.
func (c *PipelineConfig) GetRegionGeoJSON() string {
	if c.RegionGeoJSON == nil {
		return ""
	}
	return *c.RegionGeoJSON
}

// GetLogDiag returns the log_diag value or the default.
func (c *PipelineConfig) GetLogDiag() bool {
	if c.LogDiag == nil {
		return false
	}
	return *c.LogDiag
}

// GetLogTrace returns the log_trace value or the default.
func (c *PipelineConfig) GetLogTrace() bool {
	if c.LogTrace == nil {
		return false
	}
	return *c.LogTrace
}

// LoadRuleSet resolves and loads the configured rule set.
func (c *PipelineConfig) LoadRuleSet() (*RuleSet, error) {
	if p := c.GetRuleSetPath(); p != "" {
		return LoadRuleSetFile(p)
	}
	return LoadEmbeddedRuleSet(c.GetRuleSet())
}
