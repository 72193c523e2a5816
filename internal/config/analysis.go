package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
// It mirrors the values returned by the Get* accessors.
const DefaultConfigPath = "config/analysis.defaults.json"

// Defaults for an analysis run. They reproduce the original one-shot script.
const (
	DefaultThreshold    = 100.0
	DefaultLowerMargin  = 0.9
	DefaultUpperMargin  = 1.1
	DefaultReference    = "Ha"
	DefaultOutput       = "finfig.png"
	DefaultDPI          = 200
	DefaultWidthInches  = 10.0
	DefaultHeightInches = 8.0
	DefaultMarkerRadius = 1.0 // points
	DefaultDataDir      = ".."
)

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Dataset names one input series and the time step it was sampled at.
type Dataset struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	TimeStep string `json:"time_step"`
}

// Title is the subplot title for the dataset, e.g. "dt=1e-4".
func (d Dataset) Title() string {
	return "dt=" + d.TimeStep
}

// DefaultDatasets returns the three input series under dataDir, highest
// resolution first.
func DefaultDatasets(dataDir string) []Dataset {
	return []Dataset{
		{Name: "Ha", Path: filepath.Join(dataDir, "Hadata.dat"), TimeStep: "1e-4"},
		{Name: "Ma", Path: filepath.Join(dataDir, "Madata.dat"), TimeStep: "1e-5"},
		{Name: "La", Path: filepath.Join(dataDir, "Ladata.dat"), TimeStep: "1e-6"},
	}
}

// AnalysisConfig holds the knobs of a run. Unset fields fall back to the
// defaults above through the Get* accessors, so partial files are safe.
type AnalysisConfig struct {
	// Detection
	Threshold   *float64 `json:"threshold,omitempty"`
	LowerMargin *float64 `json:"lower_margin,omitempty"`
	UpperMargin *float64 `json:"upper_margin,omitempty"`
	Reference   *string  `json:"reference,omitempty"`

	// Inputs
	Datasets []Dataset `json:"datasets,omitempty"`
	DataDir  *string   `json:"data_dir,omitempty"` // only used when Datasets is empty

	// Rendering
	Output       *string  `json:"output,omitempty"`
	DPI          *int     `json:"dpi,omitempty"`
	WidthInches  *float64 `json:"width_inches,omitempty"`
	HeightInches *float64 `json:"height_inches,omitempty"`
	MarkerRadius *float64 `json:"marker_radius,omitempty"`

	// Optional extra outputs; empty disables them.
	HTMLOutput   *string `json:"html_output,omitempty"`
	ReportOutput *string `json:"report_output,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its default.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Threshold:    ptrFloat64(DefaultThreshold),
		LowerMargin:  ptrFloat64(DefaultLowerMargin),
		UpperMargin:  ptrFloat64(DefaultUpperMargin),
		Reference:    ptrString(DefaultReference),
		Datasets:     DefaultDatasets(DefaultDataDir),
		Output:       ptrString(DefaultOutput),
		DPI:          ptrInt(DefaultDPI),
		WidthInches:  ptrFloat64(DefaultWidthInches),
		HeightInches: ptrFloat64(DefaultHeightInches),
		MarkerRadius: ptrFloat64(DefaultMarkerRadius),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *AnalysisConfig) Validate() error {
	if c.Threshold != nil && *c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %f", *c.Threshold)
	}
	if c.LowerMargin != nil && *c.LowerMargin < 0 {
		return fmt.Errorf("lower_margin must be non-negative, got %f", *c.LowerMargin)
	}
	if c.UpperMargin != nil && *c.UpperMargin < 0 {
		return fmt.Errorf("upper_margin must be non-negative, got %f", *c.UpperMargin)
	}
	if c.DPI != nil && *c.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %d", *c.DPI)
	}
	if c.WidthInches != nil && *c.WidthInches <= 0 {
		return fmt.Errorf("width_inches must be positive, got %f", *c.WidthInches)
	}
	if c.HeightInches != nil && *c.HeightInches <= 0 {
		return fmt.Errorf("height_inches must be positive, got %f", *c.HeightInches)
	}
	if c.MarkerRadius != nil && *c.MarkerRadius <= 0 {
		return fmt.Errorf("marker_radius must be positive, got %f", *c.MarkerRadius)
	}
	if c.Output != nil && strings.TrimSpace(*c.Output) == "" {
		return fmt.Errorf("output must not be empty")
	}

	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		if d.Name == "" {
			return fmt.Errorf("datasets[%d]: name is required", i)
		}
		if d.Path == "" {
			return fmt.Errorf("datasets[%d] (%s): path is required", i, d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("datasets[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true
	}

	ref := c.GetReference()
	for _, d := range c.GetDatasets() {
		if d.Name == ref {
			return nil
		}
	}
	return fmt.Errorf("reference dataset %q is not among the configured datasets", ref)
}

// GetThreshold returns the jump threshold or the default.
func (c *AnalysisConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// GetLowerMargin returns the lower window margin or the default.
func (c *AnalysisConfig) GetLowerMargin() float64 {
	if c.LowerMargin == nil {
		return DefaultLowerMargin
	}
	return *c.LowerMargin
}

// GetUpperMargin returns the upper window margin or the default.
func (c *AnalysisConfig) GetUpperMargin() float64 {
	if c.UpperMargin == nil {
		return DefaultUpperMargin
	}
	return *c.UpperMargin
}

// GetReference returns the name of the dataset used for detection.
func (c *AnalysisConfig) GetReference() string {
	if c.Reference == nil || *c.Reference == "" {
		return DefaultReference
	}
	return *c.Reference
}

// GetDataDir returns the directory holding the default input files.
func (c *AnalysisConfig) GetDataDir() string {
	if c.DataDir == nil || *c.DataDir == "" {
		return DefaultDataDir
	}
	return *c.DataDir
}

// GetDatasets returns the configured datasets, or the three defaults under
// GetDataDir when none are configured.
func (c *AnalysisConfig) GetDatasets() []Dataset {
	if len(c.Datasets) == 0 {
		return DefaultDatasets(c.GetDataDir())
	}
	return c.Datasets
}

// GetOutput returns the PNG output path or the default.
func (c *AnalysisConfig) GetOutput() string {
	if c.Output == nil || *c.Output == "" {
		return DefaultOutput
	}
	return *c.Output
}

// GetDPI returns the PNG resolution or the default.
func (c *AnalysisConfig) GetDPI() int {
	if c.DPI == nil {
		return DefaultDPI
	}
	return *c.DPI
}

// GetWidthInches returns the figure width or the default.
func (c *AnalysisConfig) GetWidthInches() float64 {
	if c.WidthInches == nil {
		return DefaultWidthInches
	}
	return *c.WidthInches
}

// GetHeightInches returns the figure height or the default.
func (c *AnalysisConfig) GetHeightInches() float64 {
	if c.HeightInches == nil {
		return DefaultHeightInches
	}
	return *c.HeightInches
}

// GetMarkerRadius returns the scatter glyph radius in points or the default.
func (c *AnalysisConfig) GetMarkerRadius() float64 {
	if c.MarkerRadius == nil {
		return DefaultMarkerRadius
	}
	return *c.MarkerRadius
}

// GetHTMLOutput returns the interactive chart path, or "" when disabled.
func (c *AnalysisConfig) GetHTMLOutput() string {
	if c.HTMLOutput == nil {
		return ""
	}
	return *c.HTMLOutput
}

// GetReportOutput returns the JSON report path, or "" when disabled.
func (c *AnalysisConfig) GetReportOutput() string {
	if c.ReportOutput == nil {
		return ""
	}
	return *c.ReportOutput
}

// SetOutput overrides the PNG output path.
func (c *AnalysisConfig) SetOutput(path string) { c.Output = ptrString(path) }

// SetHTMLOutput enables the interactive chart at path.
func (c *AnalysisConfig) SetHTMLOutput(path string) { c.HTMLOutput = ptrString(path) }

// SetReportOutput enables the JSON report at path.
func (c *AnalysisConfig) SetReportOutput(path string) { c.ReportOutput = ptrString(path) }

// SetDataDir overrides the directory of the default inputs.
func (c *AnalysisConfig) SetDataDir(dir string) { c.DataDir = ptrString(dir) }
