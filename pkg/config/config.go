// Package config provides configuration loading and management for gravmag.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"gravmag/pkg/eqsources"
	"gravmag/pkg/forward"
	"gravmag/pkg/kernels"
	"gravmag/pkg/solver"
)

// Damping is the ridge parameter of the equivalent source fit. In YAML it is
// either a number or the string "cv" to select it by cross-validation.
type Damping struct {
	Value float64
	CV    bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Damping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: damping must be a number or \"cv\"", node.Line)
	}
	parsed, err := ParseDamping(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Damping) MarshalYAML() (interface{}, error) {
	if d.CV {
		return "cv", nil
	}
	return d.Value, nil
}

func (d Damping) String() string {
	if d.CV {
		return "cv"
	}
	return strconv.FormatFloat(d.Value, 'g', -1, 64)
}

// ParseDamping parses a non-negative number or "cv".
func ParseDamping(s string) (Damping, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "cv") {
		return Damping{CV: true}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return Damping{}, fmt.Errorf("damping must be a non-negative number or \"cv\", got %q", s)
	}
	return Damping{Value: v}, nil
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumJobs is the number of workers; 0 uses every CPU
		NumJobs int `yaml:"numJobs"`

		// ParallelAxis splits work over "points" or "sources"
		ParallelAxis string `yaml:"parallelAxis"`

		// Progressbar enables progress reporting on terminals
		Progressbar bool `yaml:"progressbar"`
	} `yaml:"processing"`

	// Equivalent source parameters
	EqSources struct {
		// SourceType is "points", "layer", "prisms" or "spherical"
		SourceType string `yaml:"sourceType"`

		// Damping is the ridge parameter, or "cv" to pick it by cross-validation
		Damping Damping `yaml:"damping"`

		// DepthType places point sources: default, relative, offset or constant
		DepthType string `yaml:"depthType"`

		// Depth of the sources in meters; 0 derives it from the data spacing
		Depth float64 `yaml:"depth"`

		// DepthFactor multiplies the data spacing when Depth is 0
		DepthFactor float64 `yaml:"depthFactor"`

		// MinDepth is the shallowest relative depth
		MinDepth float64 `yaml:"minDepth"`

		// BlockSize block-medians the data before placing sources; 0 disables it
		BlockSize float64 `yaml:"blockSize"`

		// Spacing of the source layer in meters; 0 uses the mean data spacing
		Spacing float64 `yaml:"spacing"`

		// CVFolds is the number of cross-validation folds
		CVFolds int `yaml:"cvFolds"`

		// CVCandidates are the damping values tried by cross-validation
		CVCandidates []float64 `yaml:"cvCandidates"`
	} `yaml:"eqsources"`

	// Tesseroid quadrature parameters
	Tesseroid struct {
		// GLQDegrees are the Gauss-Legendre orders along longitude, latitude and radius
		GLQDegrees [3]int `yaml:"glqDegrees"`

		// DistanceSizeRatio is the distance over cell size below which a cell is split
		DistanceSizeRatio struct {
			Potential float64 `yaml:"potential"`
			GZ        float64 `yaml:"g_z"`
		} `yaml:"distanceSizeRatio"`

		// MaxDepth caps the number of times a tesseroid is halved
		MaxDepth int `yaml:"maxDepth"`

		// RadialDiscretization also splits cells along the radius
		RadialDiscretization bool `yaml:"radialDiscretization"`
	} `yaml:"tesseroid"`

	// Log file parameters
	Log struct {
		// Filename of the rotated log file
		Filename string `yaml:"filename"`

		// Level is debug, info, warn or error
		Level string `yaml:"level"`

		// Verbose logs at debug level with source locations
		Verbose bool `yaml:"verbose"`

		// MaxSizeMB is the size at which the log file is rotated
		MaxSizeMB int `yaml:"maxSizeMB"`

		// MaxBackups is the number of rotated files kept
		MaxBackups int `yaml:"maxBackups"`

		// MaxAgeDays is the age after which rotated files are removed
		MaxAgeDays int `yaml:"maxAgeDays"`

		// Compress gzips rotated files
		Compress bool `yaml:"compress"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumJobs = 0
	cfg.Processing.ParallelAxis = forward.AxisPoints.String()
	cfg.Processing.Progressbar = true

	cfg.EqSources.SourceType = "points"
	cfg.EqSources.Damping = Damping{Value: solver.DefaultDamping}
	cfg.EqSources.DepthType = eqsources.DepthDefault.String()
	cfg.EqSources.DepthFactor = eqsources.DefaultDepthFactor
	cfg.EqSources.MinDepth = eqsources.DefaultMinDepth
	cfg.EqSources.CVFolds = solver.DefaultFolds
	cfg.EqSources.CVCandidates = append([]float64(nil), solver.DefaultCandidates...)

	cfg.Tesseroid.GLQDegrees = kernels.DefaultGLQDegrees
	cfg.Tesseroid.DistanceSizeRatio.Potential = kernels.DefaultDistanceSizeRatio(kernels.Potential)
	cfg.Tesseroid.DistanceSizeRatio.GZ = kernels.DefaultDistanceSizeRatio(kernels.GZ)
	cfg.Tesseroid.MaxDepth = kernels.DefaultMaxDepth
	cfg.Tesseroid.RadialDiscretization = false

	cfg.Log.Filename = "gravmag.log"
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the values that cannot be caught when parsing.
func (c *Config) Validate() error {
	if c.Processing.NumJobs < 0 {
		return fmt.Errorf("numJobs must not be negative, got %d", c.Processing.NumJobs)
	}
	if _, err := forward.ParseAxis(c.Processing.ParallelAxis); err != nil {
		return err
	}
	switch c.EqSources.SourceType {
	case "points", "layer", "prisms", "spherical":
	default:
		return fmt.Errorf("unknown source type %q", c.EqSources.SourceType)
	}
	if _, err := eqsources.ParseDepthType(c.EqSources.DepthType); err != nil {
		return err
	}
	for _, v := range c.EqSources.CVCandidates {
		if v < 0 {
			return fmt.Errorf("cross-validation candidate %g is negative", v)
		}
	}
	for _, d := range c.Tesseroid.GLQDegrees {
		if d < 1 {
			return fmt.Errorf("GLQ degrees must be positive, got %v", c.Tesseroid.GLQDegrees)
		}
	}
	if c.Tesseroid.MaxDepth < 0 {
		return fmt.Errorf("tesseroid maxDepth must not be negative, got %d", c.Tesseroid.MaxDepth)
	}
	return nil
}

// ForwardOptions builds the engine options. progress may be nil. Tesseroid
// settings depend on the field and come from TesseroidOptions.
func (c *Config) ForwardOptions(logger *slog.Logger, progress forward.ProgressFunc) forward.Options {
	axis, _ := forward.ParseAxis(c.Processing.ParallelAxis)
	opts := forward.Options{
		Workers: c.Processing.NumJobs,
		Axis:    axis,
		Logger:  logger,
	}
	if c.Processing.Progressbar {
		opts.Progress = progress
	}
	return opts
}

// TesseroidOptions returns the quadrature settings for field, picking the
// distance-size ratio configured for it.
func (c *Config) TesseroidOptions(field kernels.Field) kernels.TesseroidOptions {
	opts := kernels.TesseroidOptions{
		GLQDegrees:           c.Tesseroid.GLQDegrees,
		MaxDepth:             c.Tesseroid.MaxDepth,
		RadialDiscretization: c.Tesseroid.RadialDiscretization,
	}
	switch field {
	case kernels.Potential:
		opts.DistanceSizeRatio = c.Tesseroid.DistanceSizeRatio.Potential
	case kernels.GZ:
		opts.DistanceSizeRatio = c.Tesseroid.DistanceSizeRatio.GZ
	}
	return opts
}

// Fitting builds the solver settings shared by every equivalent source model.
func (c *Config) Fitting(engine forward.Options) eqsources.Fitting {
	return eqsources.Fitting{
		Damping:       c.EqSources.Damping.Value,
		CrossValidate: c.EqSources.Damping.CV,
		Candidates:    c.EqSources.CVCandidates,
		Folds:         c.EqSources.CVFolds,
		Engine:        engine,
	}
}

// NewModel builds the Cartesian equivalent source model selected by
// sourceType. The spherical model has its own coordinates and is built with
// NewSpherical; sourceType "spherical" is an error here.
func (c *Config) NewModel(engine forward.Options) (eqsources.Model, error) {
	es := c.EqSources
	fitting := c.Fitting(engine)
	switch es.SourceType {
	case "points":
		depthType, err := eqsources.ParseDepthType(es.DepthType)
		if err != nil {
			return nil, err
		}
		return &eqsources.Points{
			DepthType:   depthType,
			Depth:       es.Depth,
			DepthFactor: es.DepthFactor,
			MinDepth:    es.MinDepth,
			BlockSize:   es.BlockSize,
			Fitting:     fitting,
		}, nil
	case "layer":
		return &eqsources.Layer{
			Spacing:     es.Spacing,
			Depth:       es.Depth,
			DepthFactor: es.DepthFactor,
			Fitting:     fitting,
		}, nil
	case "prisms":
		return &eqsources.Prisms{
			Field:       kernels.GZ,
			BlockSize:   es.BlockSize,
			Depth:       es.Depth,
			DepthFactor: es.DepthFactor,
			Fitting:     fitting,
		}, nil
	}
	return nil, fmt.Errorf("source type %q is not a Cartesian model", es.SourceType)
}

// NewSpherical builds the spherical equivalent source model.
func (c *Config) NewSpherical(engine forward.Options) *eqsources.Spherical {
	return &eqsources.Spherical{
		Depth:       c.EqSources.Depth,
		DepthFactor: c.EqSources.DepthFactor,
		Fitting:     c.Fitting(engine),
	}
}
