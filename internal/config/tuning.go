package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning
// parameters. All fields are pointers so a partial JSON file can
// override some values and leave the rest on their defaults.
type TuningConfig struct {
	// Filter params
	DT                        *float64           `json:"dt,omitempty"`
	DefaultProcessNoise       *float64           `json:"default_process_noise,omitempty"`
	DefaultMeasurementNoise   *float64           `json:"default_measurement_noise,omitempty"`
	DefaultInitialUncertainty *float64           `json:"default_initial_uncertainty,omitempty"`
	FeatureProcessNoise       map[string]float64 `json:"feature_process_noise,omitempty"`
	FeatureMeasurementNoise   map[string]float64 `json:"feature_measurement_noise,omitempty"`
	FeatureInitialUncertainty map[string]float64 `json:"feature_initial_uncertainty,omitempty"`
	IncludeDerivatives        map[string]bool    `json:"include_derivatives,omitempty"` // keyed by feature type

	// Assignment params
	MaxAssignmentCost *float64 `json:"max_assignment_cost,omitempty"`
	AllowUnassigned   *bool    `json:"allow_unassigned,omitempty"`
	OneToOne          *bool    `json:"one_to_one,omitempty"`
	RequiredFeatures  []string `json:"required_features,omitempty"`
	OptionalFeatures  []string `json:"optional_features,omitempty"`

	// Session params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	MaxPredictionTime   *float64 `json:"max_prediction_time,omitempty"`
	CreateNewGroups     *bool    `json:"create_new_groups,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,    // from feature/, assign/, kalman/, track/
		"../../" + DefaultConfigPath, // from internal/config/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DT != nil && *c.DT <= 0 {
		return fmt.Errorf("dt must be positive, got %f", *c.DT)
	}
	if c.DefaultProcessNoise != nil && *c.DefaultProcessNoise < 0 {
		return fmt.Errorf("default_process_noise must be non-negative, got %f", *c.DefaultProcessNoise)
	}
	if c.DefaultMeasurementNoise != nil && *c.DefaultMeasurementNoise <= 0 {
		return fmt.Errorf("default_measurement_noise must be positive, got %f", *c.DefaultMeasurementNoise)
	}
	if c.DefaultInitialUncertainty != nil && *c.DefaultInitialUncertainty <= 0 {
		return fmt.Errorf("default_initial_uncertainty must be positive, got %f", *c.DefaultInitialUncertainty)
	}
	for name, v := range c.FeatureProcessNoise {
		if v < 0 {
			return fmt.Errorf("feature_process_noise[%s] must be non-negative, got %f", name, v)
		}
	}
	for name, v := range c.FeatureMeasurementNoise {
		if v <= 0 {
			return fmt.Errorf("feature_measurement_noise[%s] must be positive, got %f", name, v)
		}
	}
	for name, v := range c.FeatureInitialUncertainty {
		if v <= 0 {
			return fmt.Errorf("feature_initial_uncertainty[%s] must be positive, got %f", name, v)
		}
	}
	if c.MaxAssignmentCost != nil && *c.MaxAssignmentCost <= 0 {
		return fmt.Errorf("max_assignment_cost must be positive, got %f", *c.MaxAssignmentCost)
	}
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}
	if c.MaxPredictionTime != nil && *c.MaxPredictionTime < 0 {
		return fmt.Errorf("max_prediction_time must be non-negative, got %f", *c.MaxPredictionTime)
	}
	return nil
}

// GetDT returns the dt value or the default.
func (c *TuningConfig) GetDT() float64 {
	if c.DT == nil {
		return 1.0
	}
	return *c.DT
}

// GetDefaultProcessNoise returns the default_process_noise value or the default.
func (c *TuningConfig) GetDefaultProcessNoise() float64 {
	if c.DefaultProcessNoise == nil {
		return 1.0
	}
	return *c.DefaultProcessNoise
}

// GetDefaultMeasurementNoise returns the default_measurement_noise value or the default.
func (c *TuningConfig) GetDefaultMeasurementNoise() float64 {
	if c.DefaultMeasurementNoise == nil {
		return 1.0
	}
	return *c.DefaultMeasurementNoise
}

// GetDefaultInitialUncertainty returns the default_initial_uncertainty value or the default.
func (c *TuningConfig) GetDefaultInitialUncertainty() float64 {
	if c.DefaultInitialUncertainty == nil {
		return 10.0
	}
	return *c.DefaultInitialUncertainty
}

// GetMaxAssignmentCost returns the max_assignment_cost value or the
// default. The default places no ceiling on pairing costs.
func (c *TuningConfig) GetMaxAssignmentCost() float64 {
	if c.MaxAssignmentCost == nil {
		return math.Inf(1)
	}
	return *c.MaxAssignmentCost
}

// GetAllowUnassigned returns the allow_unassigned value or the default.
func (c *TuningConfig) GetAllowUnassigned() bool {
	if c.AllowUnassigned == nil {
		return true
	}
	return *c.AllowUnassigned
}

// GetOneToOne returns the one_to_one value or the default.
func (c *TuningConfig) GetOneToOne() bool {
	if c.OneToOne == nil {
		return true
	}
	return *c.OneToOne
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.1
	}
	return *c.ConfidenceThreshold
}

// GetMaxPredictionTime returns the max_prediction_time value or the default.
func (c *TuningConfig) GetMaxPredictionTime() float64 {
	if c.MaxPredictionTime == nil {
		return 10.0
	}
	return *c.MaxPredictionTime
}

// GetCreateNewGroups returns the create_new_groups value or the default.
func (c *TuningConfig) GetCreateNewGroups() bool {
	if c.CreateNewGroups == nil {
		return true
	}
	return *c.CreateNewGroups
}
