package kalman

import (
	"github.com/banshee-data/trackcore/feature"
	"github.com/banshee-data/trackcore/internal/config"
)

// Derivative blocks carry scaled-down noise relative to their parent
// position blocks. Standard deviations; squared when written into the
// matrices.
const (
	velocityNoiseScale       = 0.1
	velocityUncertaintyScale = 0.5
)

// Config holds the tuning parameters for a multi-feature filter.
// Per-feature maps override the defaults by feature name; all values
// are standard deviations, not variances.
type Config struct {
	DT                        float64 // time step assumed when a caller passes dt <= 0
	DefaultProcessNoise       float64
	DefaultMeasurementNoise   float64
	DefaultInitialUncertainty float64

	FeatureProcessNoise       map[string]float64
	FeatureMeasurementNoise   map[string]float64
	FeatureInitialUncertainty map[string]float64

	// IncludeDerivatives gates velocity state per feature type. A
	// feature grows a velocity block only when its descriptor has
	// derivatives AND its type is enabled here. Absent types default
	// to off, except Position.
	IncludeDerivatives map[feature.Type]bool
}

// DefaultConfig returns the stock tuning: unit noise, generous initial
// uncertainty, velocity state for position features only.
func DefaultConfig() Config {
	return Config{
		DT:                        1.0,
		DefaultProcessNoise:       1.0,
		DefaultMeasurementNoise:   1.0,
		DefaultInitialUncertainty: 10.0,
		IncludeDerivatives: map[feature.Type]bool{
			feature.Position:    true,
			feature.Orientation: false,
			feature.Scale:       false,
		},
	}
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	c := Config{
		DT:                        cfg.GetDT(),
		DefaultProcessNoise:       cfg.GetDefaultProcessNoise(),
		DefaultMeasurementNoise:   cfg.GetDefaultMeasurementNoise(),
		DefaultInitialUncertainty: cfg.GetDefaultInitialUncertainty(),
	}
	if len(cfg.FeatureProcessNoise) > 0 {
		c.FeatureProcessNoise = make(map[string]float64, len(cfg.FeatureProcessNoise))
		for name, v := range cfg.FeatureProcessNoise {
			c.FeatureProcessNoise[name] = v
		}
	}
	if len(cfg.FeatureMeasurementNoise) > 0 {
		c.FeatureMeasurementNoise = make(map[string]float64, len(cfg.FeatureMeasurementNoise))
		for name, v := range cfg.FeatureMeasurementNoise {
			c.FeatureMeasurementNoise[name] = v
		}
	}
	if len(cfg.FeatureInitialUncertainty) > 0 {
		c.FeatureInitialUncertainty = make(map[string]float64, len(cfg.FeatureInitialUncertainty))
		for name, v := range cfg.FeatureInitialUncertainty {
			c.FeatureInitialUncertainty[name] = v
		}
	}
	if len(cfg.IncludeDerivatives) > 0 {
		c.IncludeDerivatives = make(map[feature.Type]bool, len(cfg.IncludeDerivatives))
		for name, enabled := range cfg.IncludeDerivatives {
			c.IncludeDerivatives[feature.Type(name)] = enabled
		}
	}
	return c
}

func (c Config) processNoiseFor(name string) float64 {
	if v, ok := c.FeatureProcessNoise[name]; ok {
		return v
	}
	return c.DefaultProcessNoise
}

func (c Config) measurementNoiseFor(name string) float64 {
	if v, ok := c.FeatureMeasurementNoise[name]; ok {
		return v
	}
	return c.DefaultMeasurementNoise
}

func (c Config) initialUncertaintyFor(name string) float64 {
	if v, ok := c.FeatureInitialUncertainty[name]; ok {
		return v
	}
	return c.DefaultInitialUncertainty
}

func (c Config) derivativesEnabled(t feature.Type) bool {
	if v, ok := c.IncludeDerivatives[t]; ok {
		return v
	}
	return t == feature.Position
}
