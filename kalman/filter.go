package kalman

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/trackcore/feature"
)

// StateMapping locates one template feature inside the filter's state
// and measurement vectors. When HasDerivatives is set, the velocity
// block sits immediately after the position block, at
// StateStart+Size..StateStart+2·Size.
type StateMapping struct {
	FeatureIndex     int // descriptor slot in the template
	StateStart       int
	MeasurementStart int
	Size             int
	HasDerivatives   bool
}

// StateSize returns the scalars this feature occupies in the state
// vector, velocity block included.
func (m StateMapping) StateSize() int {
	if m.HasDerivatives {
		return 2 * m.Size
	}
	return m.Size
}

// Prediction is one forward extrapolation of a filter. Covariance is
// in measurement space. The zero value is invalid.
type Prediction struct {
	Features   *feature.Vector
	Covariance *mat.Dense
	Confidence float64
	Valid      bool
}

// Filter is a Kalman filter whose state layout is derived from a
// template feature vector at initialization. Not safe for concurrent
// use; callers that share a filter across goroutines wrap it the way
// track.Session does.
type Filter struct {
	cfg Config

	template *feature.Vector
	mappings []StateMapping

	stateSize int
	measSize  int

	dynamics         *mat.Dense // A, built for cfg.DT
	measurement      *mat.Dense // C, selects position blocks
	processNoise     *mat.Dense // Q
	measurementNoise *mat.Dense // R

	state      *mat.VecDense // x
	covariance *mat.Dense    // P

	time        float64
	initialized bool
}

// NewFilter returns an uninitialized filter with the given tuning.
func NewFilter(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Initialize derives the state layout from the template, builds the
// system matrices, and seeds the state with the template's values.
// Velocity entries start at zero. A template without features is
// rejected.
func (f *Filter) Initialize(template *feature.Vector, initialTime float64) error {
	if template == nil || template.FeatureCount() == 0 {
		return ErrEmptyTemplate
	}

	f.template = template.Clone()
	f.mappings, f.stateSize, f.measSize = f.buildStateMappings(f.template)

	f.dynamics = f.dynamicsMatrix(f.cfg.DT)
	f.measurement = f.measurementMatrix()
	f.processNoise, f.measurementNoise = f.noiseMatrices()
	f.covariance = f.initialCovariance()
	f.state = f.initialState(f.template)

	f.time = initialTime
	f.initialized = true
	return nil
}

// IsInitialized reports whether Initialize has succeeded.
func (f *Filter) IsInitialized() bool {
	return f.initialized
}

// Predict extrapolates the state dt ahead without mutating the filter.
// dt <= 0 falls back to the configured DT. An uninitialized filter
// yields an invalid prediction.
func (f *Filter) Predict(dt float64) Prediction {
	if !f.initialized {
		return Prediction{}
	}
	step := dt
	if step <= 0 {
		step = f.cfg.DT
	}

	a := f.dynamics
	if step != f.cfg.DT {
		a = f.dynamicsMatrix(step)
	}

	predicted := mat.NewVecDense(f.stateSize, nil)
	predicted.MulVec(a, f.state)

	cov := mat.DenseCopyOf(f.measurementNoise)
	return Prediction{
		Features:   f.stateToFeatures(predicted),
		Covariance: cov,
		Confidence: f.confidenceFrom(cov),
		Valid:      true,
	}
}

// Update advances the filter by dt (cfg.DT when dt <= 0) and corrects
// it with the observation. Features the observation lacks measure as
// zero; callers are expected to pass complete observations. On error
// the filter state is unchanged.
func (f *Filter) Update(observed *feature.Vector, dt float64) error {
	if !f.initialized {
		return ErrFilterNotInitialized
	}
	if observed == nil {
		return errors.New("observation must not be nil")
	}

	step := dt
	if step <= 0 {
		step = f.cfg.DT
	}
	a := f.dynamics
	if step != f.cfg.DT {
		a = f.dynamicsMatrix(step)
	}

	// Predict phase.
	predState := mat.NewVecDense(f.stateSize, nil)
	predState.MulVec(a, f.state)

	predCov := mat.NewDense(f.stateSize, f.stateSize, nil)
	predCov.Product(a, f.covariance, a.T())
	predCov.Add(predCov, f.processNoise)

	// Correct phase.
	z := f.measurementFromFeatures(observed)

	residual := mat.NewVecDense(f.measSize, nil)
	residual.MulVec(f.measurement, predState)
	residual.SubVec(z, residual)

	innovCov := mat.NewDense(f.measSize, f.measSize, nil)
	innovCov.Product(f.measurement, predCov, f.measurement.T())
	innovCov.Add(innovCov, f.measurementNoise)

	var innovInv mat.Dense
	if err := innovInv.Inverse(innovCov); err != nil {
		return fmt.Errorf("innovation covariance not invertible: %w", err)
	}

	gain := mat.NewDense(f.stateSize, f.measSize, nil)
	gain.Product(predCov, f.measurement.T(), &innovInv)

	correction := mat.NewVecDense(f.stateSize, nil)
	correction.MulVec(gain, residual)
	predState.AddVec(predState, correction)

	kc := mat.NewDense(f.stateSize, f.stateSize, nil)
	kc.Mul(gain, f.measurement)
	ikc := eye(f.stateSize)
	ikc.Sub(ikc, kc)

	newCov := mat.NewDense(f.stateSize, f.stateSize, nil)
	newCov.Mul(ikc, predCov)

	f.state = predState
	f.covariance = newCov
	f.time += step
	return nil
}

// GetCurrentFeatures returns the current estimate shaped like the
// template. Uninitialized filters return an empty vector.
func (f *Filter) GetCurrentFeatures() *feature.Vector {
	if !f.initialized {
		return feature.New()
	}
	return f.stateToFeatures(f.state)
}

// GetCurrentState returns a copy of the full state vector, velocity
// entries included, or nil when uninitialized.
func (f *Filter) GetCurrentState() *mat.VecDense {
	if !f.initialized {
		return nil
	}
	out := mat.NewVecDense(f.stateSize, nil)
	out.CopyVec(f.state)
	return out
}

// GetCurrentCovariance returns a copy of the state covariance, or nil
// when uninitialized.
func (f *Filter) GetCurrentCovariance() *mat.Dense {
	if !f.initialized {
		return nil
	}
	return mat.DenseCopyOf(f.covariance)
}

// GetCurrentTime returns the filter's time, advanced by each update.
func (f *Filter) GetCurrentTime() float64 {
	return f.time
}

// Confidence scores the current estimate in [0, 1].
func (f *Filter) Confidence() float64 {
	if !f.initialized {
		return 0
	}
	return f.confidenceFrom(f.measurementNoise)
}

// GetStateMappings returns the derived state layout, one entry per
// template feature. Empty when uninitialized.
func (f *Filter) GetStateMappings() []StateMapping {
	out := make([]StateMapping, len(f.mappings))
	copy(out, f.mappings)
	return out
}

// GetStateSize returns the state dimension, velocity blocks included.
func (f *Filter) GetStateSize() int { return f.stateSize }

// GetMeasurementSize returns the measured dimension.
func (f *Filter) GetMeasurementSize() int { return f.measSize }

// Reset returns the filter to the uninitialized state. The config is
// retained.
func (f *Filter) Reset() {
	f.template = nil
	f.mappings = nil
	f.stateSize = 0
	f.measSize = 0
	f.dynamics = nil
	f.measurement = nil
	f.processNoise = nil
	f.measurementNoise = nil
	f.state = nil
	f.covariance = nil
	f.time = 0
	f.initialized = false
}

// GetConfig returns the filter's tuning.
func (f *Filter) GetConfig() Config {
	return f.cfg
}

// SetConfig replaces the tuning. An initialized filter is reset, since
// the state layout may no longer match.
func (f *Filter) SetConfig(cfg Config) {
	f.cfg = cfg
	if f.initialized {
		f.Reset()
	}
}

func (f *Filter) buildStateMappings(template *feature.Vector) ([]StateMapping, int, int) {
	descs := template.GetDescriptors()
	mappings := make([]StateMapping, 0, len(descs))
	stateOffset, measOffset := 0, 0
	for i, d := range descs {
		m := StateMapping{
			FeatureIndex:     i,
			StateStart:       stateOffset,
			MeasurementStart: measOffset,
			Size:             d.Size,
			HasDerivatives:   d.HasDerivatives && f.cfg.derivativesEnabled(d.Type),
		}
		mappings = append(mappings, m)
		stateOffset += m.StateSize()
		measOffset += d.Size
	}
	return mappings, stateOffset, measOffset
}

// dynamicsMatrix builds A for one time step: identity plus dt coupling
// each position entry to its velocity entry.
func (f *Filter) dynamicsMatrix(dt float64) *mat.Dense {
	a := eye(f.stateSize)
	for _, m := range f.mappings {
		if !m.HasDerivatives {
			continue
		}
		for k := 0; k < m.Size; k++ {
			a.Set(m.StateStart+k, m.StateStart+m.Size+k, dt)
		}
	}
	return a
}

// measurementMatrix builds C: measurements observe position blocks
// only, never velocities.
func (f *Filter) measurementMatrix() *mat.Dense {
	c := mat.NewDense(f.measSize, f.stateSize, nil)
	for _, m := range f.mappings {
		for k := 0; k < m.Size; k++ {
			c.Set(m.MeasurementStart+k, m.StateStart+k, 1)
		}
	}
	return c
}

func (f *Filter) noiseMatrices() (q, r *mat.Dense) {
	q = mat.NewDense(f.stateSize, f.stateSize, nil)
	r = mat.NewDense(f.measSize, f.measSize, nil)
	for _, m := range f.mappings {
		d, _ := f.template.GetDescriptorAt(m.FeatureIndex)
		pn := f.cfg.processNoiseFor(d.Name)
		mn := f.cfg.measurementNoiseFor(d.Name)
		for k := 0; k < m.Size; k++ {
			q.Set(m.StateStart+k, m.StateStart+k, pn*pn)
			r.Set(m.MeasurementStart+k, m.MeasurementStart+k, mn*mn)
		}
		if m.HasDerivatives {
			vn := pn * velocityNoiseScale
			for k := 0; k < m.Size; k++ {
				q.Set(m.StateStart+m.Size+k, m.StateStart+m.Size+k, vn*vn)
			}
		}
	}
	return q, r
}

func (f *Filter) initialCovariance() *mat.Dense {
	p := mat.NewDense(f.stateSize, f.stateSize, nil)
	for _, m := range f.mappings {
		d, _ := f.template.GetDescriptorAt(m.FeatureIndex)
		iu := f.cfg.initialUncertaintyFor(d.Name)
		for k := 0; k < m.Size; k++ {
			p.Set(m.StateStart+k, m.StateStart+k, iu*iu)
		}
		if m.HasDerivatives {
			vu := iu * velocityUncertaintyScale
			for k := 0; k < m.Size; k++ {
				p.Set(m.StateStart+m.Size+k, m.StateStart+m.Size+k, vu*vu)
			}
		}
	}
	return p
}

func (f *Filter) initialState(template *feature.Vector) *mat.VecDense {
	x := mat.NewVecDense(f.stateSize, nil)
	for _, m := range f.mappings {
		vals, err := template.GetFeatureAt(m.FeatureIndex)
		if err != nil {
			continue
		}
		for k, v := range vals {
			x.SetVec(m.StateStart+k, v)
		}
	}
	return x
}

// measurementFromFeatures maps an observation onto the measurement
// vector by template feature name. Absent or mis-sized features
// measure as zero.
func (f *Filter) measurementFromFeatures(observed *feature.Vector) *mat.VecDense {
	z := mat.NewVecDense(f.measSize, nil)
	for _, m := range f.mappings {
		d, _ := f.template.GetDescriptorAt(m.FeatureIndex)
		vals, err := observed.GetFeature(d.Name)
		if err != nil || len(vals) != m.Size {
			continue
		}
		for k, v := range vals {
			z.SetVec(m.MeasurementStart+k, v)
		}
	}
	return z
}

// stateToFeatures maps position blocks of a state vector back onto a
// template-shaped feature vector.
func (f *Filter) stateToFeatures(state *mat.VecDense) *feature.Vector {
	out := f.template.Clone()
	for _, m := range f.mappings {
		vals := make([]float64, m.Size)
		for k := range vals {
			vals[k] = state.AtVec(m.StateStart + k)
		}
		_ = out.SetFeatureAt(m.FeatureIndex, vals)
	}
	return out
}

func (f *Filter) confidenceFrom(cov *mat.Dense) float64 {
	maxUncertainty := f.cfg.DefaultInitialUncertainty * float64(f.measSize)
	if maxUncertainty <= 0 {
		return 0
	}
	conf := math.Exp(-mat.Trace(cov) / maxUncertainty)
	return math.Min(math.Max(conf, 0), 1)
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
