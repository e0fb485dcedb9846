package feature

import "fmt"

// Type classifies a feature block. The filtering layer keys derivative
// (velocity) state decisions off the type.
type Type string

const (
	Position    Type = "position"
	Orientation Type = "orientation"
	Scale       Type = "scale"
	Intensity   Type = "intensity"
	Shape       Type = "shape"
	Custom      Type = "custom"
)

// Descriptor records where a named feature block lives inside the flat
// backing vector.
type Descriptor struct {
	Name           string
	Type           Type
	Start          int  // offset of the block's first scalar
	Size           int  // number of scalars in the block
	HasDerivatives bool // block is differentiable over time
}

// Vector is an ordered collection of named feature blocks backed by a
// single flat float64 slice. Block offsets are contiguous and
// cumulative in registration order. The zero value is an empty vector
// ready for use.
type Vector struct {
	values      []float64
	descriptors []Descriptor
	index       map[string]int // feature name → descriptor slot
}

// New returns an empty feature vector.
func New() *Vector {
	return &Vector{index: make(map[string]int)}
}

// AddFeature appends a named block and returns its slot index.
func (v *Vector) AddFeature(name string, typ Type, values []float64, hasDerivatives bool) (int, error) {
	if _, ok := v.index[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateFeature, name)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrEmptyFeature, name)
	}
	v.appendBlock(Descriptor{
		Name:           name,
		Type:           typ,
		Size:           len(values),
		HasDerivatives: hasDerivatives,
	}, values)
	return len(v.descriptors) - 1, nil
}

// appendBlock assumes the name is unique and the values non-empty.
func (v *Vector) appendBlock(d Descriptor, values []float64) {
	if v.index == nil {
		v.index = make(map[string]int)
	}
	d.Start = len(v.values)
	v.index[d.Name] = len(v.descriptors)
	v.descriptors = append(v.descriptors, d)
	v.values = append(v.values, values...)
}

// GetFeature returns a copy of the named feature's values.
func (v *Vector) GetFeature(name string) ([]float64, error) {
	slot, ok := v.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFeatureNotFound, name)
	}
	return v.copyBlock(v.descriptors[slot]), nil
}

// GetFeatureAt returns a copy of the values at slot index.
func (v *Vector) GetFeatureAt(index int) ([]float64, error) {
	if index < 0 || index >= len(v.descriptors) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(v.descriptors))
	}
	return v.copyBlock(v.descriptors[index]), nil
}

// SetFeature overwrites the named feature's values. The replacement
// must match the registered size.
func (v *Vector) SetFeature(name string, values []float64) error {
	slot, ok := v.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFeatureNotFound, name)
	}
	return v.setBlock(v.descriptors[slot], values)
}

// SetFeatureAt overwrites the values at slot index.
func (v *Vector) SetFeatureAt(index int, values []float64) error {
	if index < 0 || index >= len(v.descriptors) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(v.descriptors))
	}
	return v.setBlock(v.descriptors[index], values)
}

// HasFeature reports whether the named feature exists.
func (v *Vector) HasFeature(name string) bool {
	_, ok := v.index[name]
	return ok
}

// GetDescriptor returns the descriptor for the named feature.
func (v *Vector) GetDescriptor(name string) (Descriptor, bool) {
	slot, ok := v.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return v.descriptors[slot], true
}

// GetDescriptorAt returns the descriptor at slot index.
func (v *Vector) GetDescriptorAt(index int) (Descriptor, error) {
	if index < 0 || index >= len(v.descriptors) {
		return Descriptor{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(v.descriptors))
	}
	return v.descriptors[index], nil
}

// GetDescriptors returns all descriptors in registration order.
func (v *Vector) GetDescriptors() []Descriptor {
	out := make([]Descriptor, len(v.descriptors))
	copy(out, v.descriptors)
	return out
}

// FeatureCount returns the number of registered features.
func (v *Vector) FeatureCount() int {
	return len(v.descriptors)
}

// Dimension returns the total scalar dimension across all features.
func (v *Vector) Dimension() int {
	return len(v.values)
}

// GetValues returns a copy of the flat backing vector. Blocks appear
// at their descriptor Start offsets.
func (v *Vector) GetValues() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Subset returns a new vector holding the named features in the listed
// order. Absent and repeated names are skipped.
func (v *Vector) Subset(names []string) *Vector {
	out := New()
	for _, name := range names {
		slot, ok := v.index[name]
		if !ok || out.HasFeature(name) {
			continue
		}
		d := v.descriptors[slot]
		out.appendBlock(d, v.values[d.Start:d.Start+d.Size])
	}
	return out
}

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	out := &Vector{
		values:      make([]float64, len(v.values)),
		descriptors: make([]Descriptor, len(v.descriptors)),
		index:       make(map[string]int, len(v.index)),
	}
	copy(out.values, v.values)
	copy(out.descriptors, v.descriptors)
	for name, slot := range v.index {
		out.index[name] = slot
	}
	return out
}

// Clear removes all features. Capacity is retained.
func (v *Vector) Clear() {
	v.values = v.values[:0]
	v.descriptors = v.descriptors[:0]
	clear(v.index)
}

func (v *Vector) copyBlock(d Descriptor) []float64 {
	out := make([]float64, d.Size)
	copy(out, v.values[d.Start:d.Start+d.Size])
	return out
}

func (v *Vector) setBlock(d Descriptor, values []float64) error {
	if len(values) != d.Size {
		return fmt.Errorf("%w: feature %q holds %d values, got %d", ErrSizeMismatch, d.Name, d.Size, len(values))
	}
	copy(v.values[d.Start:d.Start+d.Size], values)
	return nil
}
