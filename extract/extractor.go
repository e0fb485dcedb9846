package extract

import (
	"fmt"

	"github.com/banshee-data/trackcore/feature"
)

// Extractor converts one sample of a host data type into a feature
// vector. T is the concrete data type the extractor understands.
type Extractor[T any] interface {
	// ExtractFeatures builds the features for one sample.
	ExtractFeatures(data T) (*feature.Vector, error)
	// FeatureNames lists the feature names this extractor emits, in
	// emission order.
	FeatureNames() []string
	// FeatureDimension is the total measured dimension across all
	// emitted features.
	FeatureDimension() int
}

// Composite chains extractors over one data type and concatenates
// their outputs into a single vector, in the order they were added.
type Composite[T any] struct {
	extractors []Extractor[T]
}

var _ Extractor[Line] = (*Composite[Line])(nil)

// NewComposite returns a composite over the given extractors.
func NewComposite[T any](extractors ...Extractor[T]) *Composite[T] {
	c := &Composite[T]{}
	for _, e := range extractors {
		c.Add(e)
	}
	return c
}

// Add appends an extractor to the chain. Nil is ignored.
func (c *Composite[T]) Add(e Extractor[T]) {
	if e == nil {
		return
	}
	c.extractors = append(c.extractors, e)
}

// ExtractorCount returns the number of chained extractors.
func (c *Composite[T]) ExtractorCount() int {
	return len(c.extractors)
}

// ExtractFeatures runs every extractor and concatenates the results.
// Two extractors emitting the same feature name is an error.
func (c *Composite[T]) ExtractFeatures(data T) (*feature.Vector, error) {
	out := feature.New()
	for _, e := range c.extractors {
		part, err := e.ExtractFeatures(data)
		if err != nil {
			return nil, fmt.Errorf("composite extract: %w", err)
		}
		if part == nil {
			continue
		}
		for _, d := range part.GetDescriptors() {
			values, err := part.GetFeature(d.Name)
			if err != nil {
				return nil, fmt.Errorf("composite extract %q: %w", d.Name, err)
			}
			if _, err := out.AddFeature(d.Name, d.Type, values, d.HasDerivatives); err != nil {
				return nil, fmt.Errorf("composite extract %q: %w", d.Name, err)
			}
		}
	}
	return out, nil
}

// FeatureNames concatenates the names of every chained extractor.
func (c *Composite[T]) FeatureNames() []string {
	var names []string
	for _, e := range c.extractors {
		names = append(names, e.FeatureNames()...)
	}
	return names
}

// FeatureDimension sums the dimensions of every chained extractor.
func (c *Composite[T]) FeatureDimension() int {
	total := 0
	for _, e := range c.extractors {
		total += e.FeatureDimension()
	}
	return total
}
