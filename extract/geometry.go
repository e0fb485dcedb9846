package extract

import "github.com/banshee-data/trackcore/feature"

// Point is a 2D sample.
type Point struct {
	X float64
	Y float64
}

// Line is an ordered polyline of 2D points.
type Line []Point

// PointExtractor emits a single "position" feature from a point.
type PointExtractor struct{}

var _ Extractor[Point] = (*PointExtractor)(nil)

// NewPointExtractor returns a point extractor.
func NewPointExtractor() *PointExtractor {
	return &PointExtractor{}
}

// ExtractFeatures builds the position feature for one point.
func (p *PointExtractor) ExtractFeatures(pt Point) (*feature.Vector, error) {
	v := feature.New()
	if _, err := v.AddFeature("position", feature.Position, []float64{pt.X, pt.Y}, true); err != nil {
		return nil, err
	}
	return v, nil
}

// FeatureNames lists the single emitted feature.
func (p *PointExtractor) FeatureNames() []string {
	return []string{"position"}
}

// FeatureDimension returns the 2D position size.
func (p *PointExtractor) FeatureDimension() int {
	return 2
}
