package extract

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/trackcore/feature"
)

// LineConfig selects which features a LineExtractor emits and how
// they are scaled.
type LineConfig struct {
	ExtractCentroid    bool
	ExtractLength      bool
	ExtractOrientation bool
	ExtractBoundingBox bool
	ExtractEndpoints   bool
	ExtractCurvature   bool

	// PositionScale multiplies centroid, bounding box and endpoint
	// coordinates; LengthScale multiplies arc length.
	PositionScale float64
	LengthScale   float64

	// NormalizeOrientation wraps the PCA angle into (-pi, pi].
	NormalizeOrientation bool
}

// DefaultLineConfig enables the compact features a tracker usually
// matches on. Bounding box, endpoints and curvature stay opt-in.
func DefaultLineConfig() LineConfig {
	return LineConfig{
		ExtractCentroid:      true,
		ExtractLength:        true,
		ExtractOrientation:   true,
		PositionScale:        1.0,
		LengthScale:          1.0,
		NormalizeOrientation: true,
	}
}

// LineExtractor derives shape features from a polyline. A non-empty
// line always yields every enabled feature; degenerate lines report
// zeros rather than dropping features, keeping the layout stable.
type LineExtractor struct {
	cfg LineConfig
}

var _ Extractor[Line] = (*LineExtractor)(nil)

// NewLineExtractor returns an extractor with the given config.
func NewLineExtractor(cfg LineConfig) *LineExtractor {
	return &LineExtractor{cfg: cfg}
}

// GetConfig returns the current config.
func (l *LineExtractor) GetConfig() LineConfig {
	return l.cfg
}

// SetConfig replaces the config.
func (l *LineExtractor) SetConfig(cfg LineConfig) {
	l.cfg = cfg
}

// ExtractFeatures builds the enabled features for one line. An empty
// line yields an empty vector.
func (l *LineExtractor) ExtractFeatures(line Line) (*feature.Vector, error) {
	out := feature.New()
	if len(line) == 0 {
		return out, nil
	}

	if l.cfg.ExtractCentroid {
		cx, cy := lineCentroid(line)
		values := []float64{cx * l.cfg.PositionScale, cy * l.cfg.PositionScale}
		if _, err := out.AddFeature("centroid", feature.Position, values, true); err != nil {
			return nil, err
		}
	}

	if l.cfg.ExtractLength {
		length := arcLength(line) * l.cfg.LengthScale
		if _, err := out.AddFeature("length", feature.Scale, []float64{length}, false); err != nil {
			return nil, err
		}
	}

	if l.cfg.ExtractOrientation {
		if _, err := out.AddFeature("orientation", feature.Orientation, []float64{l.orientation(line)}, false); err != nil {
			return nil, err
		}
	}

	if l.cfg.ExtractBoundingBox {
		w, h := boundingBoxSize(line)
		values := []float64{w * l.cfg.PositionScale, h * l.cfg.PositionScale}
		if _, err := out.AddFeature("bounding_box", feature.Scale, values, false); err != nil {
			return nil, err
		}
	}

	if l.cfg.ExtractEndpoints {
		start, end := endpoints(line)
		values := []float64{
			start.X * l.cfg.PositionScale,
			start.Y * l.cfg.PositionScale,
			end.X * l.cfg.PositionScale,
			end.Y * l.cfg.PositionScale,
		}
		if _, err := out.AddFeature("endpoints", feature.Position, values, true); err != nil {
			return nil, err
		}
	}

	if l.cfg.ExtractCurvature {
		mean, stddev := curvatureStats(line)
		if _, err := out.AddFeature("curvature", feature.Shape, []float64{mean, stddev}, false); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// FeatureNames lists the enabled features in emission order.
func (l *LineExtractor) FeatureNames() []string {
	var names []string
	if l.cfg.ExtractCentroid {
		names = append(names, "centroid")
	}
	if l.cfg.ExtractLength {
		names = append(names, "length")
	}
	if l.cfg.ExtractOrientation {
		names = append(names, "orientation")
	}
	if l.cfg.ExtractBoundingBox {
		names = append(names, "bounding_box")
	}
	if l.cfg.ExtractEndpoints {
		names = append(names, "endpoints")
	}
	if l.cfg.ExtractCurvature {
		names = append(names, "curvature")
	}
	return names
}

// FeatureDimension sums the enabled feature sizes.
func (l *LineExtractor) FeatureDimension() int {
	total := 0
	if l.cfg.ExtractCentroid {
		total += 2
	}
	if l.cfg.ExtractLength {
		total++
	}
	if l.cfg.ExtractOrientation {
		total++
	}
	if l.cfg.ExtractBoundingBox {
		total += 2
	}
	if l.cfg.ExtractEndpoints {
		total += 4
	}
	if l.cfg.ExtractCurvature {
		total += 2
	}
	return total
}

// orientation is the angle of the line's principal direction. Lines
// with fewer than two points report zero.
func (l *LineExtractor) orientation(line Line) float64 {
	if len(line) < 2 {
		return 0
	}
	dx, dy := principalDirection(line)
	angle := math.Atan2(dy, dx)
	if l.cfg.NormalizeOrientation {
		for angle > math.Pi {
			angle -= 2 * math.Pi
		}
		for angle <= -math.Pi {
			angle += 2 * math.Pi
		}
	}
	return angle
}

func lineCentroid(line Line) (float64, float64) {
	var sumX, sumY float64
	for _, p := range line {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(line))
	return sumX / n, sumY / n
}

func arcLength(line Line) float64 {
	if len(line) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += math.Hypot(line[i].X-line[i-1].X, line[i].Y-line[i-1].Y)
	}
	return total
}

func boundingBoxSize(line Line) (float64, float64) {
	minX, maxX := line[0].X, line[0].X
	minY, maxY := line[0].Y, line[0].Y
	for _, p := range line[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return maxX - minX, maxY - minY
}

func endpoints(line Line) (Point, Point) {
	return line[0], line[len(line)-1]
}

// principalDirection is the eigenvector of the point covariance with
// the largest eigenvalue. Falls back to the x axis when the
// decomposition fails.
func principalDirection(line Line) (float64, float64) {
	cx, cy := lineCentroid(line)
	var sxx, sxy, syy float64
	for _, p := range line {
		dx := p.X - cx
		dy := p.Y - cy
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	n := float64(len(line) - 1)
	cov := mat.NewSymDense(2, []float64{sxx / n, sxy / n, sxy / n, syy / n})

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return 1, 0
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	values := eig.Values(nil)

	col := 1
	if values[0] > values[1] {
		col = 0
	}
	return vectors.At(0, col), vectors.At(1, col)
}

// curvatureStats reports the mean and standard deviation of the
// discrete curvature |v1 x v2| / |v1|^3 over consecutive point
// triples. Lines with fewer than three points report zeros.
func curvatureStats(line Line) (float64, float64) {
	if len(line) < 3 {
		return 0, 0
	}

	curvatures := make([]float64, 0, len(line)-2)
	for i := 1; i < len(line)-1; i++ {
		v1x := line[i].X - line[i-1].X
		v1y := line[i].Y - line[i-1].Y
		v2x := line[i+1].X - line[i].X
		v2y := line[i+1].Y - line[i].Y

		cross := v1x*v2y - v1y*v2x
		norm := math.Hypot(v1x, v1y)
		if norm > 1e-8 {
			curvatures = append(curvatures, math.Abs(cross)/(norm*norm*norm))
		} else {
			curvatures = append(curvatures, 0)
		}
	}

	mean := 0.0
	for _, k := range curvatures {
		mean += k
	}
	mean /= float64(len(curvatures))

	variance := 0.0
	for _, k := range curvatures {
		d := k - mean
		variance += d * d
	}
	variance /= float64(len(curvatures))

	return mean, math.Sqrt(variance)
}
