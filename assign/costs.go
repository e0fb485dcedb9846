package assign

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/trackcore/feature"
)

// PositionFeature is the feature name the distance functions score by
// default.
const PositionFeature = "position"

// CostFunc scores a candidate (object, target) pairing. Lower is
// better; +Inf marks the pair infeasible.
type CostFunc func(object, target *feature.Vector) float64

// EuclideanDistance is the default cost: the L2 norm between the
// "position" features. Pairs where either side lacks the feature or
// the dimensions differ are infeasible.
func EuclideanDistance(object, target *feature.Vector) float64 {
	a, err := object.GetFeature(PositionFeature)
	if err != nil {
		return math.Inf(1)
	}
	b, err := target.GetFeature(PositionFeature)
	if err != nil {
		return math.Inf(1)
	}
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// MahalanobisDistance builds a cost function scoring "position"
// differences against the supplied covariance, typically the
// covariance of a filter prediction. The inverse is computed once
// here; a singular covariance is rejected up front rather than
// mid-solve.
func MahalanobisDistance(cov mat.Matrix) (CostFunc, error) {
	if cov == nil {
		return nil, errors.New("covariance must not be nil")
	}
	n, c := cov.Dims()
	if n != c {
		return nil, fmt.Errorf("covariance must be square, got %dx%d", n, c)
	}
	var inv mat.Dense
	if err := inv.Inverse(cov); err != nil {
		return nil, fmt.Errorf("invert covariance: %w", err)
	}

	return func(object, target *feature.Vector) float64 {
		a, err := object.GetFeature(PositionFeature)
		if err != nil {
			return math.Inf(1)
		}
		b, err := target.GetFeature(PositionFeature)
		if err != nil {
			return math.Inf(1)
		}
		if len(a) != n || len(b) != n {
			return math.Inf(1)
		}
		diff := mat.NewVecDense(n, nil)
		for i := range a {
			diff.SetVec(i, a[i]-b[i])
		}
		var tmp mat.VecDense
		tmp.MulVec(&inv, diff)
		d2 := mat.Dot(diff, &tmp)
		if d2 < 0 {
			d2 = 0
		}
		return math.Sqrt(d2)
	}, nil
}

// FeatureWeightedDistance combines per-feature L2 distances under the
// given weights as sqrt(Σ w·‖d‖² / Σ w). Features absent on either
// side, with mismatched dimensions, or with non-positive weight are
// skipped; a pair with no usable feature left is infeasible.
func FeatureWeightedDistance(weights map[string]float64) CostFunc {
	return func(object, target *feature.Vector) float64 {
		var weighted, total float64
		for name, w := range weights {
			if w <= 0 {
				continue
			}
			a, err := object.GetFeature(name)
			if err != nil {
				continue
			}
			b, err := target.GetFeature(name)
			if err != nil {
				continue
			}
			if len(a) != len(b) {
				continue
			}
			var sum float64
			for i := range a {
				d := a[i] - b[i]
				sum += d * d
			}
			weighted += w * sum
			total += w
		}
		if total <= 0 {
			return math.Inf(1)
		}
		return math.Sqrt(weighted / total)
	}
}
