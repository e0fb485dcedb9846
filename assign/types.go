package assign

import (
	"math"

	"github.com/banshee-data/trackcore/feature"
)

// Unassigned marks an object row that received no target.
const Unassigned = -1

// Result reports one solved assignment problem. Assignments[i] holds
// the target index chosen for object i, or Unassigned. Costs[i] is the
// realized cost for that pairing (+Inf for unassigned rows) and
// TotalCost sums the realized costs. Success is false when there was
// nothing to solve, or when AllowUnassigned was off and a row still
// ended up without a target.
type Result struct {
	Assignments []int
	Costs       []float64
	TotalCost   float64
	Success     bool
}

// AssignedCount returns the number of rows that received a target.
func (r Result) AssignedCount() int {
	n := 0
	for _, j := range r.Assignments {
		if j != Unassigned {
			n++
		}
	}
	return n
}

// Constraints bound which pairings a solver may produce.
type Constraints struct {
	MaxCost          float64  // pairings above this cost are infeasible; non-positive means no ceiling
	AllowUnassigned  bool     // false demands a target for every object
	OneToOne         bool     // false lets several objects share a target
	RequiredFeatures []string // features both sides must carry for a pairing to be feasible
	OptionalFeatures []string // features scored only when both sides carry them
}

// DefaultConstraints allows unassigned objects, demands one-to-one
// pairings, and places no cost ceiling.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxCost:         math.Inf(1),
		AllowUnassigned: true,
		OneToOne:        true,
	}
}

// Algorithm is a pluggable assignment strategy. Sessions swap
// implementations at runtime; see track.Session.SetAssignmentAlgorithm.
type Algorithm interface {
	// Name identifies the strategy in logs.
	Name() string
	// Solve pairs objects with targets under the constraints.
	Solve(objects, targets []*feature.Vector, c Constraints) Result
}
