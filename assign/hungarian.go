package assign

import (
	"math"

	"github.com/banshee-data/trackcore/feature"
)

// infeasibleCost stands in for infinity inside the solver so the
// augmenting-path search still terminates. Cells at or above it are
// never realized as assignments.
const infeasibleCost = 1e18

// Hungarian solves the rectangular assignment problem with the
// Kuhn-Munkres algorithm (Jonker-Volgenant variant) in O(n³). It is
// the session default; the greedy fallback for OneToOne=false lives
// here too.
type Hungarian struct {
	cost CostFunc
}

var _ Algorithm = (*Hungarian)(nil)

// NewHungarian returns a solver scoring pairs with EuclideanDistance.
func NewHungarian() *Hungarian {
	return &Hungarian{cost: EuclideanDistance}
}

// NewHungarianWithCost returns a solver scoring pairs with fn. A nil
// fn falls back to EuclideanDistance.
func NewHungarianWithCost(fn CostFunc) *Hungarian {
	if fn == nil {
		fn = EuclideanDistance
	}
	return &Hungarian{cost: fn}
}

// Name implements Algorithm.
func (h *Hungarian) Name() string { return "hungarian" }

// Solve scores every (object, target) pair with the solver's cost
// function and delegates to SolveMatrix. Pairs missing a required
// feature are infeasible; when required or optional features are
// constrained, the cost function sees only the matching subsets.
func (h *Hungarian) Solve(objects, targets []*feature.Vector, c Constraints) Result {
	if len(objects) == 0 || len(targets) == 0 {
		return Result{}
	}
	useSubset := len(c.RequiredFeatures) > 0 || len(c.OptionalFeatures) > 0
	cost := make([][]float64, len(objects))
	for i, obj := range objects {
		cost[i] = make([]float64, len(targets))
		for j, tgt := range targets {
			cost[i][j] = h.pairCost(obj, tgt, c, useSubset)
		}
	}
	return h.SolveMatrix(cost, c)
}

func (h *Hungarian) pairCost(obj, tgt *feature.Vector, c Constraints, useSubset bool) float64 {
	if obj == nil || tgt == nil {
		return math.Inf(1)
	}
	for _, name := range c.RequiredFeatures {
		if !obj.HasFeature(name) || !tgt.HasFeature(name) {
			return math.Inf(1)
		}
	}
	if !useSubset {
		return h.cost(obj, tgt)
	}
	names := make([]string, 0, len(c.RequiredFeatures)+len(c.OptionalFeatures))
	names = append(names, c.RequiredFeatures...)
	for _, name := range c.OptionalFeatures {
		if obj.HasFeature(name) && tgt.HasFeature(name) {
			names = append(names, name)
		}
	}
	return h.cost(obj.Subset(names), tgt.Subset(names))
}

// SolveMatrix solves a dense cost matrix directly. Rows are objects,
// columns targets; rows must share one length. Cells that are NaN,
// infinite, or above MaxCost are infeasible. An empty matrix in either
// dimension yields Success=false.
func (h *Hungarian) SolveMatrix(cost [][]float64, c Constraints) Result {
	n := len(cost)
	if n == 0 || len(cost[0]) == 0 {
		return Result{}
	}
	m := len(cost[0])

	maxCost := c.MaxCost
	if maxCost <= 0 {
		maxCost = math.Inf(1)
	}

	work := make([][]float64, n)
	for i := range work {
		work[i] = make([]float64, m)
		for j := 0; j < m; j++ {
			x := math.Inf(1)
			if j < len(cost[i]) {
				x = cost[i][j]
			}
			if cellFeasible(x, maxCost) {
				work[i][j] = x
			} else {
				work[i][j] = infeasibleCost
			}
		}
	}

	var assignments []int
	if c.OneToOne {
		assignments = solveSquare(work, n, m)
	} else {
		assignments = solveGreedyRows(work, n, m)
	}

	res := Result{
		Assignments: assignments,
		Costs:       make([]float64, n),
		Success:     true,
	}
	for i, j := range assignments {
		if j == Unassigned {
			res.Costs[i] = math.Inf(1)
			if !c.AllowUnassigned {
				res.Success = false
			}
			continue
		}
		res.Costs[i] = cost[i][j]
		res.TotalCost += cost[i][j]
	}
	return res
}

func cellFeasible(x, maxCost float64) bool {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return false
	}
	return x < infeasibleCost && x <= maxCost
}

// solveSquare runs Kuhn-Munkres with row and column potentials over a
// square copy of work padded with infeasibleCost, so excess rows stay
// unassigned. Returns the column chosen for each row, or Unassigned.
// Uses 1-indexed arrays internally for cleaner index arithmetic.
func solveSquare(work [][]float64, n, m int) []int {
	dim := n
	if m > dim {
		dim = m
	}

	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m {
				c[i][j] = work[i][j]
			} else {
				c[i][j] = infeasibleCost
			}
		}
	}

	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1) // row potentials
	v := make([]float64, dim+1) // column potentials
	p := make([]int, dim+1)     // p[j] = row assigned to column j
	way := make([]int, dim+1)   // way[j] = previous column in augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0 // virtual column

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// Augment along the path.
		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = Unassigned
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	// Trim to the original shape and reject padded or infeasible cells.
	out := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || work[i][col] >= infeasibleCost {
			out[i] = Unassigned
		} else {
			out[i] = col
		}
	}
	return out
}

// solveGreedyRows relaxes the one-to-one constraint: each row takes
// its cheapest feasible column independently, so targets may repeat.
func solveGreedyRows(work [][]float64, n, m int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestCost := Unassigned, infeasibleCost
		for j := 0; j < m; j++ {
			if work[i][j] < bestCost {
				best, bestCost = j, work[i][j]
			}
		}
		out[i] = best
	}
	return out
}
