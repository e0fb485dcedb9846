// Package assign solves the frame-to-frame correspondence problem:
// given feature vectors for observed objects and predicted targets,
// produce a minimum-cost assignment under caller constraints.
//
// Key types: Result, Constraints, Algorithm, Hungarian, CostFunc.
//
// Infeasibility is data here, not an error: impossible pairings come
// back as Unassigned rows and empty inputs as Success=false.
package assign
