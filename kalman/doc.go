// Package kalman implements multi-feature Kalman filtering over
// schema-carrying feature vectors.
//
// A Filter derives its state layout from a template observation: every
// feature block becomes measured state, and differentiable blocks of
// enabled types grow a velocity block alongside. Dynamics, measurement
// and noise matrices are assembled block-diagonally from that layout
// once at initialization.
//
// Key types: Config, Filter, Prediction, StateMapping.
package kalman
