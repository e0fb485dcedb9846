// Package track owns group identity over time: per-group Kalman
// filters keyed by caller-supplied ids, and the per-frame session loop
// that matches observations to predictions.
//
// Key types: GroupTracker, Session, SessionConfig, Result, Metrics.
//
// The package is synchronous and holds no locks. A session and the
// tracker it owns belong to one goroutine; hosts running several
// sessions confine or synchronize each externally.
package track
