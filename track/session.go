package track

import (
	"sort"

	"github.com/google/uuid"

	"github.com/banshee-data/trackcore/assign"
	"github.com/banshee-data/trackcore/feature"
	"github.com/banshee-data/trackcore/internal/config"
	"github.com/banshee-data/trackcore/internal/monitoring"
	"github.com/banshee-data/trackcore/kalman"
)

// AutoGroupIDSeed is the first id minted for groups a session creates
// itself. Externally supplied ids must stay below it.
const AutoGroupIDSeed GroupID = 1_000_000

// SessionConfig tunes a tracking session.
type SessionConfig struct {
	Kalman      kalman.Config
	Constraints assign.Constraints

	// ConfidenceThreshold gates which predictions participate in
	// matching. Groups predicting below it receive no update that
	// frame.
	ConfidenceThreshold float64
	// MaxPredictionTime bounds how far ahead GetPredictions will
	// extrapolate.
	MaxPredictionTime float64
	// CreateNewGroups spawns a group per unmatched observation.
	CreateNewGroups bool
}

// DefaultSessionConfig returns the stock session tuning.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Kalman:              kalman.DefaultConfig(),
		Constraints:         assign.DefaultConstraints(),
		ConfidenceThreshold: 0.1,
		MaxPredictionTime:   10.0,
		CreateNewGroups:     true,
	}
}

// SessionConfigFromTuning builds a SessionConfig from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func SessionConfigFromTuning(cfg *config.TuningConfig) SessionConfig {
	constraints := assign.Constraints{
		MaxCost:         cfg.GetMaxAssignmentCost(),
		AllowUnassigned: cfg.GetAllowUnassigned(),
		OneToOne:        cfg.GetOneToOne(),
	}
	if len(cfg.RequiredFeatures) > 0 {
		constraints.RequiredFeatures = append([]string(nil), cfg.RequiredFeatures...)
	}
	if len(cfg.OptionalFeatures) > 0 {
		constraints.OptionalFeatures = append([]string(nil), cfg.OptionalFeatures...)
	}
	return SessionConfig{
		Kalman:              kalman.ConfigFromTuning(cfg),
		Constraints:         constraints,
		ConfidenceThreshold: cfg.GetConfidenceThreshold(),
		MaxPredictionTime:   cfg.GetMaxPredictionTime(),
		CreateNewGroups:     cfg.GetCreateNewGroups(),
	}
}

// Result reports one processed frame.
type Result struct {
	UpdatedGroups     []GroupID       // groups corrected this frame, ground truth included
	NewGroups         []GroupID       // groups the session created this frame
	UnassignedObjects []int           // observation indices left unmatched
	Assignments       map[int]GroupID // observation index → group it updated or created
}

// Metrics counts session activity since construction or Reset.
type Metrics struct {
	FramesProcessed            int64
	ObservationsProcessed      int64
	GroundTruthUpdates         int64
	AlgorithmicUpdates         int64
	GroupsCreated              int64
	UnassignedObservations     int64
	PredictionsBelowConfidence int64
}

// Session drives frame-by-frame tracking: ground truth first, then
// algorithmic assignment between the remaining observations and the
// surviving predictions, then optional group creation for leftovers.
// Not safe for concurrent use.
type Session struct {
	id        string
	cfg       SessionConfig
	tracker   *GroupTracker
	algorithm assign.Algorithm

	currentTime float64
	nextGroupID GroupID
	metrics     Metrics
}

// NewSession returns a session with a fresh tracker and the Hungarian
// algorithm.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		id:          uuid.New().String(),
		cfg:         cfg,
		tracker:     NewGroupTracker(cfg.Kalman),
		algorithm:   assign.NewHungarian(),
		nextGroupID: AutoGroupIDSeed,
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// ProcessObservations runs one frame at the given time. Ground truth
// entries map observation indices to authoritative group ids; they are
// applied first and never routed through algorithmic matching.
// Per-observation failures are logged and routed to UnassignedObjects
// rather than aborting the frame.
func (s *Session) ProcessObservations(observations []*feature.Vector, time float64, groundTruth map[int]GroupID) Result {
	dt := time - s.currentTime
	s.currentTime = time

	res := Result{Assignments: make(map[int]GroupID)}
	consumed := make([]bool, len(observations))
	gtGroups := make(map[GroupID]bool, len(groundTruth))

	// Ground truth first, in ascending observation order.
	for _, idx := range sortedKeys(groundTruth) {
		if idx < 0 || idx >= len(observations) || observations[idx] == nil {
			monitoring.Logf("[Session %s] ground truth index %d has no observation, skipped", s.shortID(), idx)
			continue
		}
		gid := groundTruth[idx]
		var err error
		if s.tracker.IsGroupTracked(gid) {
			err = s.tracker.UpdateGroup(gid, observations[idx], dt)
		} else {
			err = s.tracker.InitializeGroup(gid, observations[idx], time)
		}
		if err != nil {
			monitoring.Logf("[Session %s] ground truth group %d: %v", s.shortID(), gid, err)
			continue
		}
		consumed[idx] = true
		gtGroups[gid] = true
		res.UpdatedGroups = append(res.UpdatedGroups, gid)
		res.Assignments[idx] = gid
		s.metrics.GroundTruthUpdates++
	}

	// Predict the remaining groups, dropping low-confidence ones.
	var candidateIDs []GroupID
	var candidates []*feature.Vector
	for _, gid := range s.tracker.GetTrackedGroups() {
		if gtGroups[gid] {
			continue
		}
		p := s.tracker.PredictGroup(gid, dt)
		if !p.Valid {
			continue
		}
		if p.Confidence < s.cfg.ConfidenceThreshold {
			s.metrics.PredictionsBelowConfidence++
			continue
		}
		candidateIDs = append(candidateIDs, gid)
		candidates = append(candidates, p.Features)
	}

	// Everything ground truth did not consume competes for the
	// surviving predictions.
	var rows []int
	var objects []*feature.Vector
	for i, obs := range observations {
		if consumed[i] || obs == nil {
			continue
		}
		rows = append(rows, i)
		objects = append(objects, obs)
	}

	open := make([]bool, len(rows))
	for i := range open {
		open[i] = true
	}

	if len(objects) > 0 && len(candidates) > 0 {
		sol := s.algorithm.Solve(objects, candidates, s.cfg.Constraints)
		if sol.Success {
			for r, target := range sol.Assignments {
				if target == assign.Unassigned {
					continue
				}
				obsIdx := rows[r]
				gid := candidateIDs[target]
				if err := s.tracker.UpdateGroup(gid, observations[obsIdx], dt); err != nil {
					monitoring.Logf("[Session %s] update group %d: %v", s.shortID(), gid, err)
					continue
				}
				open[r] = false
				res.UpdatedGroups = append(res.UpdatedGroups, gid)
				res.Assignments[obsIdx] = gid
				s.metrics.AlgorithmicUpdates++
			}
		}
	}

	// Spawn groups for the leftovers, or report them unassigned.
	for r, stillOpen := range open {
		if !stillOpen {
			continue
		}
		obsIdx := rows[r]
		if !s.cfg.CreateNewGroups {
			res.UnassignedObjects = append(res.UnassignedObjects, obsIdx)
			continue
		}
		gid := s.nextGroupID
		if err := s.tracker.InitializeGroup(gid, observations[obsIdx], time); err != nil {
			monitoring.Logf("[Session %s] create group for observation %d: %v", s.shortID(), obsIdx, err)
			res.UnassignedObjects = append(res.UnassignedObjects, obsIdx)
			continue
		}
		s.nextGroupID++
		res.NewGroups = append(res.NewGroups, gid)
		res.Assignments[obsIdx] = gid
		s.metrics.GroupsCreated++
	}

	s.metrics.FramesProcessed++
	s.metrics.ObservationsProcessed += int64(len(observations))
	s.metrics.UnassignedObservations += int64(len(res.UnassignedObjects))

	monitoring.Logf("[Session %s] frame t=%.3f obs=%d updated=%d new=%d unassigned=%d",
		s.shortID(), time, len(observations), len(res.UpdatedGroups), len(res.NewGroups), len(res.UnassignedObjects))
	return res
}

// GetPredictions extrapolates every tracked group to the given time.
// Horizons beyond MaxPredictionTime yield an empty map.
func (s *Session) GetPredictions(time float64) map[GroupID]kalman.Prediction {
	out := make(map[GroupID]kalman.Prediction)
	dt := time - s.currentTime
	if dt > s.cfg.MaxPredictionTime {
		return out
	}
	for _, gid := range s.tracker.GetTrackedGroups() {
		if p := s.tracker.PredictGroup(gid, dt); p.Valid {
			out[gid] = p
		}
	}
	return out
}

// SetAssignmentAlgorithm swaps the matching strategy for subsequent
// frames. Nil is ignored.
func (s *Session) SetAssignmentAlgorithm(a assign.Algorithm) {
	if a == nil {
		return
	}
	s.algorithm = a
	monitoring.Logf("[Session %s] assignment algorithm set to %q", s.shortID(), a.Name())
}

// IsGroupTracked reports whether the session tracks the group.
func (s *Session) IsGroupTracked(id GroupID) bool {
	return s.tracker.IsGroupTracked(id)
}

// RemoveGroup drops a group from the session.
func (s *Session) RemoveGroup(id GroupID) {
	s.tracker.RemoveGroup(id)
}

// GetTrackedGroups returns all tracked ids in ascending order.
func (s *Session) GetTrackedGroups() []GroupID {
	return s.tracker.GetTrackedGroups()
}

// GetGroupFeatures returns one group's current estimate.
func (s *Session) GetGroupFeatures(id GroupID) (*feature.Vector, error) {
	return s.tracker.GetGroupFeatures(id)
}

// GetCurrentTime returns the time of the last processed frame.
func (s *Session) GetCurrentTime() float64 {
	return s.currentTime
}

// GetMetrics returns a snapshot of the session counters.
func (s *Session) GetMetrics() Metrics {
	return s.metrics
}

// Reset drops all groups, time and counters. Config, algorithm and
// session id survive; the auto-id counter restarts at the seed.
func (s *Session) Reset() {
	s.tracker.Reset()
	s.currentTime = 0
	s.nextGroupID = AutoGroupIDSeed
	s.metrics = Metrics{}
}

func (s *Session) shortID() string {
	if len(s.id) > 8 {
		return s.id[:8]
	}
	return s.id
}

func sortedKeys(m map[int]GroupID) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
