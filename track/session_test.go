package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackcore/assign"
	"github.com/banshee-data/trackcore/feature"
	"github.com/banshee-data/trackcore/internal/config"
	"github.com/banshee-data/trackcore/internal/testutil"
)

// stubAlgorithm matches nothing and counts how often it is consulted.
type stubAlgorithm struct {
	calls int
}

func (s *stubAlgorithm) Name() string { return "stub" }

func (s *stubAlgorithm) Solve(objects, targets []*feature.Vector, c assign.Constraints) assign.Result {
	s.calls++
	assignments := make([]int, len(objects))
	costs := make([]float64, len(objects))
	for i := range assignments {
		assignments[i] = assign.Unassigned
		costs[i] = math.Inf(1)
	}
	return assign.Result{Assignments: assignments, Costs: costs, Success: true}
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	s1 := NewSession(DefaultSessionConfig())
	s2 := NewSession(DefaultSessionConfig())

	assert.NotEmpty(t, s1.ID())
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, 0.0, s1.GetCurrentTime())
	assert.Empty(t, s1.GetTrackedGroups())
	assert.Equal(t, Metrics{}, s1.GetMetrics())
}

func TestSessionFirstFrame(t *testing.T) {
	t.Parallel()

	s := NewSession(DefaultSessionConfig())
	obs := []*feature.Vector{
		testutil.PositionVector(t, 0, 0),
		testutil.PositionVector(t, 10, 0),
		testutil.PositionVector(t, 0, 10),
	}

	res := s.ProcessObservations(obs, 0, nil)

	assert.Equal(t, []GroupID{AutoGroupIDSeed, AutoGroupIDSeed + 1, AutoGroupIDSeed + 2}, res.NewGroups)
	assert.Empty(t, res.UpdatedGroups)
	assert.Empty(t, res.UnassignedObjects)
	assert.Equal(t, map[int]GroupID{
		0: AutoGroupIDSeed,
		1: AutoGroupIDSeed + 1,
		2: AutoGroupIDSeed + 2,
	}, res.Assignments)

	m := s.GetMetrics()
	assert.Equal(t, int64(1), m.FramesProcessed)
	assert.Equal(t, int64(3), m.ObservationsProcessed)
	assert.Equal(t, int64(3), m.GroupsCreated)
	assert.Equal(t, int64(0), m.AlgorithmicUpdates)
}

func TestSessionGroundTruth(t *testing.T) {
	t.Parallel()

	t.Run("initializes unknown ground truth groups", func(t *testing.T) {
		t.Parallel()
		s := NewSession(DefaultSessionConfig())

		res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 1, 2)}, 0, map[int]GroupID{0: 7})

		assert.Equal(t, []GroupID{7}, res.UpdatedGroups)
		assert.Empty(t, res.NewGroups)
		assert.Equal(t, map[int]GroupID{0: 7}, res.Assignments)
		assert.True(t, s.IsGroupTracked(7))
		assert.Equal(t, int64(1), s.GetMetrics().GroundTruthUpdates)
	})

	t.Run("ground truth overrides proximity", func(t *testing.T) {
		t.Parallel()
		s := NewSession(DefaultSessionConfig())
		s.ProcessObservations(
			[]*feature.Vector{testutil.PositionVector(t, 0, 0), testutil.PositionVector(t, 10, 10)},
			0,
			map[int]GroupID{0: 7, 1: 8},
		)

		// The observation sits next to group 7, but ground truth names
		// group 8. Authoritative ids win.
		res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0.3, 0)}, 1, map[int]GroupID{0: 8})

		assert.Equal(t, []GroupID{8}, res.UpdatedGroups)
		assert.Equal(t, map[int]GroupID{0: 8}, res.Assignments)
		assert.Empty(t, res.NewGroups)

		est, err := s.GetGroupFeatures(7)
		require.NoError(t, err)
		pos, err := est.GetFeature("position")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0, 0}, pos, 1e-12, "group 7 must not absorb the observation")
	})

	t.Run("ground truth groups are excluded from matching", func(t *testing.T) {
		t.Parallel()
		s := NewSession(DefaultSessionConfig())
		s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, map[int]GroupID{0: 7})

		// Both observations are near group 7, but ground truth consumes
		// it, so the second observation has nothing to match.
		res := s.ProcessObservations(
			[]*feature.Vector{testutil.PositionVector(t, 0.1, 0), testutil.PositionVector(t, 0.2, 0)},
			1,
			map[int]GroupID{0: 7},
		)

		assert.Equal(t, []GroupID{7}, res.UpdatedGroups)
		assert.Equal(t, []GroupID{AutoGroupIDSeed}, res.NewGroups)
		assert.Equal(t, map[int]GroupID{0: 7, 1: AutoGroupIDSeed}, res.Assignments)
	})

	t.Run("out of range indices are skipped", func(t *testing.T) {
		t.Parallel()
		s := NewSession(DefaultSessionConfig())

		res := s.ProcessObservations(
			[]*feature.Vector{testutil.PositionVector(t, 0, 0)},
			0,
			map[int]GroupID{-1: 42, 5: 43},
		)

		assert.False(t, s.IsGroupTracked(42))
		assert.False(t, s.IsGroupTracked(43))
		assert.Equal(t, []GroupID{AutoGroupIDSeed}, res.NewGroups)
		assert.Equal(t, int64(0), s.GetMetrics().GroundTruthUpdates)
	})

	t.Run("nil observations are ignored", func(t *testing.T) {
		t.Parallel()
		s := NewSession(DefaultSessionConfig())

		res := s.ProcessObservations([]*feature.Vector{nil, testutil.PositionVector(t, 1, 1)}, 0, map[int]GroupID{0: 7})

		assert.False(t, s.IsGroupTracked(7), "nil observation cannot seed a group")
		assert.Equal(t, []GroupID{AutoGroupIDSeed}, res.NewGroups)
		assert.Empty(t, res.UnassignedObjects)
		assert.Equal(t, int64(2), s.GetMetrics().ObservationsProcessed)
	})
}

func TestSessionTrackingContinuity(t *testing.T) {
	t.Parallel()

	s := NewSession(DefaultSessionConfig())

	res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)
	require.Equal(t, []GroupID{AutoGroupIDSeed}, res.NewGroups)
	gid := res.NewGroups[0]

	for i, x := range []float64{1, 2, 3} {
		res = s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, x, 0)}, float64(i+1), nil)
		assert.Equal(t, []GroupID{gid}, res.UpdatedGroups, "frame %d keeps the same group", i+2)
		assert.Empty(t, res.NewGroups)
		assert.Equal(t, map[int]GroupID{0: gid}, res.Assignments)
	}

	m := s.GetMetrics()
	assert.Equal(t, int64(4), m.FramesProcessed)
	assert.Equal(t, int64(1), m.GroupsCreated)
	assert.Equal(t, int64(3), m.AlgorithmicUpdates)
	assert.Equal(t, 3.0, s.GetCurrentTime())
}

func TestSessionPredictionConvergence(t *testing.T) {
	t.Parallel()

	// Three frames of steady (1, 1) per frame motion pin down the
	// velocity well enough to extrapolate the next position closely.
	s := NewSession(DefaultSessionConfig())
	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)
	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 1, 1)}, 1, nil)
	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 2, 2)}, 2, nil)

	preds := s.GetPredictions(3)
	require.Len(t, preds, 1)
	p, ok := preds[AutoGroupIDSeed]
	require.True(t, ok)
	require.True(t, p.Valid)

	pos, err := p.Features.GetFeature("position")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, pos[0], 0.5)
	assert.InDelta(t, 3.0, pos[1], 0.5)
}

func TestSessionOptimalPairing(t *testing.T) {
	t.Parallel()

	s := NewSession(DefaultSessionConfig())
	s.ProcessObservations(
		[]*feature.Vector{testutil.PositionVector(t, 0, 0), testutil.PositionVector(t, 10, 10)},
		0,
		map[int]GroupID{0: 1, 1: 2},
	)

	// Observation order is swapped relative to the groups; the solver
	// must still pair each observation with its nearest prediction.
	res := s.ProcessObservations(
		[]*feature.Vector{testutil.PositionVector(t, 10.5, 10.5), testutil.PositionVector(t, 0.5, 0.5)},
		1,
		nil,
	)

	assert.Equal(t, map[int]GroupID{0: 2, 1: 1}, res.Assignments)
	assert.ElementsMatch(t, []GroupID{1, 2}, res.UpdatedGroups)
	assert.Empty(t, res.NewGroups)
}

func TestSessionConfidenceGate(t *testing.T) {
	t.Parallel()

	cfg := DefaultSessionConfig()
	// Above the constant score exp(-0.1) a 2D position filter produces,
	// so every prediction is rejected.
	cfg.ConfidenceThreshold = 0.95
	s := NewSession(cfg)

	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)
	res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0.1, 0)}, 1, nil)

	assert.Equal(t, []GroupID{AutoGroupIDSeed + 1}, res.NewGroups, "gated groups cannot be matched")
	assert.Empty(t, res.UpdatedGroups)
	assert.Len(t, s.GetTrackedGroups(), 2)
	assert.Equal(t, int64(1), s.GetMetrics().PredictionsBelowConfidence)
}

func TestSessionCreateNewGroupsDisabled(t *testing.T) {
	t.Parallel()

	cfg := DefaultSessionConfig()
	cfg.CreateNewGroups = false
	s := NewSession(cfg)

	res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)

	assert.Empty(t, res.NewGroups)
	assert.Equal(t, []int{0}, res.UnassignedObjects)
	assert.Empty(t, s.GetTrackedGroups())

	m := s.GetMetrics()
	assert.Equal(t, int64(1), m.UnassignedObservations)
	assert.Equal(t, int64(0), m.GroupsCreated)
}

func TestSessionMaxCostSpawnsInsteadOfMatching(t *testing.T) {
	t.Parallel()

	cfg := DefaultSessionConfig()
	cfg.Constraints.MaxCost = 5.0
	s := NewSession(cfg)

	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)
	// 100 units away, far beyond the cost ceiling.
	res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 100, 0)}, 1, nil)

	assert.Empty(t, res.UpdatedGroups)
	assert.Equal(t, []GroupID{AutoGroupIDSeed + 1}, res.NewGroups)
	assert.Len(t, s.GetTrackedGroups(), 2)
}

func TestSessionGetPredictions(t *testing.T) {
	t.Parallel()

	t.Run("extrapolates along the estimated velocity", func(t *testing.T) {
		t.Parallel()
		s := NewSession(DefaultSessionConfig())
		s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)
		s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 1, 0)}, 1, nil)

		preds := s.GetPredictions(2)
		require.Len(t, preds, 1)
		p := preds[AutoGroupIDSeed]
		require.True(t, p.Valid)

		pos, err := p.Features.GetFeature("position")
		require.NoError(t, err)
		assert.Greater(t, pos[0], 1.0, "prediction leads the last estimate")
		assert.InDelta(t, 0.0, pos[1], 1e-9)
	})

	t.Run("horizons past the limit yield nothing", func(t *testing.T) {
		t.Parallel()
		s := NewSession(DefaultSessionConfig())
		s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)

		assert.Len(t, s.GetPredictions(10), 1)
		assert.Empty(t, s.GetPredictions(10.5))
	})
}

func TestSessionSetAssignmentAlgorithm(t *testing.T) {
	t.Parallel()

	s := NewSession(DefaultSessionConfig())
	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 0, nil)

	stub := &stubAlgorithm{}
	s.SetAssignmentAlgorithm(stub)

	res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0.05, 0)}, 1, nil)
	assert.Equal(t, 1, stub.calls)
	assert.Empty(t, res.UpdatedGroups, "stub refuses every match")
	assert.Equal(t, []GroupID{AutoGroupIDSeed + 1}, res.NewGroups)

	// Nil is ignored; the stub stays in place.
	s.SetAssignmentAlgorithm(nil)
	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0.06, 0)}, 2, nil)
	assert.Equal(t, 2, stub.calls)
}

func TestSessionRemoveGroupAndReset(t *testing.T) {
	t.Parallel()

	s := NewSession(DefaultSessionConfig())
	id := s.ID()

	s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0), testutil.PositionVector(t, 5, 5)}, 1, nil)
	require.Len(t, s.GetTrackedGroups(), 2)

	s.RemoveGroup(AutoGroupIDSeed)
	assert.False(t, s.IsGroupTracked(AutoGroupIDSeed))
	assert.True(t, s.IsGroupTracked(AutoGroupIDSeed+1))

	s.Reset()
	assert.Equal(t, id, s.ID(), "identity survives a reset")
	assert.Equal(t, 0.0, s.GetCurrentTime())
	assert.Empty(t, s.GetTrackedGroups())
	assert.Equal(t, Metrics{}, s.GetMetrics())

	// The id counter restarts at the seed.
	res := s.ProcessObservations([]*feature.Vector{testutil.PositionVector(t, 0, 0)}, 5, nil)
	assert.Equal(t, []GroupID{AutoGroupIDSeed}, res.NewGroups)
	assert.Equal(t, 5.0, s.GetCurrentTime())
}

func TestSessionConfigFromTuning(t *testing.T) {
	t.Parallel()

	t.Run("empty tuning mirrors the stock defaults", func(t *testing.T) {
		t.Parallel()
		got := SessionConfigFromTuning(config.EmptyTuningConfig())

		assert.Equal(t, 1.0, got.Kalman.DT)
		assert.Equal(t, 10.0, got.Kalman.DefaultInitialUncertainty)
		assert.True(t, math.IsInf(got.Constraints.MaxCost, 1))
		assert.True(t, got.Constraints.AllowUnassigned)
		assert.True(t, got.Constraints.OneToOne)
		assert.Equal(t, 0.1, got.ConfidenceThreshold)
		assert.Equal(t, 10.0, got.MaxPredictionTime)
		assert.True(t, got.CreateNewGroups)
	})

	t.Run("overrides flow through", func(t *testing.T) {
		t.Parallel()
		dt := 0.1
		maxCost := 15.0
		confidence := 0.25
		create := false
		tuning := &config.TuningConfig{
			DT:                  &dt,
			MaxAssignmentCost:   &maxCost,
			RequiredFeatures:    []string{"position"},
			ConfidenceThreshold: &confidence,
			CreateNewGroups:     &create,
		}

		got := SessionConfigFromTuning(tuning)

		assert.Equal(t, 0.1, got.Kalman.DT)
		assert.Equal(t, 15.0, got.Constraints.MaxCost)
		assert.Equal(t, []string{"position"}, got.Constraints.RequiredFeatures)
		assert.Equal(t, 0.25, got.ConfidenceThreshold)
		assert.False(t, got.CreateNewGroups)
	})
}
