package track

import (
	"fmt"
	"sort"

	"github.com/banshee-data/trackcore/feature"
	"github.com/banshee-data/trackcore/kalman"
)

// GroupID identifies a tracked group. Callers supply their own ids;
// sessions mint ids from AutoGroupIDSeed upward for groups they
// create themselves.
type GroupID int64

// GroupTracker owns one Kalman filter per tracked group. A filter is
// never shared or aliased across groups. Not safe for concurrent use.
type GroupTracker struct {
	cfg     kalman.Config
	filters map[GroupID]*kalman.Filter
}

// NewGroupTracker returns an empty tracker. Every group's filter is
// built from cfg.
func NewGroupTracker(cfg kalman.Config) *GroupTracker {
	return &GroupTracker{
		cfg:     cfg,
		filters: make(map[GroupID]*kalman.Filter),
	}
}

// InitializeGroup creates the group's filter seeded with the
// observation. An existing group is replaced, which resets its state.
func (g *GroupTracker) InitializeGroup(id GroupID, features *feature.Vector, initialTime float64) error {
	f := kalman.NewFilter(g.cfg)
	if err := f.Initialize(features, initialTime); err != nil {
		return fmt.Errorf("initialize group %d: %w", id, err)
	}
	g.filters[id] = f
	return nil
}

// IsGroupTracked reports whether the id has an initialized filter.
func (g *GroupTracker) IsGroupTracked(id GroupID) bool {
	_, ok := g.filters[id]
	return ok
}

// PredictGroup extrapolates one group dt ahead without mutating it.
// Unknown ids yield an invalid prediction.
func (g *GroupTracker) PredictGroup(id GroupID, dt float64) kalman.Prediction {
	f, ok := g.filters[id]
	if !ok {
		return kalman.Prediction{}
	}
	return f.Predict(dt)
}

// UpdateGroup corrects one group with an observation.
func (g *GroupTracker) UpdateGroup(id GroupID, observed *feature.Vector, dt float64) error {
	f, ok := g.filters[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrGroupNotTracked, id)
	}
	if err := f.Update(observed, dt); err != nil {
		return fmt.Errorf("update group %d: %w", id, err)
	}
	return nil
}

// GetGroupFeatures returns the group's current estimate.
func (g *GroupTracker) GetGroupFeatures(id GroupID) (*feature.Vector, error) {
	f, ok := g.filters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrGroupNotTracked, id)
	}
	return f.GetCurrentFeatures(), nil
}

// GetGroupConfidence scores the group's estimate in [0, 1]. Unknown
// ids score zero.
func (g *GroupTracker) GetGroupConfidence(id GroupID) float64 {
	f, ok := g.filters[id]
	if !ok {
		return 0
	}
	return f.Confidence()
}

// RemoveGroup drops a group. Unknown ids are a no-op.
func (g *GroupTracker) RemoveGroup(id GroupID) {
	delete(g.filters, id)
}

// GetTrackedGroups returns all tracked ids in ascending order.
func (g *GroupTracker) GetTrackedGroups() []GroupID {
	ids := make([]GroupID, 0, len(g.filters))
	for id := range g.filters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GroupCount returns the number of tracked groups.
func (g *GroupTracker) GroupCount() int {
	return len(g.filters)
}

// Reset drops all groups.
func (g *GroupTracker) Reset() {
	g.filters = make(map[GroupID]*kalman.Filter)
}
