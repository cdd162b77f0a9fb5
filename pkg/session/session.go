// Package session provides per-viewport placement state and its lifecycle.
//
// A Session owns exactly one spatial index and the current placement set
// for one viewport. All mutation goes through the session's mutex — one
// writer at a time — while different sessions are fully independent. The
// Manager owns the session table and handles idle eviction.
//
// Incremental updates follow a bounded re-placement rule: a priority change
// contests only the committed placements with strictly lower priority, so a
// viewport pan or a single promoted label never triggers a full recompute.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/labelgrid/pkg/engine"
	"github.com/matzehuels/labelgrid/pkg/errors"
	"github.com/matzehuels/labelgrid/pkg/label"
	"github.com/matzehuels/labelgrid/pkg/rtree"
)

// Event types accepted by ApplyEvents.
const (
	EventAddFeature     = "add_feature"
	EventRemoveFeature  = "remove_feature"
	EventUpdatePriority = "update_priority"
)

// Event is one incremental change to a session's feature set.
type Event struct {
	Type string `json:"type"`
	// Feature is required for add_feature.
	Feature *label.Feature `json:"feature,omitempty"`
	// FeatureID is required for remove_feature and update_priority.
	FeatureID string `json:"feature_id,omitempty"`
	// Priority is the new priority for update_priority.
	Priority float64 `json:"priority,omitempty"`
}

// Update is the result of ApplyEvents: only the placements that changed,
// plus the IDs whose placements were removed.
type Update struct {
	Changed map[string]label.Placement `json:"placements"`
	Removed []string                   `json:"removed,omitempty"`
}

// Session holds the placement state for one viewport. A session retains a
// copy of each submitted feature (keyed by ID) because contested
// re-placement needs the geometry back; caller slices are never aliased.
type Session struct {
	mu         sync.Mutex
	id         string
	index      *rtree.Tree
	features   map[string]label.Feature
	placements map[string]label.Placement
	zoom       float64
	lastAccess time.Time
	closed     bool

	indexCfg rtree.Config
}

func newSession(id string, indexCfg rtree.Config) *Session {
	return &Session{
		id:         id,
		index:      rtree.New(indexCfg),
		features:   make(map[string]label.Feature),
		placements: make(map[string]label.Placement),
		lastAccess: time.Now(),
		indexCfg:   indexCfg,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Placements returns a copy of the current placement set.
func (s *Session) Placements() map[string]label.Placement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]label.Placement, len(s.placements))
	for id, p := range s.placements {
		out[id] = p
	}
	return out
}

// placeAll recomputes the whole session from scratch: fresh index, feature
// set replaced wholesale.
func (s *Session) placeAll(ctx context.Context, eng *engine.Engine, features []label.Feature, zoom float64) (map[string]label.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeSessionClosed, "session %q is closed", s.id)
	}
	s.touch()

	s.index = rtree.New(s.indexCfg)
	s.features = make(map[string]label.Feature, len(features))
	s.zoom = zoom

	placements, _ := eng.Place(ctx, s.id, features, s.index, zoom)
	s.placements = placements
	for _, f := range features {
		s.features[f.ID] = f
	}

	if err := s.verify(); err != nil {
		return nil, err
	}

	out := make(map[string]label.Placement, len(placements))
	for id, p := range placements {
		out[id] = p
	}
	return out, nil
}

// applyEvents applies incremental changes and reports only what changed.
func (s *Session) applyEvents(ctx context.Context, eng *engine.Engine, events []Event) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Update{}, errors.New(errors.ErrCodeSessionClosed, "session %q is closed", s.id)
	}
	s.touch()

	before := make(map[string]label.Placement, len(s.placements))
	for id, p := range s.placements {
		before[id] = p
	}

	for _, ev := range events {
		switch ev.Type {
		case EventRemoveFeature:
			s.removeFeature(ev.FeatureID)
		case EventAddFeature:
			if ev.Feature == nil {
				return Update{}, errors.New(errors.ErrCodeInvalidInput, "add_feature event without a feature")
			}
			if err := errors.ValidateFeatureID(ev.Feature.ID); err != nil {
				return Update{}, err
			}
			s.upsertFeature(ctx, eng, *ev.Feature)
		case EventUpdatePriority:
			f, ok := s.features[ev.FeatureID]
			if !ok {
				continue // unknown ID: no-op, mirrors idempotent removal
			}
			f.Priority = ev.Priority
			s.upsertFeature(ctx, eng, f)
		default:
			return Update{}, errors.New(errors.ErrCodeInvalidInput, "unknown event type %q", ev.Type)
		}
	}

	if err := s.verify(); err != nil {
		return Update{}, err
	}

	up := Update{Changed: make(map[string]label.Placement)}
	for id, p := range s.placements {
		if b, ok := before[id]; !ok || !b.Equal(p) {
			up.Changed[id] = p
		}
	}
	for id := range before {
		if _, ok := s.placements[id]; !ok {
			up.Removed = append(up.Removed, id)
		}
	}
	return up, nil
}

// removeFeature drops a feature, its placement, and its committed box.
// Removing an absent ID is a no-op.
func (s *Session) removeFeature(id string) {
	if p, ok := s.placements[id]; ok && p.Committed() {
		s.index.Delete(id)
	}
	delete(s.placements, id)
	delete(s.features, id)
}

// upsertFeature replaces a feature wholesale and re-places it together with
// the committed placements it contests: every committed box with strictly
// lower priority comes out of the index, and the engine re-runs over the
// changed feature plus those contested features against the reduced index.
// Boxes with priority >= the changed feature stay put, so the no-overlap
// invariant holds throughout.
func (s *Session) upsertFeature(ctx context.Context, eng *engine.Engine, f label.Feature) {
	if p, ok := s.placements[f.ID]; ok && p.Committed() {
		s.index.Delete(f.ID)
	}
	delete(s.placements, f.ID)
	s.features[f.ID] = f

	contested := []string{}
	for id, p := range s.placements {
		if p.Committed() && p.Priority < f.Priority {
			contested = append(contested, id)
		}
	}

	rerun := make([]label.Feature, 0, len(contested)+1)
	rerun = append(rerun, f)
	prior := make(map[string]label.Placement, len(contested))
	for _, id := range contested {
		s.index.Delete(id)
		prior[id] = s.placements[id]
		delete(s.placements, id)
		rerun = append(rerun, s.features[id])
	}

	result, _ := eng.Place(ctx, s.id, rerun, s.index, s.zoom)
	for id, p := range result {
		// A contested feature that was committed and now fits nowhere lost
		// its spot to the changed feature, not to its own geometry.
		if p.Status == label.StatusSuppressed && p.Reason == label.ReasonNoCandidateFit {
			if pr, ok := prior[id]; ok && pr.Committed() {
				p.Reason = label.ReasonLowerPriority
			}
		}
		s.placements[id] = p
	}
}

// verify runs the index consistency check. A failure is fatal for the
// session: it is marked closed and the error is surfaced, never retried.
func (s *Session) verify() error {
	if err := s.index.CheckHealth(); err != nil {
		s.closed = true
		return errors.Wrap(errors.ErrCodeIndexCorrupt, err, "session %q index corrupt", s.id)
	}
	return nil
}

// touch records activity for idle eviction. Callers hold s.mu.
func (s *Session) touch() { s.lastAccess = time.Now() }

// idle reports how long the session has been untouched.
func (s *Session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

// release drops the session's state so eviction leaves nothing behind.
func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.index = rtree.New(s.indexCfg)
	s.features = nil
	s.placements = nil
}

// counts returns feature and committed-label counts for stats.
func (s *Session) counts() (features, committed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.placements {
		if p.Committed() {
			committed++
		}
	}
	return len(s.features), committed
}
