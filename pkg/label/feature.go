// Package label defines the data model for label placement — features,
// candidates, placements — and the candidate generator that proposes label
// positions for each geometry kind.
//
// The geometry kind set is closed (point, line, polygon); each kind knows
// how to produce an ordered, bounded sequence of candidate boxes. Placement
// outcomes are the canonical serialization format used by API responses and
// the CLI.
package label

import (
	"github.com/matzehuels/labelgrid/pkg/geom"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Geometry kinds.
const (
	KindPoint   = "point"
	KindLine    = "line"
	KindPolygon = "polygon"
)

// Placement statuses.
const (
	StatusCommitted  = "committed"
	StatusSuppressed = "suppressed"
)

// Suppression reasons.
const (
	// ReasonNoCandidateFit means every candidate collided or none were
	// generated.
	ReasonNoCandidateFit = "no_candidate_fit"
	// ReasonLowerPriority means a previously committed label lost its box
	// to a higher-priority feature during an incremental update.
	ReasonLowerPriority = "lower_priority"
	// ReasonInvalidGeometry means the feature's geometry was degenerate.
	ReasonInvalidGeometry = "invalid_geometry"
)

// =============================================================================
// Feature - Placement Input
// =============================================================================

// Geometry is a tagged union over the closed set of geometry kinds.
// Points holds 1 coordinate for a point, the vertices of a polyline for a
// line, or the ring of a polygon (first vertex not repeated).
type Geometry struct {
	Kind   string       `json:"kind"`
	Points []geom.Point `json:"points"`
}

// Metrics is the rendered size of a label in viewport units. The core never
// measures text; callers supply the box.
type Metrics struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Constraints restricts where and when a label may appear.
type Constraints struct {
	// Allowed lists permitted candidate ranks. Empty means all ranks.
	Allowed []int `json:"allowed,omitempty"`
	// MinZoom/MaxZoom bound the zoom window. Zero values are unbounded.
	MinZoom float64 `json:"min_zoom,omitempty"`
	MaxZoom float64 `json:"max_zoom,omitempty"`
}

// Feature is one labelable map feature. Features are immutable once
// submitted for a pass and are replaced wholesale on update.
type Feature struct {
	ID          string      `json:"id"`
	Geometry    Geometry    `json:"geometry"`
	Text        string      `json:"text,omitempty"`
	Priority    float64     `json:"priority"`
	Metrics     Metrics     `json:"metrics"`
	Constraints Constraints `json:"constraints,omitempty"`
}

// InZoom reports whether the feature's label may appear at the given zoom.
func (f *Feature) InZoom(zoom float64) bool {
	c := f.Constraints
	if c.MinZoom != 0 && zoom < c.MinZoom {
		return false
	}
	if c.MaxZoom != 0 && zoom > c.MaxZoom {
		return false
	}
	return true
}

// rankAllowed reports whether a candidate rank passes the allowed set.
func (f *Feature) rankAllowed(rank int) bool {
	if len(f.Constraints.Allowed) == 0 {
		return true
	}
	for _, r := range f.Constraints.Allowed {
		if r == rank {
			return true
		}
	}
	return false
}

// =============================================================================
// Candidate & Placement - Placement Output
// =============================================================================

// Candidate is one proposed label box. Rank is the preference index within
// the feature's full candidate sequence; lower ranks are preferred.
// Candidates live only for the duration of one placement attempt.
type Candidate struct {
	Rank int
	Box  geom.Rect
}

// Placement is the outcome for one feature: a committed box with the
// winning candidate's rank, or a suppression with a reason. Priority is
// carried so incremental updates can tell contested placements apart
// without re-reading the feature.
type Placement struct {
	FeatureID string     `json:"feature_id"`
	Status    string     `json:"status"`
	Box       *geom.Rect `json:"box,omitempty"`
	Rank      int        `json:"rank,omitempty"`
	Reason    string     `json:"suppression_reason,omitempty"`
	Priority  float64    `json:"priority"`
}

// Committed reports whether the placement carries a box.
func (p Placement) Committed() bool { return p.Status == StatusCommitted }

// Equal reports whether two placements are identical outcomes.
func (p Placement) Equal(o Placement) bool {
	if p.FeatureID != o.FeatureID || p.Status != o.Status ||
		p.Rank != o.Rank || p.Reason != o.Reason || p.Priority != o.Priority {
		return false
	}
	if (p.Box == nil) != (o.Box == nil) {
		return false
	}
	return p.Box == nil || *p.Box == *o.Box
}

// NewSuppressed builds a suppressed placement for a feature.
func NewSuppressed(f Feature, reason string) Placement {
	return Placement{
		FeatureID: f.ID,
		Status:    StatusSuppressed,
		Reason:    reason,
		Priority:  f.Priority,
	}
}

// NewCommitted builds a committed placement for a feature.
func NewCommitted(f Feature, c Candidate) Placement {
	box := c.Box
	return Placement{
		FeatureID: f.ID,
		Status:    StatusCommitted,
		Box:       &box,
		Rank:      c.Rank,
		Priority:  f.Priority,
	}
}
