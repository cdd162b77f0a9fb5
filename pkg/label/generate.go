package label

import (
	"github.com/matzehuels/labelgrid/pkg/errors"
	"github.com/matzehuels/labelgrid/pkg/geom"
)

// =============================================================================
// Generator Configuration
// =============================================================================

const (
	// DefaultCandidateCap bounds the candidate sequence per feature so a
	// placement pass has linear worst-case cost in the feature count.
	DefaultCandidateCap = 8

	// DefaultPointGap is the offset between a point anchor and its label
	// box, in viewport units.
	DefaultPointGap = 2.0

	// DefaultPolygonMaxFraction is the largest share of a polygon's
	// bounding box a label may occupy before the polygon is considered
	// geometrically hopeless and gets no candidates at all.
	DefaultPolygonMaxFraction = 0.85
)

// lineFractions are the arc-length positions tried for line labels, in
// preference order: midpoint first, then symmetric pairs working outward.
var lineFractions = []float64{0.5, 0.25, 0.75, 0.33, 0.67, 0.125, 0.875, 0.0625}

// Compass ranks for point candidates. Above-and-right is preferred, then
// the standard cartographic fallbacks.
const (
	RankNE = iota
	RankNW
	RankSE
	RankSW
	RankE
	RankW
	RankN
	RankS
)

// Config controls candidate generation.
type Config struct {
	// Cap is the maximum number of candidates emitted per feature.
	Cap int
	// PointGap is the anchor-to-box offset for point labels.
	PointGap float64
	// PolygonMaxFraction is the label/bbox size ratio above which a
	// polygon yields no candidates.
	PolygonMaxFraction float64
}

// DefaultConfig returns the default generation parameters.
func DefaultConfig() Config {
	return Config{
		Cap:                DefaultCandidateCap,
		PointGap:           DefaultPointGap,
		PolygonMaxFraction: DefaultPolygonMaxFraction,
	}
}

func (c Config) normalize() Config {
	if c.Cap <= 0 {
		c.Cap = DefaultCandidateCap
	}
	if c.PointGap < 0 {
		c.PointGap = DefaultPointGap
	}
	if c.PolygonMaxFraction <= 0 || c.PolygonMaxFraction > 1 {
		c.PolygonMaxFraction = DefaultPolygonMaxFraction
	}
	return c
}

// =============================================================================
// Generator
// =============================================================================

// Generator produces candidate label boxes for features. Generate is a pure
// function of its inputs; a Generator holds only configuration and is safe
// for concurrent use.
type Generator struct {
	cfg Config
}

// NewGenerator creates a generator with the given config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg.normalize()}
}

// Cap returns the configured candidate cap.
func (g *Generator) Cap() int { return g.cfg.Cap }

// Generate returns the ordered candidate sequence for a feature at the
// given zoom. The sequence is finite (bounded by the cap), ordered by
// preference, and empty when the feature cannot be labeled at this zoom or
// its polygon cannot fit the label.
//
// Degenerate geometry yields an INVALID_GEOMETRY error; an allowed-rank
// constraint that excludes every rank below the cap yields
// CANDIDATE_OVERFLOW. Both are per-feature conditions the engine turns into
// suppressions.
func (g *Generator) Generate(f Feature, zoom float64) ([]Candidate, error) {
	if err := g.validate(f); err != nil {
		return nil, err
	}
	if !f.InZoom(zoom) {
		return nil, nil
	}
	if f.Metrics.Width <= 0 || f.Metrics.Height <= 0 {
		return nil, nil
	}

	var cands []Candidate
	switch f.Geometry.Kind {
	case KindPoint:
		cands = g.pointCandidates(f)
	case KindLine:
		cands = g.lineCandidates(f)
	case KindPolygon:
		cands = g.polygonCandidates(f)
	}

	if len(cands) == 0 && overflowed(f, g.cfg.Cap) {
		return nil, errors.New(errors.ErrCodeCandidateOverflow,
			"feature %q allows no candidate rank below the cap %d", f.ID, g.cfg.Cap)
	}
	return cands, nil
}

// validate rejects degenerate geometry up front so hopeless features never
// reach the spatial index.
func (g *Generator) validate(f Feature) error {
	pts := f.Geometry.Points
	switch f.Geometry.Kind {
	case KindPoint:
		if len(pts) != 1 {
			return errors.New(errors.ErrCodeInvalidGeometry,
				"point feature %q has %d coordinates", f.ID, len(pts))
		}
	case KindLine:
		if len(pts) < 2 {
			return errors.New(errors.ErrCodeInvalidGeometry,
				"line feature %q has %d vertices", f.ID, len(pts))
		}
		if geom.PolylineLength(pts) == 0 {
			return errors.New(errors.ErrCodeInvalidGeometry,
				"line feature %q has zero length", f.ID)
		}
	case KindPolygon:
		if len(pts) < 3 {
			return errors.New(errors.ErrCodeInvalidGeometry,
				"polygon feature %q has %d vertices", f.ID, len(pts))
		}
		if _, area := geom.Centroid(pts); area == 0 {
			return errors.New(errors.ErrCodeInvalidGeometry,
				"polygon feature %q has zero area", f.ID)
		}
	default:
		return errors.New(errors.ErrCodeInvalidGeometry,
			"feature %q has unknown geometry kind %q", f.ID, f.Geometry.Kind)
	}
	return nil
}

// pointCandidates anchors the label at the eight compass offsets around the
// point, NE first.
func (g *Generator) pointCandidates(f Feature) []Candidate {
	p := f.Geometry.Points[0]
	w, h := f.Metrics.Width, f.Metrics.Height
	gap := g.cfg.PointGap

	boxes := [...]geom.Rect{
		RankNE: {MinX: p.X + gap, MinY: p.Y + gap, MaxX: p.X + gap + w, MaxY: p.Y + gap + h},
		RankNW: {MinX: p.X - gap - w, MinY: p.Y + gap, MaxX: p.X - gap, MaxY: p.Y + gap + h},
		RankSE: {MinX: p.X + gap, MinY: p.Y - gap - h, MaxX: p.X + gap + w, MaxY: p.Y - gap},
		RankSW: {MinX: p.X - gap - w, MinY: p.Y - gap - h, MaxX: p.X - gap, MaxY: p.Y - gap},
		RankE:  {MinX: p.X + gap, MinY: p.Y - h/2, MaxX: p.X + gap + w, MaxY: p.Y + h/2},
		RankW:  {MinX: p.X - gap - w, MinY: p.Y - h/2, MaxX: p.X - gap, MaxY: p.Y + h/2},
		RankN:  {MinX: p.X - w/2, MinY: p.Y + gap, MaxX: p.X + w/2, MaxY: p.Y + gap + h},
		RankS:  {MinX: p.X - w/2, MinY: p.Y - gap - h, MaxX: p.X + w/2, MaxY: p.Y - gap},
	}

	out := make([]Candidate, 0, min(len(boxes), g.cfg.Cap))
	for rank, box := range boxes {
		if len(out) == g.cfg.Cap {
			break
		}
		if !f.rankAllowed(rank) {
			continue
		}
		out = append(out, Candidate{Rank: rank, Box: box})
	}
	return out
}

// lineCandidates walks fixed arc-length fractions along the line, midpoint
// first. Each candidate box is the axis-aligned extent of the label rotated
// to the local tangent. Positions where the label would run past either
// endpoint are rejected.
func (g *Generator) lineCandidates(f Feature) []Candidate {
	pts := f.Geometry.Points
	w, h := f.Metrics.Width, f.Metrics.Height
	total := geom.PolylineLength(pts)

	out := make([]Candidate, 0, min(len(lineFractions), g.cfg.Cap))
	for rank, frac := range lineFractions {
		if len(out) == g.cfg.Cap {
			break
		}
		if !f.rankAllowed(rank) {
			continue
		}
		if frac*total < w/2 || (1-frac)*total < w/2 {
			continue
		}
		center, theta := geom.PointAlong(pts, frac)
		ew, eh := geom.RotatedExtent(w, h, theta)
		out = append(out, Candidate{Rank: rank, Box: geom.RectAround(center, ew, eh)})
	}
	return out
}

// polygonCandidates tries the area centroid first, then nudged alternates.
// A label larger than the configured fraction of the polygon's bounding box
// gets no candidates: suppressing immediately is cheaper than overlap
// queries that cannot succeed.
func (g *Generator) polygonCandidates(f Feature) []Candidate {
	pts := f.Geometry.Points
	w, h := f.Metrics.Width, f.Metrics.Height

	bounds := geom.BoundsOf(pts)
	if w > g.cfg.PolygonMaxFraction*bounds.W() || h > g.cfg.PolygonMaxFraction*bounds.H() {
		return nil
	}

	centroid, _ := geom.Centroid(pts)
	anchors := [...]geom.Point{
		centroid,
		{X: centroid.X, Y: centroid.Y + h},
		{X: centroid.X, Y: centroid.Y - h},
		{X: centroid.X + w/2, Y: centroid.Y},
		{X: centroid.X - w/2, Y: centroid.Y},
	}

	out := make([]Candidate, 0, min(len(anchors), g.cfg.Cap))
	for rank, anchor := range anchors {
		if len(out) == g.cfg.Cap {
			break
		}
		if !f.rankAllowed(rank) {
			continue
		}
		out = append(out, Candidate{Rank: rank, Box: geom.RectAround(anchor, w, h)})
	}
	return out
}

// overflowed reports whether a feature's allowed set references only ranks
// at or beyond the cap, i.e. the caller asked for candidates the generator
// will never produce.
func overflowed(f Feature, limit int) bool {
	if len(f.Constraints.Allowed) == 0 {
		return false
	}
	for _, r := range f.Constraints.Allowed {
		if r >= 0 && r < limit {
			return false
		}
	}
	return true
}
