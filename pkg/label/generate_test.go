package label

import (
	"math"
	"testing"

	"github.com/matzehuels/labelgrid/pkg/errors"
	"github.com/matzehuels/labelgrid/pkg/geom"
)

func pointFeature(id string, x, y float64) Feature {
	return Feature{
		ID:       id,
		Geometry: Geometry{Kind: KindPoint, Points: []geom.Point{{X: x, Y: y}}},
		Metrics:  Metrics{Width: 10, Height: 4},
	}
}

func TestGenerate_PointOrderAndBoxes(t *testing.T) {
	g := NewGenerator(Config{PointGap: 2})
	f := pointFeature("p", 0, 0)

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 8 {
		t.Fatalf("got %d candidates, want 8", len(cands))
	}

	for i, c := range cands {
		if c.Rank != i {
			t.Errorf("candidate %d has rank %d, preference order broken", i, c.Rank)
		}
	}

	// NE first: box sits above and right of the anchor with the gap.
	ne := cands[0].Box
	want := geom.Rect{MinX: 2, MinY: 2, MaxX: 12, MaxY: 6}
	if ne != want {
		t.Errorf("NE box = %v, want %v", ne, want)
	}

	// SW is the mirror.
	sw := cands[RankSW].Box
	want = geom.Rect{MinX: -12, MinY: -6, MaxX: -2, MaxY: -2}
	if sw != want {
		t.Errorf("SW box = %v, want %v", sw, want)
	}

	// E is vertically centered on the anchor.
	e := cands[RankE].Box
	if e.Center().Y != 0 || e.MinX != 2 {
		t.Errorf("E box = %v, want vertically centered at x=2", e)
	}

	// Every box has the label's dimensions.
	for _, c := range cands {
		if c.Box.W() != 10 || c.Box.H() != 4 {
			t.Errorf("rank %d box %v is not 10x4", c.Rank, c.Box)
		}
	}
}

func TestGenerate_AllowedRanks(t *testing.T) {
	g := NewGenerator(Config{})
	f := pointFeature("p", 0, 0)
	f.Constraints.Allowed = []int{RankSE, RankNE}

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	// Sequence order is preserved regardless of the allowed list's order.
	if cands[0].Rank != RankNE || cands[1].Rank != RankSE {
		t.Errorf("ranks = [%d %d], want [NE SE]", cands[0].Rank, cands[1].Rank)
	}
}

func TestGenerate_CandidateCap(t *testing.T) {
	g := NewGenerator(Config{Cap: 3})
	cands, err := g.Generate(pointFeature("p", 0, 0), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want cap of 3", len(cands))
	}
}

func TestGenerate_CandidateOverflow(t *testing.T) {
	g := NewGenerator(Config{Cap: 4})
	f := pointFeature("p", 0, 0)
	f.Constraints.Allowed = []int{6, 7}

	_, err := g.Generate(f, 0)
	if !errors.Is(err, errors.ErrCodeCandidateOverflow) {
		t.Fatalf("err = %v, want CANDIDATE_OVERFLOW", err)
	}
}

func TestGenerate_ZoomWindow(t *testing.T) {
	g := NewGenerator(Config{})
	f := pointFeature("p", 0, 0)
	f.Constraints.MinZoom = 5
	f.Constraints.MaxZoom = 10

	for _, tt := range []struct {
		zoom float64
		want int
	}{
		{4, 0}, {5, 8}, {7, 8}, {10, 8}, {11, 0},
	} {
		cands, err := g.Generate(f, tt.zoom)
		if err != nil {
			t.Fatalf("zoom %v: %v", tt.zoom, err)
		}
		if len(cands) != tt.want {
			t.Errorf("zoom %v: got %d candidates, want %d", tt.zoom, len(cands), tt.want)
		}
	}
}

func TestGenerate_NonpositiveMetrics(t *testing.T) {
	g := NewGenerator(Config{})
	f := pointFeature("p", 0, 0)
	f.Metrics.Width = 0

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cands != nil {
		t.Errorf("zero-width label got %d candidates, want none", len(cands))
	}
}

func TestGenerate_InvalidGeometry(t *testing.T) {
	g := NewGenerator(Config{})

	tests := []struct {
		name string
		f    Feature
	}{
		{"point with no coords", Feature{
			ID:       "a",
			Geometry: Geometry{Kind: KindPoint},
			Metrics:  Metrics{Width: 1, Height: 1},
		}},
		{"point with two coords", Feature{
			ID:       "b",
			Geometry: Geometry{Kind: KindPoint, Points: []geom.Point{{}, {X: 1}}},
			Metrics:  Metrics{Width: 1, Height: 1},
		}},
		{"line with one vertex", Feature{
			ID:       "c",
			Geometry: Geometry{Kind: KindLine, Points: []geom.Point{{}}},
			Metrics:  Metrics{Width: 1, Height: 1},
		}},
		{"zero-length line", Feature{
			ID:       "d",
			Geometry: Geometry{Kind: KindLine, Points: []geom.Point{{X: 3, Y: 3}, {X: 3, Y: 3}}},
			Metrics:  Metrics{Width: 1, Height: 1},
		}},
		{"two-vertex polygon", Feature{
			ID:       "e",
			Geometry: Geometry{Kind: KindPolygon, Points: []geom.Point{{}, {X: 1}}},
			Metrics:  Metrics{Width: 1, Height: 1},
		}},
		{"collinear polygon", Feature{
			ID:       "f",
			Geometry: Geometry{Kind: KindPolygon, Points: []geom.Point{{}, {X: 1, Y: 1}, {X: 2, Y: 2}}},
			Metrics:  Metrics{Width: 1, Height: 1},
		}},
		{"unknown kind", Feature{
			ID:       "g",
			Geometry: Geometry{Kind: "circle", Points: []geom.Point{{}}},
			Metrics:  Metrics{Width: 1, Height: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(tt.f, 0)
			if !errors.Is(err, errors.ErrCodeInvalidGeometry) {
				t.Errorf("err = %v, want INVALID_GEOMETRY", err)
			}
		})
	}
}

func TestGenerate_LineMidpointFirst(t *testing.T) {
	g := NewGenerator(Config{})
	f := Feature{
		ID:       "road",
		Geometry: Geometry{Kind: KindLine, Points: []geom.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}},
		Metrics:  Metrics{Width: 10, Height: 4},
	}

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) == 0 {
		t.Fatal("no candidates for a labelable line")
	}

	// Rank 0 is the midpoint; the box is axis-aligned on a horizontal line.
	first := cands[0]
	if first.Rank != 0 {
		t.Errorf("first candidate rank = %d, want 0", first.Rank)
	}
	want := geom.Rect{MinX: 45, MinY: -2, MaxX: 55, MaxY: 2}
	if first.Box != want {
		t.Errorf("midpoint box = %v, want %v", first.Box, want)
	}
}

func TestGenerate_LineEndpointRejection(t *testing.T) {
	g := NewGenerator(Config{})
	// Length 40, label width 12: fractions within 0.15 of either end fail
	// the half-width test (0.125 * 40 = 5 < 6) and must be skipped.
	f := Feature{
		ID:       "short",
		Geometry: Geometry{Kind: KindLine, Points: []geom.Point{{X: 0, Y: 0}, {X: 40, Y: 0}}},
		Metrics:  Metrics{Width: 12, Height: 4},
	}

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cands {
		if c.Box.MinX < 0 || c.Box.MaxX > 40 {
			t.Errorf("rank %d box %v runs past a line endpoint", c.Rank, c.Box)
		}
	}
	// Fractions 0.125, 0.875, and 0.0625 are rejected.
	if len(cands) != 5 {
		t.Errorf("got %d candidates, want 5", len(cands))
	}
}

func TestGenerate_LineTooShort(t *testing.T) {
	g := NewGenerator(Config{})
	f := Feature{
		ID:       "tiny",
		Geometry: Geometry{Kind: KindLine, Points: []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 0}}},
		Metrics:  Metrics{Width: 20, Height: 4},
	}

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Errorf("label wider than the line got %d candidates, want 0", len(cands))
	}
}

func TestGenerate_LineRotatedExtent(t *testing.T) {
	g := NewGenerator(Config{})
	// Diagonal line at 45 degrees: the candidate box is the rotated label's
	// axis-aligned extent, wider and taller than the raw metrics.
	f := Feature{
		ID:       "diag",
		Geometry: Geometry{Kind: KindLine, Points: []geom.Point{{X: 0, Y: 0}, {X: 100, Y: 100}}},
		Metrics:  Metrics{Width: 10, Height: 4},
	}

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) == 0 {
		t.Fatal("no candidates")
	}

	const eps = 1e-9
	box := cands[0].Box
	wantExtent := (10 + 4) / math.Sqrt2
	if math.Abs(box.W()-wantExtent) > eps || math.Abs(box.H()-wantExtent) > eps {
		t.Errorf("box %v extent = %v x %v, want %v square", box, box.W(), box.H(), wantExtent)
	}
	if c := box.Center(); math.Abs(c.X-50) > eps || math.Abs(c.Y-50) > eps {
		t.Errorf("box center = %v, want (50,50)", c)
	}
}

func TestGenerate_PolygonCentroidFirst(t *testing.T) {
	g := NewGenerator(Config{})
	f := Feature{
		ID: "lake",
		Geometry: Geometry{Kind: KindPolygon, Points: []geom.Point{
			{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 40}, {X: 0, Y: 40},
		}},
		Metrics: Metrics{Width: 10, Height: 4},
	}

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 5 {
		t.Fatalf("got %d candidates, want 5", len(cands))
	}
	if c := cands[0].Box.Center(); c != (geom.Point{X: 20, Y: 20}) {
		t.Errorf("first candidate centered at %v, want the centroid (20,20)", c)
	}
}

func TestGenerate_PolygonHopeless(t *testing.T) {
	g := NewGenerator(Config{PolygonMaxFraction: 0.85})
	f := Feature{
		ID: "pond",
		Geometry: Geometry{Kind: KindPolygon, Points: []geom.Point{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
		}},
		// Wider than 85% of the 10-unit bbox.
		Metrics: Metrics{Width: 9, Height: 4},
	}

	cands, err := g.Generate(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Errorf("oversized label got %d candidates, want 0", len(cands))
	}
}

func TestConfig_Normalize(t *testing.T) {
	got := Config{}.normalize()
	want := DefaultConfig()
	if got != want {
		t.Errorf("normalize(zero) = %+v, want defaults %+v", got, want)
	}

	got = Config{Cap: -1, PointGap: -2, PolygonMaxFraction: 1.5}.normalize()
	if got != want {
		t.Errorf("normalize(invalid) = %+v, want defaults %+v", got, want)
	}

	// Zero gap is a deliberate choice, not an invalid value.
	got = Config{Cap: 4, PointGap: 0, PolygonMaxFraction: 0.5}.normalize()
	if got.PointGap != 0 {
		t.Errorf("zero gap was overridden to %v", got.PointGap)
	}
}

func TestPlacement_Equal(t *testing.T) {
	f := pointFeature("p", 0, 0)
	f.Priority = 3

	a := NewCommitted(f, Candidate{Rank: 1, Box: geom.Rect{MaxX: 1, MaxY: 1}})
	b := NewCommitted(f, Candidate{Rank: 1, Box: geom.Rect{MaxX: 1, MaxY: 1}})
	if !a.Equal(b) {
		t.Error("identical committed placements compare unequal")
	}

	c := NewCommitted(f, Candidate{Rank: 2, Box: geom.Rect{MaxX: 1, MaxY: 1}})
	if a.Equal(c) {
		t.Error("different ranks compare equal")
	}

	s := NewSuppressed(f, ReasonNoCandidateFit)
	if a.Equal(s) {
		t.Error("committed equals suppressed")
	}
	if !s.Equal(NewSuppressed(f, ReasonNoCandidateFit)) {
		t.Error("identical suppressions compare unequal")
	}
	if s.Committed() {
		t.Error("suppressed placement reports Committed")
	}
	if !a.Committed() {
		t.Error("committed placement reports not Committed")
	}
}
