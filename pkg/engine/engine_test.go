package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/matzehuels/labelgrid/pkg/geom"
	"github.com/matzehuels/labelgrid/pkg/label"
	"github.com/matzehuels/labelgrid/pkg/rtree"
)

func pointFeature(id string, x, y, priority float64) label.Feature {
	return label.Feature{
		ID:       id,
		Geometry: label.Geometry{Kind: label.KindPoint, Points: []geom.Point{{X: x, Y: y}}},
		Priority: priority,
		Metrics:  label.Metrics{Width: 1, Height: 1},
	}
}

func place(t *testing.T, features []label.Feature) (map[string]label.Placement, Stats) {
	t.Helper()
	eng := New(label.NewGenerator(label.Config{PointGap: 0.1}), nil)
	idx := rtree.New(rtree.DefaultConfig())
	placements, stats := eng.Place(context.Background(), "test", features, idx, 0)
	if err := idx.CheckHealth(); err != nil {
		t.Fatalf("index corrupt after pass: %v", err)
	}
	return placements, stats
}

func TestPlace_HigherPriorityWinsContestedSpace(t *testing.T) {
	// Two point features close enough that A's NE box blocks B's NE box.
	// B must fall through to its NW candidate.
	a := pointFeature("A", 0, 0, 10)
	b := pointFeature("B", 0.1, 0.1, 5)
	a.Constraints.Allowed = []int{0, 1, 2, 3}
	b.Constraints.Allowed = []int{0, 1, 2, 3}

	placements, stats := place(t, []label.Feature{b, a})

	if stats.Committed != 2 || stats.Suppressed != 0 {
		t.Fatalf("stats = %+v, want 2 committed", stats)
	}

	pa, pb := placements["A"], placements["B"]
	if !pa.Committed() || pa.Rank != label.RankNE {
		t.Errorf("A = %+v, want committed at NE", pa)
	}
	if !pb.Committed() || pb.Rank != label.RankNW {
		t.Errorf("B = %+v, want committed at NW after losing NE", pb)
	}
	if pa.Box.Overlaps(*pb.Box) {
		t.Errorf("committed boxes overlap: %v vs %v", *pa.Box, *pb.Box)
	}
}

func TestPlace_SuppressionWhenNothingFits(t *testing.T) {
	// Stack many identical points on one anchor; only a handful of the 8
	// compass slots exist, the rest must suppress with no_candidate_fit.
	var features []label.Feature
	for i := 0; i < 12; i++ {
		features = append(features, pointFeature(fmt.Sprintf("f%02d", i), 0, 0, float64(12-i)))
	}

	placements, stats := place(t, features)

	if stats.Features != 12 {
		t.Fatalf("stats.Features = %d, want 12", stats.Features)
	}
	if stats.Committed+stats.Suppressed != 12 {
		t.Fatalf("stats do not cover all features: %+v", stats)
	}
	if stats.Suppressed == 0 {
		t.Fatal("expected suppressions when anchors coincide")
	}

	for id, p := range placements {
		if p.Committed() {
			continue
		}
		if p.Reason != label.ReasonNoCandidateFit {
			t.Errorf("%s suppressed with %q, want %q", id, p.Reason, label.ReasonNoCandidateFit)
		}
		if p.Box != nil {
			t.Errorf("%s is suppressed but carries a box", id)
		}
	}

	// Highest priority always wins its preferred slot.
	if p := placements["f00"]; !p.Committed() || p.Rank != label.RankNE {
		t.Errorf("f00 = %+v, want committed at NE", p)
	}
}

func TestPlace_CommittedBoxesNeverOverlap(t *testing.T) {
	var features []label.Feature
	for i := 0; i < 40; i++ {
		x := float64(i%8) * 0.9
		y := float64(i/8) * 0.9
		features = append(features, pointFeature(fmt.Sprintf("f%02d", i), x, y, float64(i%5)))
	}

	placements, _ := place(t, features)

	var boxes []geom.Rect
	for _, p := range placements {
		if p.Committed() {
			boxes = append(boxes, *p.Box)
		}
	}
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if boxes[i].Overlaps(boxes[j]) {
				t.Fatalf("committed boxes %v and %v overlap", boxes[i], boxes[j])
			}
		}
	}
}

func TestPlace_Deterministic(t *testing.T) {
	var features []label.Feature
	for i := 0; i < 30; i++ {
		x := float64(i%6) * 1.1
		y := float64(i/6) * 1.1
		// Many priority ties to exercise the ID tie-break.
		features = append(features, pointFeature(fmt.Sprintf("f%02d", i), x, y, float64(i%3)))
	}

	first, _ := place(t, features)
	for run := 0; run < 5; run++ {
		again, _ := place(t, features)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d placements, want %d", run, len(again), len(first))
		}
		for id, p := range first {
			if !p.Equal(again[id]) {
				t.Fatalf("run %d: placement for %s drifted: %+v vs %+v", run, id, p, again[id])
			}
		}
	}
}

func TestPlace_EveryFeatureGetsAPlacement(t *testing.T) {
	features := []label.Feature{
		pointFeature("ok", 0, 0, 1),
		{ID: "bad", Geometry: label.Geometry{Kind: label.KindPoint}, Metrics: label.Metrics{Width: 1, Height: 1}},
		{ID: "zoomed", Geometry: label.Geometry{Kind: label.KindPoint, Points: []geom.Point{{X: 50, Y: 50}}},
			Metrics:     label.Metrics{Width: 1, Height: 1},
			Constraints: label.Constraints{MinZoom: 10}},
	}

	placements, stats := place(t, features)

	if len(placements) != 3 {
		t.Fatalf("got %d placements, want 3", len(placements))
	}
	if p := placements["bad"]; p.Committed() || p.Reason != label.ReasonInvalidGeometry {
		t.Errorf("bad = %+v, want suppressed with invalid_geometry", p)
	}
	// Out of zoom window: no candidates, suppressed as no fit.
	if p := placements["zoomed"]; p.Committed() || p.Reason != label.ReasonNoCandidateFit {
		t.Errorf("zoomed = %+v, want suppressed with no_candidate_fit", p)
	}
	if !placements["ok"].Committed() {
		t.Errorf("ok = %+v, want committed", placements["ok"])
	}
	if stats.Committed != 1 || stats.Suppressed != 2 {
		t.Errorf("stats = %+v, want 1 committed, 2 suppressed", stats)
	}
}

func TestPlace_DuplicateIDsLastWins(t *testing.T) {
	early := pointFeature("dup", 0, 0, 1)
	late := pointFeature("dup", 5, 5, 2)

	placements, stats := place(t, []label.Feature{early, late})

	if stats.Features != 1 {
		t.Fatalf("stats.Features = %d, want 1 after dedupe", stats.Features)
	}
	p := placements["dup"]
	if !p.Committed() {
		t.Fatalf("dup = %+v, want committed", p)
	}
	if p.Priority != 2 {
		t.Errorf("priority = %v, want the later feature's 2", p.Priority)
	}
	if c := p.Box.Center(); c.X < 5 {
		t.Errorf("box %v anchored near the earlier feature", *p.Box)
	}
}

func TestPlace_PriorityOrderIndependentOfInputOrder(t *testing.T) {
	a := pointFeature("A", 0, 0, 10)
	b := pointFeature("B", 0.1, 0.1, 5)

	forward, _ := place(t, []label.Feature{a, b})
	reversed, _ := place(t, []label.Feature{b, a})

	for _, id := range []string{"A", "B"} {
		if !forward[id].Equal(reversed[id]) {
			t.Errorf("placement for %s depends on input order: %+v vs %+v",
				id, forward[id], reversed[id])
		}
	}
}

func TestPlace_EmptyInput(t *testing.T) {
	placements, stats := place(t, nil)
	if len(placements) != 0 || stats.Features != 0 {
		t.Errorf("empty input produced %d placements, stats %+v", len(placements), stats)
	}
}

func TestNew_NilDefaults(t *testing.T) {
	eng := New(nil, nil)
	if eng.Generator() == nil {
		t.Fatal("nil generator was not defaulted")
	}
	if eng.Generator().Cap() != label.DefaultCandidateCap {
		t.Errorf("default cap = %d, want %d", eng.Generator().Cap(), label.DefaultCandidateCap)
	}
}
