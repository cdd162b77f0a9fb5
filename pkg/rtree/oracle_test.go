package rtree

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/dhconnelly/rtreego"

	"github.com/matzehuels/labelgrid/pkg/geom"
)

// oracleItem adapts a stored rect to rtreego's Spatial interface.
type oracleItem struct {
	id     string
	bounds rtreego.Rect
}

func (o *oracleItem) Bounds() rtreego.Rect { return o.bounds }

func toOracleRect(t *testing.T, r geom.Rect) rtreego.Rect {
	t.Helper()
	or, err := rtreego.NewRect(rtreego.Point{r.MinX, r.MinY}, []float64{r.W(), r.H()})
	if err != nil {
		t.Fatalf("NewRect(%v): %v", r, err)
	}
	return or
}

// TestTree_MatchesReferenceImplementation cross-checks search results
// against an independent R-tree. Random float coordinates never produce
// exactly touching edges, so the strict-interior and closed overlap
// conventions agree on every query.
func TestTree_MatchesReferenceImplementation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	tree := New(DefaultConfig())
	oracle := rtreego.NewTree(2, 2, 8)
	byID := make(map[string]*oracleItem)

	randRect := func() geom.Rect {
		x := rng.NormFloat64() * 50
		y := rng.NormFloat64() * 50
		return geom.Rect{MinX: x, MinY: y, MaxX: x + rng.Float64()*8 + 0.01, MaxY: y + rng.Float64()*8 + 0.01}
	}

	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("o%03d", i)
		r := randRect()
		if err := tree.Insert(id, r); err != nil {
			t.Fatalf("Insert(%q): %v", id, err)
		}
		item := &oracleItem{id: id, bounds: toOracleRect(t, r)}
		oracle.Insert(item)
		byID[id] = item
	}

	// Interleave deletes to exercise condensing on both sides.
	for i := 0; i < 100; i += 3 {
		id := fmt.Sprintf("o%03d", i)
		if !tree.Delete(id) {
			t.Fatalf("Delete(%q) = false", id)
		}
		if !oracle.Delete(byID[id]) {
			t.Fatalf("oracle Delete(%q) = false", id)
		}
		delete(byID, id)
	}

	for i := 0; i < 200; i++ {
		q := randRect()
		got := tree.Search(q)

		var want []string
		for _, sp := range oracle.SearchIntersect(toOracleRect(t, q)) {
			want = append(want, sp.(*oracleItem).id)
		}
		slices.Sort(want)

		if !slices.Equal(got, want) {
			t.Fatalf("query %d: Search(%v) = %v, oracle says %v", i, q, got, want)
		}
	}
}
