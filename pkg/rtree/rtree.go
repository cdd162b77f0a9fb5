// Package rtree implements a dynamic R-tree over axis-aligned rectangles
// keyed by string IDs.
//
// The tree is the occupancy index for committed label boxes: one box per
// feature, inserted when a label commits and removed when its feature is
// removed or contested. Queries use strict-interior overlap, so boxes that
// merely touch along an edge are not reported — adjacent labels are allowed
// to share an edge.
//
// Insertion chooses the leaf needing the least area enlargement and splits
// overflowing nodes by exhaustively minimizing the combined area of the two
// halves. Deletion condenses underfull nodes and reinserts their entries,
// so no entry is ever dropped by rebalancing.
//
// A Tree is not safe for concurrent use; callers serialize access (the
// session layer holds one tree per session behind a mutex).
package rtree

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/matzehuels/labelgrid/pkg/geom"
)

// Config controls the tree's fan-out.
type Config struct {
	// MinEntries is the minimum number of entries per node (except the root).
	MinEntries int
	// MaxEntries is the maximum number of entries per node before a split.
	MaxEntries int
}

// DefaultConfig returns the default fan-out (2..8).
func DefaultConfig() Config {
	return Config{MinEntries: 2, MaxEntries: 8}
}

// normalize clamps a config to usable values. MinEntries must not exceed
// half of MaxEntries or a split could produce an underfull node.
func (c Config) normalize() Config {
	if c.MaxEntries < 4 {
		c.MaxEntries = DefaultConfig().MaxEntries
	}
	if c.MaxEntries > 16 {
		c.MaxEntries = 16
	}
	if c.MinEntries < 1 || c.MinEntries > c.MaxEntries/2 {
		c.MinEntries = c.MaxEntries / 4
		if c.MinEntries < 1 {
			c.MinEntries = 1
		}
	}
	return c
}

// Tree is an R-tree keyed by entry ID. The zero value is not usable; create
// trees with New.
type Tree struct {
	cfg   Config
	root  *node
	items map[string]geom.Rect
}

type node struct {
	leaf    bool
	parent  *node
	entries []entry
}

// entry leads either to a stored rectangle (leaf, id set) or to a child
// node (branch, child set). In branches, rect is the child's MBR.
type entry struct {
	rect  geom.Rect
	id    string
	child *node
}

// New creates an empty tree with the given fan-out config.
func New(cfg Config) *Tree {
	return &Tree{
		cfg:   cfg.normalize(),
		items: make(map[string]geom.Rect),
	}
}

// Len returns the number of stored rectangles.
func (t *Tree) Len() int { return len(t.items) }

// Empty reports whether the tree holds no rectangles.
func (t *Tree) Empty() bool { return len(t.items) == 0 }

// Insert stores r under id. Inserting an ID that is already present is an
// error: the placement contract keeps at most one committed box per feature.
func (t *Tree) Insert(id string, r geom.Rect) error {
	if !r.Valid() {
		return fmt.Errorf("rtree: invalid rect for %q", id)
	}
	if _, ok := t.items[id]; ok {
		return fmt.Errorf("rtree: duplicate id %q", id)
	}
	t.items[id] = r
	t.insertEntry(entry{rect: r, id: id})
	return nil
}

// Delete removes the rectangle stored under id. Deleting an absent ID is a
// no-op and returns false, which keeps incremental updates idempotent.
func (t *Tree) Delete(id string) bool {
	r, ok := t.items[id]
	if !ok {
		return false
	}
	leaf := t.findLeaf(t.root, id, r)
	if leaf == nil {
		// items and tree disagree; surfaced by CheckHealth, never silent.
		return false
	}
	for i := range leaf.entries {
		if leaf.entries[i].id == id {
			leaf.entries = append(leaf.entries[:i], leaf.entries[i+1:]...)
			break
		}
	}
	delete(t.items, id)
	t.condense(leaf)
	return true
}

// Search returns the IDs of all stored rectangles whose interiors overlap
// q, sorted ascending for deterministic consumption.
func (t *Tree) Search(q geom.Rect) []string {
	if t.root == nil {
		return nil
	}
	var out []string
	var walk func(n *node)
	walk = func(n *node) {
		for _, e := range n.entries {
			if !e.rect.Overlaps(q) {
				continue
			}
			if n.leaf {
				out = append(out, e.id)
			} else {
				walk(e.child)
			}
		}
	}
	walk(t.root)
	sort.Strings(out)
	return out
}

// insertEntry places a leaf entry into the tree, growing the root as needed.
func (t *Tree) insertEntry(e entry) {
	if t.root == nil {
		t.root = &node{leaf: true}
	}
	leaf := t.chooseLeaf(e.rect)
	leaf.entries = append(leaf.entries, e)
	t.adjust(leaf)
}

// chooseLeaf descends from the root picking the child whose MBR needs the
// least enlargement to cover r, breaking ties by smaller area.
func (t *Tree) chooseLeaf(r geom.Rect) *node {
	n := t.root
	for !n.leaf {
		best := 0
		bestDelta := n.entries[0].rect.Enlargement(r)
		for i := 1; i < len(n.entries); i++ {
			delta := n.entries[i].rect.Enlargement(r)
			if delta < bestDelta ||
				(delta == bestDelta && n.entries[i].rect.Area() < n.entries[best].rect.Area()) {
				best = i
				bestDelta = delta
			}
		}
		n = n.entries[best].child
	}
	return n
}

// adjust walks from n to the root, splitting overflowing nodes and
// refreshing parent MBRs.
func (t *Tree) adjust(n *node) {
	for n != nil {
		if len(n.entries) > t.cfg.MaxEntries {
			nn := t.split(n)
			p := n.parent
			if p == nil {
				root := &node{entries: []entry{
					{rect: n.mbr(), child: n},
					{rect: nn.mbr(), child: nn},
				}}
				n.parent, nn.parent = root, root
				t.root = root
				return
			}
			nn.parent = p
			p.refreshChild(n)
			p.entries = append(p.entries, entry{rect: nn.mbr(), child: nn})
			n = p
			continue
		}
		if p := n.parent; p != nil {
			p.refreshChild(n)
		}
		n = n.parent
	}
}

// split divides n's entries into two groups minimizing their combined MBR
// area over all partitions that respect MinEntries, keeps the first group
// in n, and returns a new sibling holding the second.
func (t *Tree) split(n *node) *node {
	m := len(n.entries)
	var (
		bestSplit uint
		bestArea  = -1.0
	)
	// The high bit stays 0 so mirrored partitions are not re-examined.
	for split := uint(1); split < 1<<(m-1); split++ {
		onB := bits.OnesCount(split)
		if onB < t.cfg.MinEntries || m-onB < t.cfg.MinEntries {
			continue
		}
		var ra, rb geom.Rect
		var hasA, hasB bool
		for i, e := range n.entries {
			if split&(1<<i) == 0 {
				if hasA {
					ra = ra.Union(e.rect)
				} else {
					ra, hasA = e.rect, true
				}
			} else {
				if hasB {
					rb = rb.Union(e.rect)
				} else {
					rb, hasB = e.rect, true
				}
			}
		}
		if area := ra.Area() + rb.Area(); bestArea < 0 || area < bestArea {
			bestArea = area
			bestSplit = split
		}
	}

	var keep, move []entry
	for i, e := range n.entries {
		if bestSplit&(1<<i) == 0 {
			keep = append(keep, e)
		} else {
			move = append(move, e)
		}
	}
	n.entries = keep

	nn := &node{leaf: n.leaf, entries: move}
	if !nn.leaf {
		for _, e := range nn.entries {
			e.child.parent = nn
		}
	}
	return nn
}

// findLeaf locates the leaf holding id by descending only into subtrees
// whose MBR contains the stored rect.
func (t *Tree) findLeaf(n *node, id string, r geom.Rect) *node {
	if n == nil {
		return nil
	}
	if n.leaf {
		for _, e := range n.entries {
			if e.id == id {
				return n
			}
		}
		return nil
	}
	for _, e := range n.entries {
		if !e.rect.Contains(r) {
			continue
		}
		if found := t.findLeaf(e.child, id, r); found != nil {
			return found
		}
	}
	return nil
}

// condense walks from a shrunken leaf to the root, dissolving underfull
// nodes and reinserting their surviving entries afterwards.
func (t *Tree) condense(n *node) {
	var orphans []entry
	for n.parent != nil {
		p := n.parent
		if len(n.entries) < t.cfg.MinEntries {
			p.removeChild(n)
			collectLeafEntries(n, &orphans)
		} else {
			p.refreshChild(n)
		}
		n = p
	}

	// Shrink the root: a branch root with a single child is redundant, and
	// an empty root means an empty tree.
	for t.root != nil && !t.root.leaf && len(t.root.entries) == 1 {
		t.root = t.root.entries[0].child
		t.root.parent = nil
	}
	if t.root != nil && len(t.root.entries) == 0 {
		t.root = nil
	}

	for _, e := range orphans {
		t.insertEntry(e)
	}
}

// collectLeafEntries gathers every leaf entry beneath n.
func collectLeafEntries(n *node, out *[]entry) {
	if n.leaf {
		*out = append(*out, n.entries...)
		return
	}
	for _, e := range n.entries {
		collectLeafEntries(e.child, out)
	}
}

// mbr returns the minimum bounding rectangle of a node's entries.
func (n *node) mbr() geom.Rect {
	b := n.entries[0].rect
	for _, e := range n.entries[1:] {
		b = b.Union(e.rect)
	}
	return b
}

// refreshChild updates the MBR stored for child c in its parent p.
func (p *node) refreshChild(c *node) {
	for i := range p.entries {
		if p.entries[i].child == c {
			p.entries[i].rect = c.mbr()
			return
		}
	}
}

// removeChild drops the entry for child c from p.
func (p *node) removeChild(c *node) {
	for i := range p.entries {
		if p.entries[i].child == c {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}
