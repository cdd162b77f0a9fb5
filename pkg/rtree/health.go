package rtree

import "fmt"

// CheckHealth verifies the tree's structural invariants: parent links,
// branch MBRs, uniform leaf depth, fan-out bounds, and agreement between
// the tree and its ID table. A non-nil error means the index is corrupt;
// callers must treat that as fatal for the owning session rather than
// retrying.
func (t *Tree) CheckHealth() error {
	if t.root == nil {
		if len(t.items) != 0 {
			return fmt.Errorf("rtree: empty tree but %d tracked items", len(t.items))
		}
		return nil
	}
	if t.root.parent != nil {
		return fmt.Errorf("rtree: root has a parent")
	}

	seen := make(map[string]bool, len(t.items))
	leafDepth := -1

	var walk func(n *node, depth int) error
	walk = func(n *node, depth int) error {
		min := t.cfg.MinEntries
		if n == t.root {
			min = 1 // the root may be underfull
		}
		if len(n.entries) < min || len(n.entries) > t.cfg.MaxEntries {
			return fmt.Errorf("rtree: node with %d entries outside [%d,%d]",
				len(n.entries), min, t.cfg.MaxEntries)
		}
		if n.leaf {
			if leafDepth == -1 {
				leafDepth = depth
			} else if depth != leafDepth {
				return fmt.Errorf("rtree: leaf at depth %d, expected %d", depth, leafDepth)
			}
			for _, e := range n.entries {
				stored, ok := t.items[e.id]
				if !ok {
					return fmt.Errorf("rtree: untracked entry %q", e.id)
				}
				if stored != e.rect {
					return fmt.Errorf("rtree: entry %q rect drifted from tracked rect", e.id)
				}
				if seen[e.id] {
					return fmt.Errorf("rtree: entry %q stored twice", e.id)
				}
				seen[e.id] = true
			}
			return nil
		}
		for _, e := range n.entries {
			if e.child == nil {
				return fmt.Errorf("rtree: branch entry without child")
			}
			if e.child.parent != n {
				return fmt.Errorf("rtree: broken parent link")
			}
			if got := e.child.mbr(); got != e.rect {
				return fmt.Errorf("rtree: stale MBR %+v, child covers %+v", e.rect, got)
			}
			if err := walk(e.child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(t.root, 0); err != nil {
		return err
	}
	if len(seen) != len(t.items) {
		return fmt.Errorf("rtree: %d entries in tree, %d tracked", len(seen), len(t.items))
	}
	return nil
}
