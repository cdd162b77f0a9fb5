// Package engine implements the greedy label-placement pass.
//
// Features are processed in descending priority order (ties broken by
// ascending feature ID for reproducibility). For each feature the engine
// walks its candidate sequence in preference order and commits the first
// candidate whose box overlaps nothing in the spatial index. A feature
// whose candidates are exhausted is suppressed; its space is never
// reclaimed mid-pass and already-committed placements are never bumped.
//
// The single-pass greedy design is deliberate: optimal label placement is
// NP-hard, and per-request latency must stay bounded. With capped candidate
// sequences the pass costs O(n log n) for the sort plus O(n · cap) index
// queries. Re-running a pass on identical input yields bit-identical
// placements.
package engine

import (
	"cmp"
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/labelgrid/pkg/errors"
	"github.com/matzehuels/labelgrid/pkg/label"
	"github.com/matzehuels/labelgrid/pkg/observability"
	"github.com/matzehuels/labelgrid/pkg/rtree"
)

// Engine runs placement passes. It is stateless between calls — all pass
// state lives in the index and the returned placements — so one Engine may
// serve many sessions concurrently.
type Engine struct {
	gen    *label.Generator
	logger *log.Logger
}

// Stats summarizes one placement pass.
type Stats struct {
	Features   int
	Committed  int
	Suppressed int
	Duration   time.Duration
}

// New creates an engine. A nil generator gets the default config; a nil
// logger discards output.
func New(gen *label.Generator, logger *log.Logger) *Engine {
	if gen == nil {
		gen = label.NewGenerator(label.DefaultConfig())
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Engine{gen: gen, logger: logger}
}

// Generator returns the engine's candidate generator.
func (e *Engine) Generator() *label.Generator { return e.gen }

// Place runs one placement pass over features against idx at the given
// zoom, committing winning boxes into idx. Every input feature gets exactly
// one placement in the result; per-feature failures (invalid geometry,
// candidate overflow) suppress that feature only and never abort the pass.
//
// Duplicate feature IDs are resolved last-wins, matching the
// replace-wholesale update rule.
func (e *Engine) Place(ctx context.Context, sessionID string, features []label.Feature, idx *rtree.Tree, zoom float64) (map[string]label.Placement, Stats) {
	ordered := dedupe(features)
	slices.SortStableFunc(ordered, func(a, b label.Feature) int {
		if a.Priority != b.Priority {
			return cmp.Compare(b.Priority, a.Priority) // descending
		}
		return cmp.Compare(a.ID, b.ID)
	})

	observability.Placement().OnPlaceStart(ctx, sessionID, len(ordered))
	start := time.Now()

	out := make(map[string]label.Placement, len(ordered))
	stats := Stats{Features: len(ordered)}
	for _, f := range ordered {
		p := e.placeOne(f, idx, zoom)
		out[f.ID] = p
		if p.Committed() {
			stats.Committed++
		} else {
			stats.Suppressed++
		}
	}

	stats.Duration = time.Since(start)
	observability.Placement().OnPlaceComplete(ctx, sessionID, stats.Committed, stats.Suppressed, stats.Duration, nil)
	e.logger.Debug("placement pass done",
		"session", sessionID,
		"features", stats.Features,
		"committed", stats.Committed,
		"suppressed", stats.Suppressed,
		"duration", stats.Duration)
	return out, stats
}

// placeOne tries a single feature's candidates and commits the first one
// that fits.
func (e *Engine) placeOne(f label.Feature, idx *rtree.Tree, zoom float64) label.Placement {
	cands, err := e.gen.Generate(f, zoom)
	if err != nil {
		switch errors.GetCode(err) {
		case errors.ErrCodeInvalidGeometry:
			e.logger.Warn("invalid geometry", "feature", f.ID, "err", errors.UserMessage(err))
			return label.NewSuppressed(f, label.ReasonInvalidGeometry)
		case errors.ErrCodeCandidateOverflow:
			e.logger.Warn("candidate overflow", "feature", f.ID, "err", errors.UserMessage(err))
			return label.NewSuppressed(f, label.ReasonNoCandidateFit)
		default:
			e.logger.Error("candidate generation failed", "feature", f.ID, "err", err)
			return label.NewSuppressed(f, label.ReasonNoCandidateFit)
		}
	}

	for _, c := range cands {
		if len(idx.Search(c.Box)) > 0 {
			continue
		}
		if err := idx.Insert(f.ID, c.Box); err != nil {
			// Duplicate ID would mean the caller left a stale box behind;
			// suppress rather than corrupt the index.
			e.logger.Error("index insert failed", "feature", f.ID, "err", err)
			return label.NewSuppressed(f, label.ReasonNoCandidateFit)
		}
		return label.NewCommitted(f, c)
	}
	return label.NewSuppressed(f, label.ReasonNoCandidateFit)
}

// dedupe copies the input keeping only the last occurrence of each ID,
// preserving first-occurrence order for the survivors.
func dedupe(features []label.Feature) []label.Feature {
	last := make(map[string]int, len(features))
	for i, f := range features {
		last[f.ID] = i
	}
	out := make([]label.Feature, 0, len(last))
	for i, f := range features {
		if last[f.ID] == i {
			out = append(out, f)
		}
	}
	return out
}
