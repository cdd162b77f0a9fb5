// Package pkg provides the core libraries for labelgrid label placement.
//
// # Overview
//
// Labelgrid decides which map labels to draw and where, so that no two
// labels overlap. The pkg directory is organized into four main areas:
//
//  1. [geom], [rtree] - Spatial primitives and the occupancy index
//  2. [label], [engine] - The data model, candidate generation, and the greedy pass
//  3. [session] - Incremental per-viewport placement state
//  4. [cache], [observability], [errors], [buildinfo] - Supporting infrastructure
//
// # Architecture
//
// The typical data flow through labelgrid:
//
//	Features (points, lines, polygons)
//	         |
//	         v
//	label.Generator  - ordered candidate boxes per feature
//	         |
//	         v
//	engine.Engine    - greedy priority-ordered commit against rtree.Tree
//	         |
//	         v
//	session.Session  - retained state, incremental events, contested re-placement
//	         |
//	         v
//	Placements (committed boxes or suppressions)
//
// The HTTP boundary and the CLI live under internal/ and compose these
// packages; nothing in pkg depends on the transport.
package pkg
