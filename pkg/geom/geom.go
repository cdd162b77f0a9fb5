// Package geom provides the 2D primitives used by the placement engine:
// points, axis-aligned rectangles, polyline walking, and polygon centroids.
//
// All coordinates are viewport coordinates (already projected and
// simplified by the caller). The Y axis points up.
//
// The overlap test is strict-interior: two rectangles that merely share an
// edge or a corner do not overlap. This is the contract the spatial index
// and the placement engine rely on so that adjacent labels may touch.
package geom

import "math"

// Point is a location in viewport coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle. A Rect is valid when MinX <= MaxX and
// MinY <= MaxY.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// RectAround returns the w×h rectangle centered on p.
func RectAround(p Point, w, h float64) Rect {
	return Rect{
		MinX: p.X - w/2,
		MinY: p.Y - h/2,
		MaxX: p.X + w/2,
		MaxY: p.Y + h/2,
	}
}

// W returns the rectangle's width.
func (r Rect) W() float64 { return r.MaxX - r.MinX }

// H returns the rectangle's height.
func (r Rect) H() float64 { return r.MaxY - r.MinY }

// Area returns the rectangle's area.
func (r Rect) Area() float64 { return r.W() * r.H() }

// Center returns the rectangle's center point.
func (r Rect) Center() Point {
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// Valid reports whether the rectangle is well-formed.
func (r Rect) Valid() bool { return r.MinX <= r.MaxX && r.MinY <= r.MaxY }

// Overlaps reports whether r and o share interior area. Rectangles that
// touch along an edge or at a corner (zero-width intersection) do not
// overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.MinX < o.MaxX && r.MaxX > o.MinX &&
		r.MinY < o.MaxY && r.MaxY > o.MinY
}

// Contains reports whether o lies entirely within r (closed intervals).
func (r Rect) Contains(o Rect) bool {
	return r.MinX <= o.MinX && o.MaxX <= r.MaxX &&
		r.MinY <= o.MinY && o.MaxY <= r.MaxY
}

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Enlargement returns how much r's area would grow to accommodate o.
func (r Rect) Enlargement(o Rect) float64 {
	return r.Union(o).Area() - r.Area()
}

// BoundsOf returns the bounding rectangle of a set of points. Returns the
// zero Rect for an empty slice.
func BoundsOf(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	b := Rect{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// RotatedExtent returns the width and height of the axis-aligned bounding
// box of a w×h rectangle rotated by theta radians.
func RotatedExtent(w, h, theta float64) (float64, float64) {
	c := math.Abs(math.Cos(theta))
	s := math.Abs(math.Sin(theta))
	return w*c + h*s, w*s + h*c
}

// PolylineLength returns the total arc length of the polyline.
func PolylineLength(pts []Point) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += dist(pts[i-1], pts[i])
	}
	return total
}

// PointAlong returns the point at arc-length fraction f along the polyline
// together with the tangent angle (radians) of the segment it falls on.
// f is clamped to [0, 1]. The polyline must have at least two points and
// non-zero length.
func PointAlong(pts []Point, f float64) (Point, float64) {
	total := PolylineLength(pts)
	target := math.Min(math.Max(f, 0), 1) * total

	var walked float64
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		seg := dist(a, b)
		if seg == 0 {
			continue
		}
		if walked+seg >= target {
			t := (target - walked) / seg
			p := Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
			return p, math.Atan2(b.Y-a.Y, b.X-a.X)
		}
		walked += seg
	}

	// Fraction 1 with accumulated float error: land on the last segment end.
	last, prev := pts[len(pts)-1], pts[len(pts)-2]
	return last, math.Atan2(last.Y-prev.Y, last.X-prev.X)
}

// Centroid returns the area centroid of a polygon ring and its signed area
// (positive for counter-clockwise rings). The ring does not need to repeat
// its first point. A degenerate ring yields a zero area.
func Centroid(ring []Point) (Point, float64) {
	if len(ring) < 3 {
		return Point{}, 0
	}
	var cx, cy, area float64
	for i := range ring {
		a := ring[i]
		b := ring[(i+1)%len(ring)]
		cross := a.X*b.Y - b.X*a.Y
		area += cross
		cx += (a.X + b.X) * cross
		cy += (a.Y + b.Y) * cross
	}
	area /= 2
	if area == 0 {
		return Point{}, 0
	}
	return Point{X: cx / (6 * area), Y: cy / (6 * area)}, area
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
