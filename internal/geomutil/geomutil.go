package geomutil

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Begin returns the 0% arc-length endpoint of a polyline.
func Begin(ls orb.LineString) orb.Point {
	return ls[0]
}

// End returns the 100% arc-length endpoint of a polyline.
func End(ls orb.LineString) orb.Point {
	return ls[len(ls)-1]
}

// SamePoint reports whether two points coincide within tol.
func SamePoint(a, b orb.Point, tol float64) bool {
	return planar.Distance(a, b) <= tol
}

// Touches reports whether two polylines share at least one point, in
// the sense of the boundary-touch relation on segment data: an
// endpoint of one polyline lies on the other within tol. Every
// junction in the source data is a segment boundary, so touches that
// involve neither boundary do not occur.
func Touches(a, b orb.LineString, tol float64) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	if planar.DistanceFrom(b, Begin(a)) <= tol || planar.DistanceFrom(b, End(a)) <= tol {
		return true
	}
	return planar.DistanceFrom(a, Begin(b)) <= tol || planar.DistanceFrom(a, End(b)) <= tol
}

// BufferOverlapArea computes the intersection area of the flat-capped
// buffers of two polylines, each buffered by tol on both sides. The
// flat cap keeps the buffer from bleeding past a polyline's true
// endpoints, so two collinear segments meeting end to end overlap
// with area zero while a diverging branch leaves a wedge and a
// mid-extent crossing leaves a full lozenge.
//
// Each buffer is decomposed into one oriented rectangle per polyline
// edge and the area is summed over rectangle pairs. Regions covered
// by more than one pair are counted once per pair; around a shared
// endpoint of near-straight track geometry this overcount is
// negligible relative to the retention threshold.
func BufferOverlapArea(a, b orb.LineString, tol float64) float64 {
	ra := bufferRects(a, tol)
	rb := bufferRects(b, tol)

	total := 0.0
	for _, qa := range ra {
		for _, qb := range rb {
			total += convexIntersectionArea(qa, qb)
		}
	}
	return total
}

// bufferRects returns one rectangle per polyline edge, offset by tol
// perpendicular to the edge direction. Zero-length edges are skipped.
func bufferRects(ls orb.LineString, tol float64) [][]orb.Point {
	rects := make([][]orb.Point, 0, len(ls)-1)
	for i := 0; i < len(ls)-1; i++ {
		p1, p2 := ls[i], ls[i+1]
		dx := p2[0] - p1[0]
		dy := p2[1] - p1[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// Unit normal scaled to the buffer tolerance.
		nx := -dy / length * tol
		ny := dx / length * tol
		rects = append(rects, []orb.Point{
			{p1[0] + nx, p1[1] + ny},
			{p2[0] + nx, p2[1] + ny},
			{p2[0] - nx, p2[1] - ny},
			{p1[0] - nx, p1[1] - ny},
		})
	}
	return rects
}

// convexIntersectionArea clips one convex polygon against another
// (Sutherland-Hodgman) and returns the area of the intersection.
func convexIntersectionArea(subject, clip []orb.Point) float64 {
	clip = counterClockwise(clip)
	out := subject
	for i := 0; i < len(clip); i++ {
		if len(out) == 0 {
			return 0
		}
		a := clip[i]
		b := clip[(i+1)%len(clip)]
		out = clipAgainstEdge(out, a, b)
	}
	return polygonArea(out)
}

// clipAgainstEdge keeps the part of the polygon on the left side of
// the directed edge a->b.
func clipAgainstEdge(poly []orb.Point, a, b orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(poly)+1)
	for i := 0; i < len(poly); i++ {
		cur := poly[i]
		prev := poly[(i+len(poly)-1)%len(poly)]
		curIn := cross(a, b, cur) >= 0
		prevIn := cross(a, b, prev) >= 0
		if curIn {
			if !prevIn {
				out = append(out, lineIntersection(prev, cur, a, b))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, lineIntersection(prev, cur, a, b))
		}
	}
	return out
}

// cross is the z component of (b-a) x (p-a): positive when p lies to
// the left of the directed line a->b.
func cross(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

// lineIntersection returns the intersection of the infinite lines
// p1->p2 and a->b. Callers guarantee the lines are not parallel.
func lineIntersection(p1, p2, a, b orb.Point) orb.Point {
	d1x, d1y := p2[0]-p1[0], p2[1]-p1[1]
	d2x, d2y := b[0]-a[0], b[1]-a[1]
	denom := d1x*d2y - d1y*d2x
	if denom == 0 {
		return p1
	}
	t := ((a[0]-p1[0])*d2y - (a[1]-p1[1])*d2x) / denom
	return orb.Point{p1[0] + t*d1x, p1[1] + t*d1y}
}

// polygonArea is the shoelace area of a simple polygon.
func polygonArea(poly []orb.Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(poly); i++ {
		j := (i + 1) % len(poly)
		sum += poly[i][0]*poly[j][1] - poly[j][0]*poly[i][1]
	}
	return math.Abs(sum) / 2
}

// counterClockwise returns the polygon with counter-clockwise winding.
func counterClockwise(poly []orb.Point) []orb.Point {
	sum := 0.0
	for i := 0; i < len(poly); i++ {
		j := (i + 1) % len(poly)
		sum += poly[i][0]*poly[j][1] - poly[j][0]*poly[i][1]
	}
	if sum >= 0 {
		return poly
	}
	rev := make([]orb.Point, len(poly))
	for i, p := range poly {
		rev[len(poly)-1-i] = p
	}
	return rev
}
