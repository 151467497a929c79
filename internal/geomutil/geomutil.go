// Package geomutil holds the small Euclidean linestring helpers the graph
// and routing packages share: length, fractional slicing, and nearest-point
// location. Everything here operates in Mercator-space meters (see
// internal/mercator), so plain Euclidean math is correct — no haversine.
package geomutil

import (
	"math"

	"github.com/paulmach/orb"
)

// Length returns the total length of ls in the units of its coordinates.
func Length(ls orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(ls); i++ {
		total += dist(ls[i-1], ls[i])
	}
	return total
}

func dist(a, b orb.Point) float64 {
	return Distance(a, b)
}

// Distance is the plain Euclidean distance between two Mercator-space
// points, exported for callers outside this package that need the same
// metric (e.g. internal/transitsearch's A* heuristic).
func Distance(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// PointAtFraction returns the point that lies fraction (clamped to [0,1])
// of the way along ls, measured by arc length.
func PointAtFraction(ls orb.LineString, fraction float64) orb.Point {
	if len(ls) == 0 {
		return orb.Point{}
	}
	if fraction <= 0 {
		return ls[0]
	}
	if fraction >= 1 {
		return ls[len(ls)-1]
	}
	target := Length(ls) * fraction
	walked := 0.0
	for i := 1; i < len(ls); i++ {
		seg := dist(ls[i-1], ls[i])
		if walked+seg >= target {
			if seg == 0 {
				return ls[i-1]
			}
			t := (target - walked) / seg
			return lerp(ls[i-1], ls[i], t)
		}
		walked += seg
	}
	return ls[len(ls)-1]
}

func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

// LocatePoint projects pt onto ls and returns the fraction along the line
// (by arc length, in [0,1]) and the perpendicular distance from pt to that
// projection. Used by internal/snap to match a GPS trace to road geometry.
func LocatePoint(ls orb.LineString, pt orb.Point) (fraction float64, distance float64) {
	if len(ls) == 0 {
		return 0, math.Inf(1)
	}
	if len(ls) == 1 {
		return 0, dist(ls[0], pt)
	}

	total := Length(ls)
	if total == 0 {
		return 0, dist(ls[0], pt)
	}

	bestDist := math.Inf(1)
	bestWalked := 0.0
	walked := 0.0
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		segLen := dist(a, b)
		t, projDist := closestOnSegment(a, b, pt)
		d := projDist
		if d < bestDist {
			bestDist = d
			bestWalked = walked + segLen*t
		}
		walked += segLen
	}
	return bestWalked / total, bestDist
}

// closestOnSegment returns the parameter t in [0,1] of the closest point on
// segment a->b to pt, and the distance from pt to that closest point.
func closestOnSegment(a, b, pt orb.Point) (t float64, distance float64) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0, dist(a, pt)
	}
	t = ((pt[0]-a[0])*dx + (pt[1]-a[1])*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	proj := lerp(a, b, t)
	return t, dist(proj, pt)
}

// Slice returns the portion of ls between fractions start and end (each
// clamped to [0,1], start may exceed end to produce a reversed slice),
// preserving intermediate vertices so the result still hugs the original
// geometry rather than becoming a straight line.
func Slice(ls orb.LineString, start, end float64) orb.LineString {
	if start > end {
		reversed := Slice(ls, end, start)
		return reverse(reversed)
	}
	start = clamp01(start)
	end = clamp01(end)
	if len(ls) == 0 {
		return orb.LineString{}
	}
	total := Length(ls)
	if total == 0 {
		return orb.LineString{ls[0], ls[0]}
	}

	out := orb.LineString{PointAtFraction(ls, start)}
	startTarget := total * start
	endTarget := total * end
	walked := 0.0
	for i := 1; i < len(ls); i++ {
		seg := dist(ls[i-1], ls[i])
		next := walked + seg
		if next > startTarget && next < endTarget {
			out = append(out, ls[i])
		}
		walked = next
	}
	out = append(out, PointAtFraction(ls, end))
	return dedupConsecutive(out)
}

func reverse(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// dedupConsecutive drops consecutive identical points, which Slice and
// route assembly otherwise produce at segment boundaries.
func dedupConsecutive(ls orb.LineString) orb.LineString {
	if len(ls) == 0 {
		return ls
	}
	out := orb.LineString{ls[0]}
	for _, p := range ls[1:] {
		last := out[len(out)-1]
		if p[0] != last[0] || p[1] != last[1] {
			out = append(out, p)
		}
	}
	return out
}

// Concat joins linestrings end-to-end, deduping the shared vertex at each
// join point. Used to assemble a path's full geometry from per-step slices.
func Concat(parts ...orb.LineString) orb.LineString {
	out := orb.LineString{}
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if part[0][0] == last[0] && part[0][1] == last[1] {
				part = part[1:]
			}
		}
		out = append(out, part...)
	}
	return out
}
