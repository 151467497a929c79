package geomutil

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestLength(t *testing.T) {
	tests := []struct {
		name string
		ls   orb.LineString
		want float64
	}{
		{"empty", orb.LineString{}, 0},
		{"single point", orb.LineString{{0, 0}}, 0},
		{"straight line", orb.LineString{{0, 0}, {3, 4}}, 5},
		{"two segments", orb.LineString{{0, 0}, {3, 4}, {3, 0}}, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Length(tt.ls), 1e-9)
		})
	}
}

func TestPointAtFraction(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}}

	tests := []struct {
		name     string
		fraction float64
		want     orb.Point
	}{
		{"start", 0, orb.Point{0, 0}},
		{"end", 1, orb.Point{10, 0}},
		{"midpoint", 0.5, orb.Point{5, 0}},
		{"clamped below", -1, orb.Point{0, 0}},
		{"clamped above", 2, orb.Point{10, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PointAtFraction(ls, tt.fraction)
			assert.InDelta(t, tt.want[0], got[0], 1e-9)
			assert.InDelta(t, tt.want[1], got[1], 1e-9)
		})
	}
}

func TestLocatePoint(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}, {10, 10}}

	tests := []struct {
		name         string
		pt           orb.Point
		wantFraction float64
		wantDist     float64
	}{
		{"on first segment", orb.Point{5, 0}, 0.25, 0},
		{"on second segment", orb.Point{10, 5}, 0.75, 0},
		{"off to the side", orb.Point{5, 3}, 0.25, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frac, dist := LocatePoint(ls, tt.pt)
			assert.InDelta(t, tt.wantFraction, frac, 1e-9)
			assert.InDelta(t, tt.wantDist, dist, 1e-9)
		})
	}
}

func TestSlice(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}, {20, 0}}

	tests := []struct {
		name  string
		start float64
		end   float64
		want  orb.LineString
	}{
		{"full", 0, 1, orb.LineString{{0, 0}, {10, 0}, {20, 0}}},
		{"first half", 0, 0.5, orb.LineString{{0, 0}, {10, 0}}},
		{"second half", 0.5, 1, orb.LineString{{10, 0}, {20, 0}}},
		{"reversed", 1, 0, orb.LineString{{20, 0}, {10, 0}, {0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slice(ls, tt.start, tt.end)
			assert.Equal(t, len(tt.want), len(got))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i][0], got[i][0], 1e-9)
				assert.InDelta(t, tt.want[i][1], got[i][1], 1e-9)
			}
		})
	}
}

func TestConcatDedupesSharedVertex(t *testing.T) {
	a := orb.LineString{{0, 0}, {10, 0}}
	b := orb.LineString{{10, 0}, {10, 10}}

	got := Concat(a, b)
	assert.Equal(t, orb.LineString{{0, 0}, {10, 0}, {10, 10}}, got)
}

func TestConcatSkipsEmpty(t *testing.T) {
	a := orb.LineString{{0, 0}, {10, 0}}
	got := Concat(orb.LineString{}, a, orb.LineString{})
	assert.Equal(t, a, got)
}
