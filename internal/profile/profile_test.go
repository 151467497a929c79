package profile

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

var straight100m = orb.LineString{{0, 0}, {100, 0}}

func TestCarProfile(t *testing.T) {
	tests := []struct {
		name     string
		tags     map[string]string
		wantDir  Direction
		wantCost time.Duration
	}{
		{
			name:     "residential both ways at default speed",
			tags:     map[string]string{"highway": "residential"},
			wantDir:  Both,
			wantCost: time.Duration(100 / milesPerHourToMetersPerSecond(30) * float64(time.Second)),
		},
		{
			name:    "oneway residential",
			tags:    map[string]string{"highway": "residential", "oneway": "yes"},
			wantDir: Forwards,
		},
		{
			name:    "oneway reversed",
			tags:    map[string]string{"highway": "residential", "oneway": "-1"},
			wantDir: Backwards,
		},
		{
			name:    "footway excluded",
			tags:    map[string]string{"highway": "footway"},
			wantDir: None,
		},
		{
			name:    "motor_vehicle no",
			tags:    map[string]string{"highway": "residential", "motor_vehicle": "no"},
			wantDir: None,
		},
		{
			name:    "no highway tag",
			tags:    map[string]string{},
			wantDir: None,
		},
		{
			name:     "explicit km/h maxspeed",
			tags:     map[string]string{"highway": "residential", "maxspeed": "50"},
			wantDir:  Both,
			wantCost: time.Duration(100 / milesPerHourToMetersPerSecond(50/1.609344) * float64(time.Second)),
		},
		{
			name:     "mph maxspeed",
			tags:     map[string]string{"highway": "residential", "maxspeed": "20 mph"},
			wantDir:  Both,
			wantCost: time.Duration(100 / milesPerHourToMetersPerSecond(20) * float64(time.Second)),
		},
		{
			name:    "zero maxspeed floored to 1mph",
			tags:    map[string]string{"highway": "residential", "maxspeed": "0 mph"},
			wantDir: Both,
		},
	}

	p := carProfile{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, cost := p.Evaluate(tt.tags, straight100m)
			assert.Equal(t, tt.wantDir, dir)
			if tt.wantCost != 0 {
				assert.InDelta(t, tt.wantCost, cost, float64(time.Millisecond))
			}
			if dir != None {
				assert.Greater(t, cost, time.Duration(0))
			}
		})
	}
}

func TestBicycleProfile(t *testing.T) {
	tests := []struct {
		name    string
		tags    map[string]string
		wantDir Direction
	}{
		{"residential", map[string]string{"highway": "residential"}, Both},
		{"motorway excluded", map[string]string{"highway": "motorway"}, None},
		{"motorway with bicycle yes", map[string]string{"highway": "motorway", "bicycle": "yes"}, Both},
		{"bicycle no", map[string]string{"highway": "residential", "bicycle": "no"}, None},
		{"oneway but bicycle contraflow allowed", map[string]string{"highway": "residential", "oneway": "yes", "oneway:bicycle": "no"}, Both},
	}

	p := bicycleProfile{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _ := p.Evaluate(tt.tags, straight100m)
			assert.Equal(t, tt.wantDir, dir)
		})
	}
}

func TestFootProfile(t *testing.T) {
	tests := []struct {
		name    string
		tags    map[string]string
		wantDir Direction
	}{
		{"footway", map[string]string{"highway": "footway"}, Both},
		{"motorway excluded", map[string]string{"highway": "motorway"}, None},
		{"foot no", map[string]string{"highway": "footway", "foot": "no"}, None},
		{"oneway foot", map[string]string{"highway": "footway", "oneway:foot": "yes"}, Forwards},
		{"vehicle oneway ignored by foot", map[string]string{"highway": "residential", "oneway": "yes"}, Both},
	}

	p := footProfile{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, cost := p.Evaluate(tt.tags, straight100m)
			assert.Equal(t, tt.wantDir, dir)
			if dir != None {
				assert.Greater(t, cost, time.Duration(0))
			}
		})
	}
}

func TestDirectionAllows(t *testing.T) {
	assert.True(t, Both.AllowsForwards())
	assert.True(t, Both.AllowsBackwards())
	assert.True(t, Forwards.AllowsForwards())
	assert.False(t, Forwards.AllowsBackwards())
	assert.True(t, Backwards.AllowsBackwards())
	assert.False(t, Backwards.AllowsForwards())
	assert.False(t, None.AllowsForwards())
	assert.False(t, None.AllowsBackwards())
}

func TestRegistry(t *testing.T) {
	p, ok := Get("car")
	assert.True(t, ok)
	assert.Equal(t, "car", p.Name())

	_, ok = Get("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"car", "bicycle", "foot"}, Names())
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted(map[string]string{"highway": "residential"}, straight100m))
	assert.True(t, Accepted(map[string]string{"highway": "footway"}, straight100m))
	assert.False(t, Accepted(map[string]string{"highway": "proposed"}, straight100m))
	assert.False(t, Accepted(map[string]string{}, straight100m))
}
