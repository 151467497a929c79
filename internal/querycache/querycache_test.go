package querycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyIsDeterministic(t *testing.T) {
	a := Key("route", 40.712, -74.006, 40.758, -73.985, "foot")
	b := Key("route", 40.712, -74.006, 40.758, -73.985, "foot")
	assert.Equal(t, a, b)
}

func TestKeyDiffersByKindAndParams(t *testing.T) {
	route := Key("route", 40.712, -74.006, "foot")
	isochrone := Key("isochrone", 40.712, -74.006, "foot")
	assert.NotEqual(t, route, isochrone)

	car := Key("route", 40.712, -74.006, "car")
	assert.NotEqual(t, route, car)
}
