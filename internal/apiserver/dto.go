package apiserver

import (
	geojson "github.com/paulmach/go.geojson"
)

// RouteRequest is a point-to-point query (spec §6).
type RouteRequest struct {
	P1Lat        float64 `validate:"required,latitude"`
	P1Lon        float64 `validate:"required,longitude"`
	P2Lat        float64 `validate:"required,latitude"`
	P2Lon        float64 `validate:"required,longitude"`
	Profile      string  `validate:"required"`
	Transit      bool
	StartTime    string `validate:"omitempty,datetime=15:04"`
	UseHeuristic bool
	DebugSearch  bool
}

// IsochroneRequest is a multi-source reachability query (spec §6).
type IsochroneRequest struct {
	Lat           float64 `validate:"required,latitude"`
	Lon           float64 `validate:"required,longitude"`
	Profile       string  `validate:"required"`
	PublicTransit bool
	Style         string `validate:"required,oneof=roads grid contours"`
	StartTime     string `validate:"omitempty,datetime=15:04"`
	MaxSeconds    int    `validate:"required,gt=0"`
}

// SnapRequest matches a GeoJSON FeatureCollection of LineStrings onto the
// road network (spec §6). Input is parsed from the POST body rather than
// a query parameter since it can be arbitrarily large.
type SnapRequest struct {
	Input      *geojson.FeatureCollection `validate:"required"`
	Profile    string                     `validate:"required"`
	StartTime  string                     `validate:"omitempty,datetime=15:04"`
	MaxSeconds int
}
