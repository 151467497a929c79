// Package graphmodel holds the engine's central data model (spec §3): the
// dense-ID Road/Intersection/Stop/Trip/Route/Position/PathStep types and
// the Graph container that owns every instance of them. Every cross-entity
// reference is a lookup by dense integer ID into one of Graph's flat
// slices — there are no owning cycles (spec §9 "Cyclic references").
package graphmodel

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/geomutil"
	"github.com/passbi/transitengine/internal/mercator"
	"github.com/passbi/transitengine/internal/osmlift"
	"github.com/passbi/transitengine/internal/profile"
)

// RoadID, IntersectionID, ProfileID, StopID, TripID and RouteID are dense,
// non-negative, unique-within-kind identifiers (spec §3). No cross-kind
// arithmetic is meaningful between them, hence the distinct types.
type RoadID int
type IntersectionID int
type ProfileID int
type StopID int
type TripID int
type RouteID int

// Road is a directed-capable edge between two intersections.
type Road struct {
	SrcI, DstI   IntersectionID
	Linestring   orb.LineString // Mercator; first point at SrcI, last at DstI
	LengthMeters float64
	OSMTags      map[string]string
	Access       []profile.Direction // indexed by ProfileID
	Cost         []time.Duration     // indexed by ProfileID
	Stops        []StopID
}

// AllowsForwards reports whether profile p may traverse this road src->dst.
func (r *Road) AllowsForwards(p ProfileID) bool {
	return int(p) < len(r.Access) && r.Access[p].AllowsForwards()
}

// AllowsBackwards reports whether profile p may traverse this road dst->src.
func (r *Road) AllowsBackwards(p ProfileID) bool {
	return int(p) < len(r.Access) && r.Access[p].AllowsBackwards()
}

// OtherEnd returns the intersection at the far end of the road from from.
func (r *Road) OtherEnd(from IntersectionID) IntersectionID {
	if r.SrcI == from {
		return r.DstI
	}
	return r.SrcI
}

// Intersection is a node. Roads is sorted clockwise by outbound bearing
// from north (spec §3), as produced by internal/osmlift.
type Intersection struct {
	Point orb.Point // Mercator
	Roads []RoadID
}

// NextStep is the precomputed fact that some trip travels from the owning
// stop at DepartTime to ArriveStop at ArriveTime (spec §3, §4.3).
type NextStep struct {
	DepartTime time.Duration // time of day, elapsed since midnight
	Trip       TripID
	ArriveStop StopID
	ArriveTime time.Duration
}

// Stop is a transit boarding location snapped onto a walking-traversable
// road. NextSteps is sorted by DepartTime ascending (spec §3, §8).
type Stop struct {
	Point     orb.Point // Mercator
	Name      string
	OrigID    string
	Road      RoadID
	Valid     bool
	NextSteps []NextStep
}

// TripsFrom returns the entries of s.NextSteps (sorted by DepartTime
// ascending) with fromTime <= DepartTime <= fromTime+maxWait, stopping at
// the first entry past the window (spec §4.9).
func (s *Stop) TripsFrom(fromTime, maxWait time.Duration) []NextStep {
	limit := fromTime + maxWait
	var out []NextStep
	for _, ns := range s.NextSteps {
		if ns.DepartTime < fromTime {
			continue
		}
		if ns.DepartTime > limit {
			break
		}
		out = append(out, ns)
	}
	return out
}

// TripStop is one (stop, arrival time) pair within a Trip's sequence.
type TripStop struct {
	Stop       StopID
	ArriveTime time.Duration
}

// Trip is an ordered sequence of stop visits plus its parent route.
type Trip struct {
	Stops []TripStop
	Route RouteID
}

// TransitRoute is GTFS route metadata (human-facing, not a path).
type TransitRoute struct {
	OrigID    string
	ShortName string
	LongName  string
	Desc      string
}

// Describe picks the best human-readable label for a route: its
// description, falling back to the long name, then the short name, then
// its raw GTFS ID (spec §8 scenario 5's "route (human-readable)" output).
func (r TransitRoute) Describe() string {
	switch {
	case r.Desc != "":
		return r.Desc
	case r.LongName != "":
		return r.LongName
	case r.ShortName != "":
		return r.ShortName
	default:
		return r.OrigID
	}
}

// GTFSModel is the transit sub-model, populated by Graph.SetupGTFS.
type GTFSModel struct {
	Stops  []Stop
	Trips  []Trip
	Routes []TransitRoute
}

// Position is a cursor along the graph.
type Position struct {
	Road          RoadID
	FractionAlong float64
	Intersection  IntersectionID
}

// StepKind distinguishes the two PathStep variants.
type StepKind int

const (
	StepRoad StepKind = iota
	StepTransit
)

// PathStep is either a Road traversal or a Transit boarding, matching
// spec §3's `PathStep` union. Only the fields for Kind are meaningful.
type PathStep struct {
	Kind StepKind

	// StepRoad fields.
	Road     RoadID
	Forwards bool

	// StepTransit fields.
	FromStop StopID
	Trip     TripID
	ToStop   StopID
}

// Route is a found path: start/end cursors plus the steps between them.
type Route struct {
	Start Position
	End   Position
	Steps []PathStep
}

// Graph is the unified, read-only-after-construction data structure:
// roads, intersections, per-profile access/cost vectors (carried on each
// Road), per-stop associations, and the Mercator frame (spec §3).
type Graph struct {
	Roads         []Road
	Intersections []Intersection
	Frame         mercator.Frame
	Boundary      orb.Polygon
	ProfileNames  []string

	Gtfs *GTFSModel
}

// ProfileID resolves a registered profile name to its dense index, per
// the order Graph was built with (profile.Names()'s order unless the
// caller passed a different list to Build).
func (g *Graph) ProfileID(name string) (ProfileID, bool) {
	for i, n := range g.ProfileNames {
		if n == name {
			return ProfileID(i), true
		}
	}
	return 0, false
}

// PositionIntersection picks whichever endpoint of road is closer to
// fractionAlong, per spec §3's Position definition.
func PositionIntersection(road *Road, fractionAlong float64) IntersectionID {
	if fractionAlong <= 0.5 {
		return road.SrcI
	}
	return road.DstI
}

// NewPosition builds a Position with its Intersection field derived from
// road and fractionAlong.
func NewPosition(roadID RoadID, road *Road, fractionAlong float64) Position {
	return Position{
		Road:          roadID,
		FractionAlong: fractionAlong,
		Intersection:  PositionIntersection(road, fractionAlong),
	}
}

// Build turns an OSM Lift result plus a list of evaluated profiles into a
// Graph: every accepted road gets a per-profile (Direction, cost) pair
// from profs, in profs' order (spec §4.1 post-conditions, §4.2).
func Build(lift *osmlift.Result, profs []profile.Profile) (*Graph, error) {
	if len(profs) == 0 {
		return nil, engineerr.New(engineerr.InputParse, "Build: at least one profile is required")
	}

	names := make([]string, len(profs))
	for i, p := range profs {
		names[i] = p.Name()
	}

	roads := make([]Road, len(lift.Roads))
	for i, rr := range lift.Roads {
		access := make([]profile.Direction, len(profs))
		cost := make([]time.Duration, len(profs))
		for pi, p := range profs {
			d, c := p.Evaluate(rr.OSMTags, rr.Linestring)
			access[pi] = d
			cost[pi] = c
		}
		length := geomutil.Length(rr.Linestring)
		roads[i] = Road{
			SrcI:         IntersectionID(rr.SrcI),
			DstI:         IntersectionID(rr.DstI),
			Linestring:   rr.Linestring,
			LengthMeters: length,
			OSMTags:      rr.OSMTags,
			Access:       access,
			Cost:         cost,
		}
	}

	intersections := make([]Intersection, len(lift.Intersections))
	for i, ri := range lift.Intersections {
		roadIDs := make([]RoadID, len(ri.Roads))
		for j, idx := range ri.Roads {
			roadIDs[j] = RoadID(idx)
		}
		intersections[i] = Intersection{Point: ri.Point, Roads: roadIDs}
	}

	return &Graph{
		Roads:         roads,
		Intersections: intersections,
		Frame:         lift.Frame,
		Boundary:      lift.Boundary,
		ProfileNames:  names,
	}, nil
}

// SetupGTFS attaches a transit sub-model to the graph. It may only be
// called once (spec §7 GtfsAlreadyConfigured).
func (g *Graph) SetupGTFS(model *GTFSModel) error {
	if g.Gtfs != nil {
		return engineerr.New(engineerr.GtfsAlreadyConfigured, "SetupGTFS called twice")
	}
	g.Gtfs = model
	return nil
}
