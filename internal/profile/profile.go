// Package profile derives, per named travel mode, a (Direction, cost)
// pair for every road from its OSM tags and Euclidean length (spec §4.2).
package profile

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/passbi/transitengine/internal/geomutil"
)

// Direction says which way along a Road a profile may travel it.
type Direction int

const (
	None Direction = iota
	Forwards
	Backwards
	Both
)

func (d Direction) String() string {
	switch d {
	case Forwards:
		return "Forwards"
	case Backwards:
		return "Backwards"
	case Both:
		return "Both"
	default:
		return "None"
	}
}

// AllowsForwards reports whether d permits travel from src to dst.
func (d Direction) AllowsForwards() bool { return d == Forwards || d == Both }

// AllowsBackwards reports whether d permits travel from dst to src.
func (d Direction) AllowsBackwards() bool { return d == Backwards || d == Both }

// fromLanes combines a forward/backward lane permission pair into a
// Direction, per spec §4.2's truth table.
func fromLanes(forward, backward bool) Direction {
	switch {
	case forward && backward:
		return Both
	case forward && !backward:
		return Forwards
	case !forward && backward:
		return Backwards
	default:
		return None
	}
}

// permittedLaneAccess is the set of base access levels spec §4.2 treats as
// permitting a lane for a mode.
var permittedLaneAccess = map[string]bool{
	"designated":  true,
	"yes":         true,
	"permissive":  true,
	"discouraged": true,
	"destination": true,
	"customers":   true,
	"private":     true,
}

func isPermitted(level string) bool {
	if level == "" {
		return true
	}
	return permittedLaneAccess[strings.ToLower(level)]
}

// firstTag returns the value of the first present key in keys, or "".
func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := tags[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

func isOneway(tags map[string]string) (oneway bool, reversed bool) {
	v := strings.ToLower(tags["oneway"])
	switch v {
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return true, true
	default:
		return false, false
	}
}

var impassableHighway = map[string]bool{
	"proposed":     true,
	"construction": true,
	"abandoned":    true,
	"razed":        true,
	"no":           true,
	"platform":     true,
	"raceway":      true,
}

// Profile derives a (Direction, cost) pair for a road from its OSM tags
// and Mercator linestring (spec §4.2).
type Profile interface {
	Name() string
	Evaluate(tags map[string]string, linestring orb.LineString) (Direction, time.Duration)
}

// carProfile models motor-vehicle access: per-lane access/oneway decoding,
// cost = length / max_speed (km/h or "N mph", default 30 mph).
type carProfile struct{}

func (carProfile) Name() string { return "car" }

func (carProfile) Evaluate(tags map[string]string, ls orb.LineString) (Direction, time.Duration) {
	highway := strings.ToLower(tags["highway"])
	if highway == "" || impassableHighway[highway] {
		return None, 0
	}
	if nonMotor[highway] && firstTag(tags, "motor_vehicle", "motorcar", "vehicle", "access") == "" {
		return None, 0
	}

	level := firstTag(tags, "motor_vehicle", "motorcar", "vehicle", "access")
	if strings.EqualFold(level, "no") {
		return None, 0
	}
	permitted := isPermitted(level)

	forward, backward := permitted, permitted
	if oneway, reversed := isOneway(tags); oneway {
		if reversed {
			forward = false
		} else {
			backward = false
		}
	}

	direction := fromLanes(forward, backward)
	if direction == None {
		return None, 0
	}

	speedMPH := parseMaxSpeedMPH(tags["maxspeed"])
	length := geomutil.Length(ls)
	seconds := length / milesPerHourToMetersPerSecond(speedMPH)
	return direction, time.Duration(seconds * float64(time.Second))
}

// nonMotor lists highway values cars cannot use absent an explicit
// motor_vehicle/access override.
var nonMotor = map[string]bool{
	"footway":    true,
	"path":       true,
	"steps":      true,
	"pedestrian": true,
	"cycleway":   true,
	"bridleway":  true,
}

var mphPattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*mph\s*$`)

// parseMaxSpeedMPH parses an OSM maxspeed value into mph: a bare number is
// km/h converted to mph; "N mph" is taken directly; a missing or
// unparseable value falls back to 30 mph, and a parsed speed of zero or
// less becomes 1 mph.
func parseMaxSpeedMPH(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 30
	}
	if m := mphPattern.FindStringSubmatch(raw); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil && v > 0 {
			return v
		}
		return 1
	}
	kmh, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 30
	}
	mph := kmh / 1.609344
	if mph <= 0 {
		return 1
	}
	return mph
}

func milesPerHourToMetersPerSecond(mph float64) float64 {
	return mph * 0.44704
}

// WalkMetersPerSecond is the flat walking speed footProfile costs roads
// at, exported for the A* heuristic (spec §4.8), which needs the same
// constant the foot profile's own cost function uses.
var WalkMetersPerSecond = milesPerHourToMetersPerSecond(3)

// bicycleProfile: access from tags, flat 10 mph cost.
type bicycleProfile struct{}

func (bicycleProfile) Name() string { return "bicycle" }

func (bicycleProfile) Evaluate(tags map[string]string, ls orb.LineString) (Direction, time.Duration) {
	highway := strings.ToLower(tags["highway"])
	if highway == "" || impassableHighway[highway] {
		return None, 0
	}
	if (highway == "motorway" || highway == "motorway_link" || highway == "steps") &&
		!strings.EqualFold(firstTag(tags, "bicycle"), "yes") {
		return None, 0
	}

	level := firstTag(tags, "bicycle", "vehicle", "access")
	if strings.EqualFold(level, "no") {
		return None, 0
	}
	permitted := isPermitted(level)

	forward, backward := permitted, permitted
	if oneway, reversed := isOneway(tags); oneway && !strings.EqualFold(tags["oneway:bicycle"], "no") {
		if reversed {
			forward = false
		} else {
			backward = false
		}
	}

	direction := fromLanes(forward, backward)
	if direction == None {
		return None, 0
	}
	return direction, costAtConstantSpeed(ls, 10)
}

// footProfile: access from tags, flat 3 mph cost. Vehicle oneway tags are
// ignored; only oneway:foot=yes or -1 makes a road Forwards or Backwards.
type footProfile struct{}

func (footProfile) Name() string { return "foot" }

func (footProfile) Evaluate(tags map[string]string, ls orb.LineString) (Direction, time.Duration) {
	highway := strings.ToLower(tags["highway"])
	if highway == "" || impassableHighway[highway] {
		return None, 0
	}
	if (highway == "motorway" || highway == "motorway_link" || highway == "trunk") &&
		!strings.EqualFold(firstTag(tags, "foot"), "yes") {
		return None, 0
	}
	if highway == "cycleway" && !strings.EqualFold(firstTag(tags, "foot"), "yes") {
		return None, 0
	}

	level := firstTag(tags, "foot", "access")
	if strings.EqualFold(level, "no") {
		return None, 0
	}
	if !isPermitted(level) {
		return None, 0
	}

	onewayFoot := strings.ToLower(tags["oneway:foot"])
	if onewayFoot == "yes" {
		return Forwards, costAtConstantSpeed(ls, 3)
	}
	if onewayFoot == "-1" {
		return Backwards, costAtConstantSpeed(ls, 3)
	}
	return Both, costAtConstantSpeed(ls, 3)
}

func costAtConstantSpeed(ls orb.LineString, mph float64) time.Duration {
	length := geomutil.Length(ls)
	seconds := length / milesPerHourToMetersPerSecond(mph)
	return time.Duration(seconds * float64(time.Second))
}

// registry is the named set of built-in profiles, mirroring how the
// teacher registers its named routing strategies.
var registry = map[string]Profile{
	"car":     carProfile{},
	"bicycle": bicycleProfile{},
	"foot":    footProfile{},
}

// Get returns the named profile and whether it is registered.
func Get(name string) (Profile, bool) {
	p, ok := registry[name]
	return p, ok
}

// All returns every registered profile in a stable order (car, bicycle,
// foot), which callers use to assign dense ProfileIDs.
func All() []Profile {
	return []Profile{registry["car"], registry["bicycle"], registry["foot"]}
}

// Names returns the registered profile names in All's order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name()
	}
	return names
}

// Accepted reports whether at least one registered profile assigns
// non-None access to tags, the last clause of the OSM Lift way-acceptance
// predicate (spec §4.1).
func Accepted(tags map[string]string, ls orb.LineString) bool {
	for _, p := range All() {
		d, _ := p.Evaluate(tags, ls)
		if d != None {
			return true
		}
	}
	return false
}
