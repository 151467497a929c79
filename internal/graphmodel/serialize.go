package graphmodel

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"reflect"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/profile"
)

// tagPair is one OSMTags entry, used only to give Road's tag map a
// deterministic on-disk order.
type tagPair struct {
	K, V string
}

// roadGob is Road's on-disk shape. gob does not canonicalize map key
// order, so two encodes of the same Road with >=2 tags can disagree
// byte-for-byte; Tags is kept sorted by key to make encoding
// deterministic (spec §6 "must round-trip byte-identical").
type roadGob struct {
	SrcI, DstI   IntersectionID
	Linestring   orb.LineString
	LengthMeters float64
	Tags         []tagPair
	Access       []profile.Direction
	Cost         []time.Duration
	Stops        []StopID
}

// GobEncode sorts OSMTags by key before delegating to gob, so repeated
// encodes of an unchanged Road always produce the same bytes.
func (r Road) GobEncode() ([]byte, error) {
	tags := make([]tagPair, 0, len(r.OSMTags))
	for k, v := range r.OSMTags {
		tags = append(tags, tagPair{K: k, V: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].K < tags[j].K })

	var buf bytes.Buffer
	rg := roadGob{
		SrcI: r.SrcI, DstI: r.DstI,
		Linestring:   r.Linestring,
		LengthMeters: r.LengthMeters,
		Tags:         tags,
		Access:       r.Access,
		Cost:         r.Cost,
		Stops:        r.Stops,
	}
	if err := gob.NewEncoder(&buf).Encode(rg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode is GobEncode's inverse.
func (r *Road) GobDecode(data []byte) error {
	var rg roadGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rg); err != nil {
		return err
	}
	tags := make(map[string]string, len(rg.Tags))
	for _, tp := range rg.Tags {
		tags[tp.K] = tp.V
	}
	r.SrcI, r.DstI = rg.SrcI, rg.DstI
	r.Linestring = rg.Linestring
	r.LengthMeters = rg.LengthMeters
	r.OSMTags = tags
	r.Access = rg.Access
	r.Cost = rg.Cost
	r.Stops = rg.Stops
	return nil
}

// Save gob-encodes the graph, including its GTFS sub-model, to w. Per-profile
// routers and their contraction hierarchies are not part of the blob;
// callers rebuild them with internal/router after Load. Road's custom Gob(En|De)code methods keep this byte-identical
// across repeated encodes of an unchanged graph (spec §6).
func (g *Graph) Save(w io.Writer) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(g); err != nil {
		return engineerr.Wrap(engineerr.InputParse, "encoding graph", err)
	}
	return nil
}

// SaveFile writes Save's output to path.
func (g *Graph) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return engineerr.Wrap(engineerr.InputParse, "creating graph file", err)
	}
	defer f.Close()
	return g.Save(f)
}

// Load decodes a Graph previously written by Save. Per-profile routers
// are not part of this blob; callers rebuild them with internal/router
// after Load, which is cheap relative to re-lifting OSM.
func Load(r io.Reader) (*Graph, error) {
	var g Graph
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&g); err != nil {
		return nil, engineerr.Wrap(engineerr.InputParse, "decoding graph", err)
	}
	return &g, nil
}

// LoadFile reads Load's input from path.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.InputParse, "opening graph file", err)
	}
	defer f.Close()
	return Load(f)
}

// Equal reports whether g and other are structurally identical, the
// round-trip equality test spec §8 names. This compares values directly
// rather than re-encoded bytes, since byte comparison would be sensitive
// to incidental encoding choices rather than the graph's actual content.
func (g *Graph) Equal(other *Graph) (bool, error) {
	return reflect.DeepEqual(g, other), nil
}
