// Package path turns routed legs into an animation-ready dense path with
// an arc-length table, and answers position and leg lookups against it.
package path

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/google/uuid"

	"route-animator/internal/geo"
)

var (
	ErrEmptyRoute      = errors.New("route has no leg with at least two points")
	ErrDegenerateRoute = errors.New("route has zero length")
	ErrInvalidLeg      = errors.New("invalid route leg")
)

// Mode tags a leg with how it is travelled (walk, car, bus, ...).
type Mode string

// RawLeg is one routed origin->destination hop as produced by the routing
// provider.
type RawLeg struct {
	Mode   Mode        `json:"mode" yaml:"mode" validate:"required"`
	Points []geo.Point `json:"points" yaml:"points" validate:"dive"`
}

// LegRange is the half-open index range [Start, End) of a leg in a Dense path.
type LegRange struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Mode  Mode `json:"mode"`
}

// Len returns the number of points in the range.
func (r LegRange) Len() int { return r.End - r.Start }

// RouteID identifies a route by its content.
type RouteID = uuid.UUID

// routeNamespace seeds the name-based route identifiers.
var routeNamespace = uuid.MustParse("6f2b9d0e-3c1a-5e4b-9a77-0d5c8e2f41a3")

// Dense is the sampler output. It is immutable once built; accessors
// return the backing slices, which callers must not modify.
type Dense struct {
	id     RouteID
	points []geo.Point
	cum    []float64
	legs   []LegRange
	bounds geo.Bounds
}

func (d *Dense) ID() RouteID           { return d.id }
func (d *Dense) Points() []geo.Point   { return d.points }
func (d *Dense) Cumulative() []float64 { return d.cum }
func (d *Dense) Legs() []LegRange      { return d.legs }
func (d *Dense) Bounds() geo.Bounds    { return d.bounds }
func (d *Dense) Len() int              { return len(d.points) }
func (d *Dense) Point(i int) geo.Point { return d.points[i] }

// Total returns the path length in meters.
func (d *Dense) Total() float64 { return d.cum[len(d.cum)-1] }

// IdentityOf derives the content identity of a set of legs. Legs that
// differ in mode, point order or any coordinate get different ids.
func IdentityOf(legs []RawLeg) RouteID {
	var buf []byte
	var scratch [8]byte
	for _, l := range legs {
		buf = append(buf, l.Mode...)
		buf = append(buf, 0)
		binary.LittleEndian.PutUint64(scratch[:], uint64(len(l.Points)))
		buf = append(buf, scratch[:]...)
		for _, p := range l.Points {
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(p.Lat))
			buf = append(buf, scratch[:]...)
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(p.Lng))
			buf = append(buf, scratch[:]...)
		}
	}
	return uuid.NewSHA1(routeNamespace, buf)
}
