// Package geo holds the geographic primitives shared by the animation
// engine: points, great-circle distance and bearing, geodesic
// interpolation, and bounding boxes.
package geo

import (
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// Bounds is a lat/lng bounding box.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

var validate = validator.New()

// Validator returns the shared validator instance. It caches struct
// metadata, so every package validates through this one.
func Validator() *validator.Validate { return validate }

// Validate reports whether p lies within the valid latitude/longitude range.
// NaN coordinates are rejected.
func (p Point) Validate() error {
	return validate.Struct(p)
}

// Orb converts p to an orb point (lng, lat order).
func (p Point) Orb() orb.Point { return orb.Point{p.Lng, p.Lat} }

// FromOrb converts an orb point back to a Point, wrapping the longitude
// into [-180, 180).
func FromOrb(o orb.Point) Point {
	return Point{Lat: o.Lat(), Lng: wrapLng(o.Lon())}
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb())
}

// Bearing returns the initial bearing from a to b in degrees, [0, 360).
func Bearing(a, b Point) float64 {
	brng := orbgeo.Bearing(a.Orb(), b.Orb())
	if brng < 0 {
		brng += 360
	}
	return brng
}

// Interpolate returns the point a fraction frac of the great-circle
// distance from a towards b. frac is clamped to [0, 1] and the endpoints
// are returned unmodified.
func Interpolate(a, b Point, frac float64) Point {
	if frac <= 0 {
		return a
	}
	if frac >= 1 {
		return b
	}
	d := Distance(a, b)
	if d == 0 {
		return a
	}
	return FromOrb(orbgeo.PointAtBearingAndDistance(a.Orb(), orbgeo.Bearing(a.Orb(), b.Orb()), d*frac))
}

// BoundsOf returns the bounding box of pts. An empty slice yields the zero
// box. When the points sit closer together across the antimeridian than
// across Greenwich the box wraps: MinLng is east of 0 and MaxLng west of it.
func BoundsOf(pts []Point) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	mp := make(orb.MultiPoint, len(pts))
	shifted := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		mp[i] = p.Orb()
		shifted[i] = p.Orb()
		if p.Lng < 0 {
			shifted[i][0] += 360
		}
	}
	b := mp.Bound()
	if b.Max.Lon()-b.Min.Lon() > 180 {
		if s := shifted.Bound(); s.Max.Lon()-s.Min.Lon() < b.Max.Lon()-b.Min.Lon() {
			return Bounds{MinLat: s.Min.Lat(), MinLng: wrapLng(s.Min.Lon()), MaxLat: s.Max.Lat(), MaxLng: wrapLng(s.Max.Lon())}
		}
	}
	return Bounds{MinLat: b.Min.Lat(), MinLng: b.Min.Lon(), MaxLat: b.Max.Lat(), MaxLng: b.Max.Lon()}
}

// Wraps reports whether the box crosses the antimeridian.
func (b Bounds) Wraps() bool { return b.MinLng > b.MaxLng }

// Center returns the midpoint of the box in lat/lng space.
func (b Bounds) Center() Point {
	maxLng := b.MaxLng
	if b.Wraps() {
		maxLng += 360
	}
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lng: wrapLng((b.MinLng + maxLng) / 2)}
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.Wraps() {
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

func wrapLng(lng float64) float64 {
	if lng >= -180 && lng < 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}
