// Package routesource reads already-routed legs from files. It does no
// routing or geocoding of its own.
package routesource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"
	"gopkg.in/yaml.v3"

	"route-animator/internal/geo"
	"route-animator/internal/path"
)

const (
	DefaultGeoJSONMode path.Mode = "car"
	DefaultGPXMode     path.Mode = "walk"
)

var ErrUnsupportedFormat = errors.New("unsupported route file format")

// Format names a route file encoding.
type Format string

const (
	GeoJSON Format = "geojson"
	GPX     Format = "gpx"
	YAML    Format = "yaml"
)

// FormatOf picks the format from a file extension.
func FormatOf(file string) (Format, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".geojson", ".json":
		return GeoJSON, nil
	case ".gpx":
		return GPX, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(file))
}

// LoadFile reads and parses a route file.
func LoadFile(file string) ([]path.RawLeg, error) {
	f, err := FormatOf(file)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read route file: %w", err)
	}
	legs, err := Parse(f, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return legs, nil
}

// Parse decodes b in format f. Validation of coordinates and modes is left
// to path.Sample.
func Parse(f Format, b []byte) ([]path.RawLeg, error) {
	switch f {
	case GeoJSON:
		return ParseGeoJSON(b)
	case GPX:
		return ParseGPX(b)
	case YAML:
		return ParseYAML(b)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
}

// ParseGeoJSON reads a FeatureCollection. Each LineString or
// MultiLineString feature is one leg, its "mode" property the leg's
// transport mode. Other geometries are ignored.
func ParseGeoJSON(b []byte) ([]path.RawLeg, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	var legs []path.RawLeg
	for _, f := range fc.Features {
		var pts []geo.Point
		switch g := f.Geometry.(type) {
		case orb.LineString:
			pts = lineString(pts, g)
		case orb.MultiLineString:
			for _, ls := range g {
				pts = lineString(pts, ls)
			}
		default:
			continue
		}
		mode := path.Mode(f.Properties.MustString("mode", string(DefaultGeoJSONMode)))
		legs = append(legs, path.RawLeg{Mode: mode, Points: pts})
	}
	return legs, nil
}

func lineString(dst []geo.Point, ls orb.LineString) []geo.Point {
	for _, p := range ls {
		dst = append(dst, geo.Point{Lat: p.Lat(), Lng: p.Lon()})
	}
	return dst
}

// ParseGPX reads tracks as legs, concatenating each track's segments. The
// track <type> is the mode. A file without tracks falls back to its
// routes, one leg each.
func ParseGPX(b []byte) ([]path.RawLeg, error) {
	g, err := gpx.ParseBytes(b)
	if err != nil {
		return nil, fmt.Errorf("decode gpx: %w", err)
	}
	var legs []path.RawLeg
	for _, trk := range g.Tracks {
		leg := path.RawLeg{Mode: gpxMode(trk.Type)}
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				leg.Points = append(leg.Points, geo.Point{Lat: p.Latitude, Lng: p.Longitude})
			}
		}
		legs = append(legs, leg)
	}
	if len(legs) > 0 {
		return legs, nil
	}
	for _, rte := range g.Routes {
		leg := path.RawLeg{Mode: DefaultGPXMode}
		for _, p := range rte.Points {
			leg.Points = append(leg.Points, geo.Point{Lat: p.Latitude, Lng: p.Longitude})
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

func gpxMode(t string) path.Mode {
	if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
		return path.Mode(t)
	}
	return DefaultGPXMode
}

type yamlRoute struct {
	Legs []yamlLeg `yaml:"legs" json:"legs" validate:"required,min=1,dive"`
}

type yamlLeg struct {
	Mode   string      `yaml:"mode" json:"mode" validate:"required"`
	Points []geo.Point `yaml:"points" json:"points" validate:"required,dive"`
}

// ParseYAML reads `legs: [{mode, points: [{lat, lng}]}]`. JSON is a
// subset of YAML, so the same document shape is accepted as JSON.
func ParseYAML(b []byte) ([]path.RawLeg, error) {
	var r yamlRoute
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := geo.Validator().Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %v", path.ErrInvalidLeg, err)
	}
	legs := make([]path.RawLeg, len(r.Legs))
	for i, l := range r.Legs {
		legs[i] = path.RawLeg{Mode: path.Mode(l.Mode), Points: l.Points}
	}
	return legs, nil
}
