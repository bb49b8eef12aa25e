// Package view defines the viewer-side settings the engine reads each
// frame: camera mode, playback multiplier and the zoom scale. The host
// owns and mutates them; the engine only reads.
package view

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnknownMode       = errors.New("unknown view mode")
	ErrUnknownMultiplier = errors.New("unknown playback multiplier")
)

// Mode selects the camera behaviour.
type Mode int

const (
	Follow Mode = iota
	WholeRoute
)

func (m Mode) String() string {
	switch m {
	case Follow:
		return "follow"
	case WholeRoute:
		return "whole"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode accepts "follow" and "whole" (also "whole-route", "wholeroute", "fit").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "follow":
		return Follow, nil
	case "whole", "whole-route", "whole_route", "wholeroute", "fit":
		return WholeRoute, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if m != Follow && m != WholeRoute {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Multiplier scales the traversal speed chosen by the speed model.
type Multiplier float64

const (
	Slow   Multiplier = 0.5
	Medium Multiplier = 1.0
	Fast   Multiplier = 2.0
)

// Valid reports whether m is one of the three selectable multipliers.
func (m Multiplier) Valid() bool {
	return m == Slow || m == Medium || m == Fast
}

func (m Multiplier) String() string {
	switch m {
	case Slow:
		return "slow"
	case Medium:
		return "medium"
	case Fast:
		return "fast"
	default:
		return strconv.FormatFloat(float64(m), 'g', -1, 64) + "x"
	}
}

// ParseMultiplier accepts the names slow/medium/fast, "normal", and the
// numeric forms 0.5, 1 and 2 (an optional trailing "x" is allowed).
func ParseMultiplier(s string) (Multiplier, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "slow":
		return Slow, nil
	case "medium", "normal":
		return Medium, nil
	case "fast":
		return Fast, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64)
	if err == nil && Multiplier(f).Valid() {
		return Multiplier(f), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMultiplier, s)
}

func (m Multiplier) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMultiplier, float64(m))
	}
	return []byte(m.String()), nil
}

func (m *Multiplier) UnmarshalText(b []byte) error {
	v, err := ParseMultiplier(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Web-mercator zoom range accepted from the host camera.
const (
	MinZoom = 0.0
	MaxZoom = 22.0
)

// ClampZoom limits z to [MinZoom, MaxZoom]. NaN maps to fallback.
func ClampZoom(z, fallback float64) float64 {
	if math.IsNaN(z) {
		return fallback
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// zoomBuckets maps a route length upper bound (meters) to the zoom level a
// follow camera uses for it.
var zoomBuckets = []struct {
	below float64
	zoom  float64
}{
	{1_000, 16},
	{5_000, 15},
	{20_000, 13},
	{100_000, 11},
	{500_000, 9},
	{2_000_000, 7},
}

// ZoomForRouteLength returns the follow-camera zoom for a route of the
// given total length. Shorter routes get tighter zoom.
func ZoomForRouteLength(meters float64) float64 {
	for _, b := range zoomBuckets {
		if meters < b.below {
			return b.zoom
		}
	}
	return 5
}
