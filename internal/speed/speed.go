// Package speed picks how fast the marker moves along a route.
//
// A fixed real-world speed looks instantaneous on a cross-continental
// route and glacial on a city block, so the base speed is bucketed by the
// route length and then corrected for the camera zoom and the user's
// playback multiplier.
package speed

import (
	"math"

	"route-animator/internal/view"
)

// Bounds of the zoom correction factor.
const (
	MinZoomFactor = 0.3
	MaxZoomFactor = 5.0
)

// baseBuckets maps a route length upper bound (meters) to a base speed in m/s.
var baseBuckets = []struct {
	below float64
	mps   float64
}{
	{2_000, 60},
	{10_000, 250},
	{50_000, 1_000},
	{200_000, 4_000},
	{1_000_000, 15_000},
}

const longRouteSpeed = 60_000

// Base returns the unscaled speed for a route of total meters. Invalid
// totals (<= 0, NaN) get the slowest bucket so the result stays positive.
func Base(total float64) float64 {
	if math.IsNaN(total) || total <= 0 {
		return baseBuckets[0].mps
	}
	for _, b := range baseBuckets {
		if total < b.below {
			return b.mps
		}
	}
	return longRouteSpeed
}

// ZoomFactor returns 2^(neutral-zoom) clamped to [MinZoomFactor,
// MaxZoomFactor], where neutral is the follow zoom for the route length.
// Zooming in slows the ground speed, zooming out speeds it up.
func ZoomFactor(total, zoom float64) float64 {
	neutral := view.ZoomForRouteLength(total)
	z := view.ClampZoom(zoom, neutral)
	f := math.Exp2(neutral - z)
	return math.Max(MinZoomFactor, math.Min(MaxZoomFactor, f))
}

// MetersPerSecond returns the traversal speed for the current frame. It
// is pure and safe to call every tick with the latest zoom. Follow mode
// applies the zoom correction; whole-route mode keeps the base speed since
// the camera already frames the full route. Unknown multipliers count as
// view.Medium.
func MetersPerSecond(total float64, mode view.Mode, zoom float64, m view.Multiplier) float64 {
	v := Base(total)
	if mode == view.Follow {
		v *= ZoomFactor(total, zoom)
	}
	if !m.Valid() {
		m = view.Medium
	}
	return v * float64(m)
}
