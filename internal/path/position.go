package path

import (
	"math"
	"sort"

	"route-animator/internal/geo"
)

// Position is a point on a Dense path addressed by distance.
type Position struct {
	Point geo.Point `json:"point"`
	// PathIndex is the lower bracketing index of the segment holding Point,
	// or the last index at the end of the path.
	PathIndex int `json:"pathIndex"`
	// Bearing is the initial bearing of the bracketing segment in degrees.
	Bearing float64 `json:"bearing"`
}

// PositionAtDistance returns the point meters along d. The distance is
// clamped to [0, Total]; the endpoints come back exactly as stored.
func PositionAtDistance(d *Dense, meters float64) Position {
	n := len(d.points)
	if math.IsNaN(meters) || meters <= 0 {
		return Position{Point: d.points[0], PathIndex: 0, Bearing: d.segmentBearing(0)}
	}
	if meters >= d.Total() {
		return Position{Point: d.points[n-1], PathIndex: n - 1, Bearing: d.segmentBearing(n - 2)}
	}

	// cum[0] = 0 <= meters < cum[n-1], so 1 <= j <= n-1.
	j := sort.Search(n, func(k int) bool { return d.cum[k] > meters })
	i := j - 1
	frac := (meters - d.cum[i]) / (d.cum[j] - d.cum[i])
	return Position{
		Point:     geo.Interpolate(d.points[i], d.points[j], frac),
		PathIndex: i,
		Bearing:   geo.Bearing(d.points[i], d.points[j]),
	}
}

// DistanceAtIndex returns the arc length at path index i, clamped to the
// valid index range.
func DistanceAtIndex(d *Dense, i int) float64 {
	if i <= 0 {
		return 0
	}
	if i >= len(d.cum) {
		return d.Total()
	}
	return d.cum[i]
}

func (d *Dense) segmentBearing(i int) float64 {
	if i < 0 || i+1 >= len(d.points) {
		return 0
	}
	return geo.Bearing(d.points[i], d.points[i+1])
}
