package path

import (
	"fmt"
	"log"
	"math"

	"route-animator/internal/geo"
)

const (
	// minSpacingMeters keeps very short routes from being split into
	// sub-meter slivers.
	minSpacingMeters = 1.0
	// maxInsertPerGap caps the interpolants added to a single raw edge.
	maxInsertPerGap = 64
	// shortRouteBudget is the point budget for routes under 10 km.
	shortRouteBudget = 3000
)

// pointBudgets maps a minimum route length (meters) to the number of
// points the sampler aims to stay under.
var pointBudgets = []struct {
	atLeast float64
	points  int
}{
	{1_000_000, 400},
	{100_000, 800},
	{10_000, 1500},
}

// PointBudget returns the target point count for a route of the given
// length. The sampler output never exceeds PointBudget(total) plus two
// points per mode change and one more, however many legs the route has.
func PointBudget(total float64) int {
	for _, b := range pointBudgets {
		if total >= b.atLeast {
			return b.points
		}
	}
	return shortRouteBudget
}

// Spacing returns the target distance between consecutive emitted points.
// Half the budget goes to decimating dense raw input and half to filling
// long raw edges.
func Spacing(total float64) float64 {
	return math.Max(total/float64(PointBudget(total)/2), minSpacingMeters)
}

// Sample builds a Dense path from routed legs. Legs with fewer than two
// points are skipped and consecutive legs sharing a mode are merged into
// one range. It fails with ErrEmptyRoute when nothing usable
// remains, ErrDegenerateRoute when all points coincide, and ErrInvalidLeg
// on out-of-range coordinates.
func Sample(legs []RawLeg) (*Dense, error) {
	usable := make([]RawLeg, 0, len(legs))
	for i, l := range legs {
		if err := geo.Validator().Struct(l); err != nil {
			return nil, fmt.Errorf("%w: leg %d: %v", ErrInvalidLeg, i, err)
		}
		if len(l.Points) < 2 {
			log.Printf("skipping leg %d (%s): %d point(s)", i, l.Mode, len(l.Points))
			continue
		}
		usable = append(usable, l)
	}
	if len(usable) == 0 {
		return nil, ErrEmptyRoute
	}

	total := rawLength(usable)
	if math.Round(total) == 0 {
		return nil, ErrDegenerateRoute
	}

	s := &sampler{spacing: Spacing(total)}
	for _, l := range mergeModes(usable) {
		s.sampleLeg(l)
	}
	if math.Round(s.cum[len(s.cum)-1]) == 0 {
		return nil, ErrDegenerateRoute
	}

	return &Dense{
		id:     IdentityOf(legs),
		points: s.points,
		cum:    s.cum,
		legs:   s.legs,
		bounds: geo.BoundsOf(s.points),
	}, nil
}

// rawLength sums great-circle distances across every consecutive raw point,
// leg junctions included.
func rawLength(legs []RawLeg) float64 {
	total := 0.0
	var prev geo.Point
	have := false
	for _, l := range legs {
		for _, p := range l.Points {
			if have {
				total += geo.Distance(prev, p)
			}
			prev, have = p, true
		}
	}
	return total
}

// mergeModes joins runs of consecutive legs with the same mode, dropping
// the repeated junction point.
func mergeModes(legs []RawLeg) []RawLeg {
	out := make([]RawLeg, 0, len(legs))
	for _, l := range legs {
		if n := len(out); n > 0 && out[n-1].Mode == l.Mode {
			prev := &out[n-1]
			pts := l.Points
			if pts[0] == prev.Points[len(prev.Points)-1] {
				pts = pts[1:]
			}
			prev.Points = append(prev.Points, pts...)
			continue
		}
		out = append(out, RawLeg{Mode: l.Mode, Points: append([]geo.Point(nil), l.Points...)})
	}
	return out
}

type sampler struct {
	spacing float64
	points  []geo.Point
	cum     []float64
	legs    []LegRange
}

// sampleLeg emits the first and last raw point of the leg and every
// intermediate point reached after at least one spacing of along-path
// travel since the last emitted one. A first point equal to the previous
// leg's last one is not repeated; the range then starts at the leg's next
// emitted point, which exists because the last point is always emitted.
func (s *sampler) sampleLeg(l RawLeg) {
	start := len(s.points)
	last := len(l.Points) - 1
	acc := 0.0
	for i, p := range l.Points {
		if i > 0 {
			acc += geo.Distance(l.Points[i-1], p)
		}
		if i == 0 && start > 0 && p == s.points[start-1] {
			continue
		}
		if i == 0 || i == last || acc >= s.spacing {
			s.emit(p)
			acc = 0
		}
	}
	s.legs = append(s.legs, LegRange{Start: start, End: len(s.points), Mode: l.Mode})
}

// emit appends p, first filling the gap from the previous emitted point
// with evenly spaced geodesic interpolants when it is longer than spacing.
func (s *sampler) emit(p geo.Point) {
	if len(s.points) == 0 {
		s.points = append(s.points, p)
		s.cum = append(s.cum, 0)
		return
	}
	from := s.points[len(s.points)-1]
	if gap := geo.Distance(from, p); gap > s.spacing {
		n := int(math.Ceil(gap/s.spacing)) - 1
		if n > maxInsertPerGap {
			n = maxInsertPerGap
		}
		for k := 1; k <= n; k++ {
			s.push(geo.Interpolate(from, p, float64(k)/float64(n+1)))
		}
	}
	s.push(p)
}

func (s *sampler) push(p geo.Point) {
	prev := s.points[len(s.points)-1]
	s.cum = append(s.cum, s.cum[len(s.cum)-1]+geo.Distance(prev, p))
	s.points = append(s.points, p)
}
