package path

import "sort"

// LegAt returns the index into d.Legs() of the leg holding path index idx.
// Out-of-range indices clamp to the first or last leg.
func LegAt(d *Dense, idx int) int {
	if idx <= 0 {
		return 0
	}
	if idx >= len(d.points) {
		return len(d.legs) - 1
	}
	return sort.Search(len(d.legs), func(k int) bool { return d.legs[k].End > idx })
}

// ModeAt returns the transport mode of the leg holding path index idx.
func ModeAt(d *Dense, idx int) Mode {
	return d.legs[LegAt(d, idx)].Mode
}

// DidCrossBoundary reports whether moving from prev to next changes the
// active transport mode. Consecutive legs sharing a mode do not count, so
// a marker icon is only swapped on a real transition.
func DidCrossBoundary(prev, next int, d *Dense) bool {
	return ModeAt(d, prev) != ModeAt(d, next)
}
