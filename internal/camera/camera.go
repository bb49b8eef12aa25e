// Package camera derives the viewport command a renderer applies for the
// current marker position.
package camera

import (
	"fmt"

	"route-animator/internal/geo"
	"route-animator/internal/path"
	"route-animator/internal/view"
)

// Kind distinguishes the two command shapes.
type Kind int

const (
	// Center keeps the marker centered at a fixed zoom.
	Center Kind = iota
	// Fit frames a bounding box.
	Fit
)

func (k Kind) String() string {
	if k == Fit {
		return "fit"
	}
	return "center"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "center":
		*k = Center
	case "fit":
		*k = Fit
	default:
		return fmt.Errorf("unknown camera command kind %q", b)
	}
	return nil
}

// Command is either {Center, Zoom} or {Bounds}, selected by Kind.
type Command struct {
	Kind   Kind        `json:"kind"`
	Center *geo.Point  `json:"center,omitempty"`
	Zoom   float64     `json:"zoom,omitempty"`
	Bounds *geo.Bounds `json:"bounds,omitempty"`
}

// For returns the command for mode at pos. Follow mode centers on pos at
// a zoom bucketed by route length, so the camera does not re-zoom every
// frame; whole-route mode frames the path's bounding box.
func For(mode view.Mode, pos geo.Point, d *path.Dense) Command {
	if mode == view.WholeRoute {
		b := d.Bounds()
		return Command{Kind: Fit, Bounds: &b}
	}
	return Command{Kind: Center, Center: &pos, Zoom: view.ZoomForRouteLength(d.Total())}
}

// Controller emits camera commands frame by frame. A Fit command is only
// emitted once per route until the mode changes or Reset is called; a
// Center command is emitted every frame.
type Controller struct {
	fitRoute path.RouteID
	fitSent  bool
}

// Next returns the command for this frame and whether it must be sent.
func (c *Controller) Next(mode view.Mode, pos geo.Point, d *path.Dense) (Command, bool) {
	if mode == view.WholeRoute {
		if c.fitSent && c.fitRoute == d.ID() {
			return Command{}, false
		}
		c.fitSent, c.fitRoute = true, d.ID()
		return For(mode, pos, d), true
	}
	c.fitSent = false
	return For(mode, pos, d), true
}

// Reset forces the next call to Next to emit.
func (c *Controller) Reset() {
	c.fitSent = false
}
