package anim

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"route-animator/internal/camera"
	"route-animator/internal/geo"
	"route-animator/internal/path"
	"route-animator/internal/view"
)

var (
	ErrNoRoute    = errors.New("no route loaded")
	ErrRouteBusy  = errors.New("current route is still animating; stop it first")
	ErrStaleRoute = errors.New("route is no longer loaded")
)

// Frame is everything a renderer needs for one update.
type Frame struct {
	RouteID         path.RouteID    `json:"routeId"`
	Phase           Phase           `json:"phase"`
	Position        geo.Point       `json:"position"`
	Bearing         float64         `json:"bearing"`
	PathIndex       int             `json:"pathIndex"`
	DistanceMeters  float64         `json:"distanceMeters"`
	ProgressPercent float64         `json:"progressPercent"`
	ActiveMode      path.Mode       `json:"activeMode"`
	ModeChanged     bool            `json:"modeChanged"`
	Camera          *camera.Command `json:"camera,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Renderer draws frames. Clear removes everything drawn for a route
// (marker, trail, listeners) and is called once per Stop.
type Renderer interface {
	Render(f Frame)
	Clear(id path.RouteID)
}

// Observer receives engine events, typically for metrics.
type Observer interface {
	RouteLoaded(points int, totalMeters float64)
	FrameEmitted(f Frame)
	DeltaClamped()
	Seeked()
	RouteCompleted()
	TransitionRejected(op string)
}

// Player is the control surface the UI drives: it owns the loaded route,
// its Clock, the camera controller and the viewer settings.
type Player struct {
	renderer Renderer
	obs      Observer
	now      func() time.Time

	mode view.Mode
	zoom float64
	mult view.Multiplier

	path  *path.Dense
	clock *Clock
	cam   camera.Controller

	last     Frame
	hasFrame bool
}

// Option configures a Player.
type Option func(*Player)

// WithTimeSource sets the timestamp source for frames emitted outside
// Tick (seek, pause, mode switch). Defaults to time.Now.
func WithTimeSource(now func() time.Time) Option {
	return func(p *Player) { p.now = now }
}

// WithSettings sets the initial viewer settings.
func WithSettings(mode view.Mode, zoom float64, mult view.Multiplier) Option {
	return func(p *Player) {
		p.mode, p.zoom, p.mult = mode, zoom, mult
	}
}

// NewPlayer returns a Player with no route. r and obs may be nil.
func NewPlayer(r Renderer, obs Observer, opts ...Option) *Player {
	p := &Player{
		renderer: r,
		obs:      obs,
		now:      time.Now,
		mode:     view.Follow,
		zoom:     math.NaN(),
		mult:     view.Medium,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Player) ViewMode() view.Mode         { return p.mode }
func (p *Player) Zoom() float64               { return p.zoom }
func (p *Player) Multiplier() view.Multiplier { return p.mult }

// Route returns the loaded path, or nil.
func (p *Player) Route() *path.Dense { return p.path }

// Phase returns the clock phase, Idle when no route is loaded.
func (p *Player) Phase() Phase {
	if p.clock == nil {
		return Idle
	}
	return p.clock.Phase()
}

// LastFrame returns the most recently emitted frame.
func (p *Player) LastFrame() (Frame, bool) { return p.last, p.hasFrame }

// Load samples legs and installs them as the current route. Loading the
// same content again is a no-op. Loading different content while the
// current route is not Idle fails with ErrRouteBusy: callers must Stop
// first so no stale leg ranges are read against the new path.
func (p *Player) Load(legs []path.RawLeg) (path.RouteID, error) {
	id := path.IdentityOf(legs)
	if p.path != nil && p.path.ID() == id {
		return id, nil
	}
	if p.Phase() != Idle {
		return uuid.Nil, ErrRouteBusy
	}
	d, err := path.Sample(legs)
	if err != nil {
		return uuid.Nil, err
	}
	p.install(d)
	return id, nil
}

// LoadDense installs an already sampled path under the same rules as Load.
func (p *Player) LoadDense(d *path.Dense) error {
	if p.path != nil && p.path.ID() == d.ID() {
		return nil
	}
	if p.Phase() != Idle {
		return ErrRouteBusy
	}
	p.install(d)
	return nil
}

func (p *Player) install(d *path.Dense) {
	p.path = d
	p.clock = NewClock(d, p)
	p.cam.Reset()
	p.last, p.hasFrame = Frame{}, false
	if p.obs != nil {
		p.obs.RouteLoaded(d.Len(), d.Total())
	}
	log.Printf("loaded route %s: %d points, %.0fm, %d legs", d.ID(), d.Len(), d.Total(), len(d.Legs()))
}

// CheckRoute fails with ErrStaleRoute when id is set and is not the loaded
// route. uuid.Nil matches whatever is loaded.
func (p *Player) CheckRoute(id path.RouteID) error {
	if p.path == nil {
		return ErrNoRoute
	}
	if id != uuid.Nil && id != p.path.ID() {
		return fmt.Errorf("%w: %s", ErrStaleRoute, id)
	}
	return nil
}

func (p *Player) Play() (Frame, error) {
	return p.transition("play", (*Clock).Play)
}

func (p *Player) Pause() (Frame, error) {
	return p.transition("pause", (*Clock).Pause)
}

func (p *Player) Resume() (Frame, error) {
	return p.transition("resume", (*Clock).Resume)
}

// Seek jumps to percent and emits the frame for the new position
// immediately. A playing animation is paused.
func (p *Player) Seek(percent float64) (Frame, error) {
	f, err := p.transition("seek", func(c *Clock) (Snapshot, error) { return c.Seek(percent) })
	if err == nil && p.obs != nil {
		p.obs.Seeked()
	}
	return f, err
}

func (p *Player) transition(op string, fn func(*Clock) (Snapshot, error)) (Frame, error) {
	if p.clock == nil {
		return Frame{}, ErrNoRoute
	}
	s, err := fn(p.clock)
	if err != nil {
		if p.obs != nil && errors.Is(err, ErrInvalidTransition) {
			p.obs.TransitionRejected(op)
		}
		return Frame{}, err
	}
	p.cam.Reset()
	return p.emit(s, p.now()), nil
}

// Stop returns to Idle and clears the renderer. Calling it again, or with
// no route loaded, does nothing.
func (p *Player) Stop() {
	if p.clock == nil || !p.clock.Stop() {
		return
	}
	p.cam.Reset()
	p.last, p.hasFrame = Frame{}, false
	if p.renderer != nil {
		p.renderer.Clear(p.path.ID())
	}
	log.Printf("stopped route %s", p.path.ID())
}

// SetViewMode switches the camera mode. While an animation is active the
// camera command for the current distance is emitted right away.
func (p *Player) SetViewMode(m view.Mode) error {
	if m != view.Follow && m != view.WholeRoute {
		return fmt.Errorf("%w: %d", view.ErrUnknownMode, int(m))
	}
	p.mode = m
	p.cam.Reset()
	if p.clock != nil && p.clock.Phase() != Idle {
		p.emit(p.clock.Snapshot(), p.now())
	}
	return nil
}

func (p *Player) SetPlaybackMultiplier(m view.Multiplier) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %v", view.ErrUnknownMultiplier, float64(m))
	}
	p.mult = m
	return nil
}

// SetZoomLevel records the host camera's zoom. It is read on the next tick.
func (p *Player) SetZoomLevel(z float64) {
	p.zoom = z
}

// Tick advances the animation to now and emits a frame. It reports false
// and emits nothing unless Playing.
func (p *Player) Tick(now time.Time) (Frame, bool) {
	if p.clock == nil || p.clock.Phase() != Playing {
		return Frame{}, false
	}
	s := p.clock.Tick(now)
	if s.Clamped && p.obs != nil {
		p.obs.DeltaClamped()
	}
	f := p.emit(s, now)
	if s.Phase == Completed {
		if p.obs != nil {
			p.obs.RouteCompleted()
		}
		log.Printf("completed route %s", p.path.ID())
	}
	return f, true
}

func (p *Player) emit(s Snapshot, now time.Time) Frame {
	d := p.path
	idx := s.Position.PathIndex
	f := Frame{
		RouteID:         d.ID(),
		Phase:           s.Phase,
		Position:        s.Position.Point,
		Bearing:         s.Position.Bearing,
		PathIndex:       idx,
		DistanceMeters:  s.DistanceMeters,
		ProgressPercent: s.ProgressPercent,
		ActiveMode:      path.ModeAt(d, idx),
		ModeChanged:     p.hasFrame && path.DidCrossBoundary(p.last.PathIndex, idx, d),
		Timestamp:       now,
	}
	if cmd, ok := p.cam.Next(p.mode, s.Position.Point, d); ok {
		f.Camera = &cmd
	}
	p.last, p.hasFrame = f, true

	if p.renderer != nil {
		p.renderer.Render(f)
	}
	if p.obs != nil {
		p.obs.FrameEmitted(f)
	}
	return f
}
