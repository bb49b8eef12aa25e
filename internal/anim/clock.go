// Package anim drives a marker along a dense path.
//
// Clock is the frame-driven integrator: the host calls Tick(now) once per
// rendered frame and the clock advances the distance traveled by
// speed × Δt. Player wraps a Clock with the camera controller, the leg
// tracker and the viewer settings and emits one Frame per update.
//
// Nothing in this package blocks or locks. A Clock or Player belongs to a
// single goroutine; hosts serialise commands into that goroutine.
package anim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"route-animator/internal/path"
	"route-animator/internal/speed"
	"route-animator/internal/view"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidProgress   = errors.New("invalid progress percent")
)

const (
	// NominalFrame is the Δt applied in place of an oversized one.
	NominalFrame = time.Second / 60
	// MaxFrameDelta is the largest Δt integrated as-is. Anything longer
	// means the host was suspended (backgrounded tab, stopped process).
	MaxFrameDelta = 200 * time.Millisecond
)

// Phase is the animation lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Playing
	Paused
	Completed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for _, v := range []Phase{Idle, Playing, Paused, Completed} {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// TransitionError reports a clock operation called in a phase that does
// not allow it. It unwraps to ErrInvalidTransition.
type TransitionError struct {
	Op   string
	From Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: cannot %s while %s", ErrInvalidTransition, e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Settings supplies the viewer state the speed model reads every tick.
type Settings interface {
	ViewMode() view.Mode
	Zoom() float64
	Multiplier() view.Multiplier
}

// StaticSettings is a fixed Settings value.
type StaticSettings struct {
	Mode      view.Mode
	ZoomLevel float64
	Speed     view.Multiplier
}

func (s StaticSettings) ViewMode() view.Mode         { return s.Mode }
func (s StaticSettings) Zoom() float64               { return s.ZoomLevel }
func (s StaticSettings) Multiplier() view.Multiplier { return s.Speed }

// State is the clock's mutable state. LastTick is nil until the first
// tick after a (re)start so that tick integrates Δt = 0.
type State struct {
	Phase          Phase
	DistanceMeters float64
	LastTick       *time.Time
}

// Snapshot is what the clock reports after each operation.
type Snapshot struct {
	Phase           Phase
	DistanceMeters  float64
	ProgressPercent float64
	Position        path.Position
	// Clamped is set when the tick's Δt exceeded MaxFrameDelta and was
	// replaced by NominalFrame.
	Clamped bool
}

// Clock integrates distance traveled along one Dense path.
type Clock struct {
	path     *path.Dense
	settings Settings
	state    State
}

// NewClock returns an Idle clock over d. A nil s uses follow mode at the
// neutral zoom and medium speed.
func NewClock(d *path.Dense, s Settings) *Clock {
	if s == nil {
		s = StaticSettings{Mode: view.Follow, ZoomLevel: math.NaN(), Speed: view.Medium}
	}
	return &Clock{path: d, settings: s}
}

func (c *Clock) Path() *path.Dense { return c.path }
func (c *Clock) Phase() Phase      { return c.state.Phase }

// State returns a copy of the clock state.
func (c *Clock) State() State {
	s := c.state
	if s.LastTick != nil {
		t := *s.LastTick
		s.LastTick = &t
	}
	return s
}

// Progress returns the distance traveled as a percentage of the route.
func (c *Clock) Progress() float64 {
	return c.state.DistanceMeters / c.path.Total() * 100
}

// Snapshot reports the current state without advancing.
func (c *Clock) Snapshot() Snapshot {
	return Snapshot{
		Phase:           c.state.Phase,
		DistanceMeters:  c.state.DistanceMeters,
		ProgressPercent: c.Progress(),
		Position:        path.PositionAtDistance(c.path, c.state.DistanceMeters),
	}
}

// Play starts from the beginning. Allowed from Idle and Completed.
func (c *Clock) Play() (Snapshot, error) {
	if c.state.Phase != Idle && c.state.Phase != Completed {
		return Snapshot{}, &TransitionError{Op: "play", From: c.state.Phase}
	}
	c.state = State{Phase: Playing}
	return c.Snapshot(), nil
}

// Pause freezes the distance. Allowed from Playing.
func (c *Clock) Pause() (Snapshot, error) {
	if c.state.Phase != Playing {
		return Snapshot{}, &TransitionError{Op: "pause", From: c.state.Phase}
	}
	c.state.Phase = Paused
	c.state.LastTick = nil
	return c.Snapshot(), nil
}

// Resume continues from the paused distance. Allowed from Paused. The
// paused interval is never integrated: the next tick starts with Δt = 0.
func (c *Clock) Resume() (Snapshot, error) {
	if c.state.Phase != Paused {
		return Snapshot{}, &TransitionError{Op: "resume", From: c.state.Phase}
	}
	c.state.Phase = Playing
	c.state.LastTick = nil
	return c.Snapshot(), nil
}

// Seek jumps to percent of the route (clamped to [0, 100]) and leaves the
// clock Paused so that scrubbing never fights the integrator. Allowed from
// Playing, Paused and Completed.
func (c *Clock) Seek(percent float64) (Snapshot, error) {
	if math.IsNaN(percent) {
		return Snapshot{}, fmt.Errorf("%w: NaN", ErrInvalidProgress)
	}
	switch c.state.Phase {
	case Playing, Paused, Completed:
	default:
		return Snapshot{}, &TransitionError{Op: "seek", From: c.state.Phase}
	}
	percent = math.Max(0, math.Min(100, percent))
	c.state = State{Phase: Paused, DistanceMeters: percent / 100 * c.path.Total()}
	return c.Snapshot(), nil
}

// Stop returns the clock to Idle at distance 0. It is safe from any phase
// and reports whether anything changed; a second call is a no-op.
func (c *Clock) Stop() bool {
	if c.state.Phase == Idle {
		return false
	}
	c.state = State{}
	return true
}

// Tick advances the clock to now. It does nothing unless Playing. Δt is
// zero on the first tick after Play/Resume, negative Δt counts as zero,
// and Δt above MaxFrameDelta is replaced by NominalFrame.
func (c *Clock) Tick(now time.Time) Snapshot {
	if c.state.Phase != Playing {
		return c.Snapshot()
	}

	var dt time.Duration
	clamped := false
	if c.state.LastTick != nil {
		dt = now.Sub(*c.state.LastTick)
		switch {
		case dt < 0:
			dt = 0
		case dt > MaxFrameDelta:
			dt = NominalFrame
			clamped = true
		}
	}
	c.state.LastTick = &now

	total := c.path.Total()
	v := speed.MetersPerSecond(total, c.settings.ViewMode(), c.settings.Zoom(), c.settings.Multiplier())
	d := c.state.DistanceMeters + v*dt.Seconds()
	if d >= total {
		d = total
		c.state.Phase = Completed
		c.state.LastTick = nil
	}
	c.state.DistanceMeters = math.Max(0, d)

	s := c.Snapshot()
	s.Clamped = clamped
	return s
}
