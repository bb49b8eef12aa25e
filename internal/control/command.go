// Package control turns UI commands arriving over HTTP or NATS into calls
// on the animation Player. Commands never touch the Player directly: they
// are handed to a Dispatcher, which runs them on the goroutine that owns
// the Player.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/google/uuid"

	"route-animator/internal/anim"
	"route-animator/internal/geo"
	"route-animator/internal/path"
	"route-animator/internal/view"
)

var ErrBadCommand = errors.New("bad command")

type Op string

const (
	OpPlay   Op = "play"
	OpPause  Op = "pause"
	OpResume Op = "resume"
	OpStop   Op = "stop"
	OpSeek   Op = "seek"
	OpView   Op = "view"
	OpSpeed  Op = "speed"
	OpZoom   Op = "zoom"
	OpLoad   Op = "load"
	OpFrame  Op = "frame"
)

// Command is one UI action. RouteID, when set, must name the loaded route;
// it lets a UI that raced a route switch discover that its commands are
// stale.
type Command struct {
	Op      Op            `json:"op" validate:"required,oneof=play pause resume stop seek view speed zoom load frame"`
	RouteID string        `json:"routeId,omitempty" validate:"omitempty,uuid"`
	Percent *float64      `json:"percent,omitempty" validate:"required_if=Op seek"`
	Mode    string        `json:"mode,omitempty" validate:"required_if=Op view"`
	Speed   string        `json:"speed,omitempty" validate:"required_if=Op speed"`
	Zoom    *float64      `json:"zoom,omitempty" validate:"required_if=Op zoom"`
	Legs    []path.RawLeg `json:"legs,omitempty" validate:"required_if=Op load"`
}

// Result is the reply to a Command.
type Result struct {
	Phase   string      `json:"phase"`
	RouteID string      `json:"routeId,omitempty"`
	Frame   *anim.Frame `json:"frame,omitempty"`
}

// Dispatcher runs a command on the goroutine that owns the Player.
type Dispatcher interface {
	Do(ctx context.Context, cmd Command) (Result, error)
}

// Validate checks the command shape. It does not look at Player state.
func (c Command) Validate() error {
	if err := geo.Validator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	return nil
}

// Apply validates c and executes it against p. It must only be called from
// the goroutine that owns p.
func (c Command) Apply(p *anim.Player) (Result, error) {
	if err := c.Validate(); err != nil {
		return c.result(p, nil), err
	}
	if c.RouteID != "" && c.Op != OpLoad {
		if err := p.CheckRoute(uuid.MustParse(c.RouteID)); err != nil {
			return c.result(p, nil), err
		}
	}

	var (
		f   anim.Frame
		err error
	)
	switch c.Op {
	case OpPlay:
		f, err = p.Play()
	case OpPause:
		f, err = p.Pause()
	case OpResume:
		f, err = p.Resume()
	case OpSeek:
		f, err = p.Seek(*c.Percent)
	case OpStop:
		p.Stop()
		return c.result(p, nil), nil
	case OpView:
		var m view.Mode
		if m, err = view.ParseMode(c.Mode); err == nil {
			err = p.SetViewMode(m)
		}
		return c.result(p, nil), err
	case OpSpeed:
		var m view.Multiplier
		if m, err = view.ParseMultiplier(c.Speed); err == nil {
			err = p.SetPlaybackMultiplier(m)
		}
		return c.result(p, nil), err
	case OpZoom:
		p.SetZoomLevel(view.ClampZoom(*c.Zoom, math.NaN()))
		return c.result(p, nil), nil
	case OpLoad:
		_, err = p.Load(c.Legs)
		return c.result(p, nil), err
	case OpFrame:
		if last, ok := p.LastFrame(); ok {
			return c.result(p, &last), nil
		}
		return c.result(p, nil), nil
	}
	if err != nil {
		return c.result(p, nil), err
	}
	return c.result(p, &f), nil
}

func (c Command) result(p *anim.Player, f *anim.Frame) Result {
	r := Result{Phase: p.Phase().String(), Frame: f}
	if d := p.Route(); d != nil {
		r.RouteID = d.ID().String()
	}
	return r
}

// StatusFor maps an Apply error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, anim.ErrStaleRoute):
		return http.StatusGone
	case errors.Is(err, anim.ErrInvalidTransition),
		errors.Is(err, anim.ErrRouteBusy),
		errors.Is(err, anim.ErrNoRoute):
		return http.StatusConflict
	case errors.Is(err, ErrBadCommand),
		errors.Is(err, anim.ErrInvalidProgress),
		errors.Is(err, view.ErrUnknownMode),
		errors.Is(err, view.ErrUnknownMultiplier),
		errors.Is(err, path.ErrInvalidLeg),
		errors.Is(err, path.ErrEmptyRoute),
		errors.Is(err, path.ErrDegenerateRoute):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Reply is the wire form of a command outcome on NATS.
type Reply struct {
	Result
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HandleMessage decodes a JSON command, dispatches it and encodes the
// reply. It is the NATS control subscription handler.
func HandleMessage(ctx context.Context, d Dispatcher, data []byte) []byte {
	var cmd Command
	var rep Reply
	if err := json.Unmarshal(data, &cmd); err != nil {
		rep.Status, rep.Error = http.StatusBadRequest, fmt.Sprintf("%v: %v", ErrBadCommand, err)
	} else {
		res, err := d.Do(ctx, cmd)
		rep.Result, rep.Status = res, StatusFor(err)
		if err != nil {
			rep.Error = err.Error()
		}
	}
	b, _ := json.Marshal(rep)
	return b
}
