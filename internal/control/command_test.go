package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"route-animator/internal/anim"
	"route-animator/internal/geo"
	"route-animator/internal/path"
	"route-animator/internal/view"
)

// direct runs commands inline; tests own the Player on one goroutine.
type direct struct{ p *anim.Player }

func (d direct) Do(_ context.Context, cmd Command) (Result, error) { return cmd.Apply(d.p) }

func legs() []path.RawLeg {
	return []path.RawLeg{
		{Mode: "walk", Points: []geo.Point{{Lat: 40.4168, Lng: -3.7038}, {Lat: 40.4180, Lng: -3.7000}}},
		{Mode: "bus", Points: []geo.Point{{Lat: 40.4180, Lng: -3.7000}, {Lat: 40.4300, Lng: -3.6900}}},
	}
}

func loadedPlayer(t *testing.T) *anim.Player {
	t.Helper()
	p := anim.NewPlayer(nil, nil)
	if _, err := p.Load(legs()); err != nil {
		t.Fatal(err)
	}
	return p
}

func ptr(f float64) *float64 { return &f }

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		ok   bool
	}{
		{"play", Command{Op: OpPlay}, true},
		{"unknown op", Command{Op: "rewind"}, false},
		{"empty op", Command{}, false},
		{"seek without percent", Command{Op: OpSeek}, false},
		{"seek", Command{Op: OpSeek, Percent: ptr(10)}, true},
		{"view without mode", Command{Op: OpView}, false},
		{"speed without speed", Command{Op: OpSpeed}, false},
		{"zoom without zoom", Command{Op: OpZoom}, false},
		{"load without legs", Command{Op: OpLoad}, false},
		{"bad route id", Command{Op: OpPlay, RouteID: "route-1"}, false},
		{"route id", Command{Op: OpPlay, RouteID: uuid.NewString()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrBadCommand) {
				t.Fatalf("expected ErrBadCommand, got %v", err)
			}
		})
	}
}

func TestApplyLifecycle(t *testing.T) {
	p := loadedPlayer(t)

	res, err := Command{Op: OpPlay}.Apply(p)
	if err != nil || res.Phase != "playing" || res.Frame == nil {
		t.Fatalf("play: %+v %v", res, err)
	}
	if res.RouteID != p.Route().ID().String() {
		t.Fatalf("route id %q", res.RouteID)
	}

	res, err = Command{Op: OpSeek, Percent: ptr(50)}.Apply(p)
	if err != nil || res.Phase != "paused" || res.Frame.ProgressPercent != 50 {
		t.Fatalf("seek: %+v %v", res, err)
	}

	if _, err := (Command{Op: OpPause}).Apply(p); !errors.Is(err, anim.ErrInvalidTransition) {
		t.Fatalf("pause while paused: %v", err)
	}

	res, err = Command{Op: OpFrame}.Apply(p)
	if err != nil || res.Frame == nil || res.Frame.ProgressPercent != 50 {
		t.Fatalf("frame: %+v %v", res, err)
	}

	res, err = Command{Op: OpStop}.Apply(p)
	if err != nil || res.Phase != "idle" {
		t.Fatalf("stop: %+v %v", res, err)
	}
	if res, _ := (Command{Op: OpFrame}).Apply(p); res.Frame != nil {
		t.Fatal("no frame after stop")
	}
}

func TestApplySettings(t *testing.T) {
	p := loadedPlayer(t)
	if _, err := (Command{Op: OpView, Mode: "whole"}).Apply(p); err != nil || p.ViewMode() != view.WholeRoute {
		t.Fatalf("view: %v", err)
	}
	if _, err := (Command{Op: OpView, Mode: "orbit"}).Apply(p); !errors.Is(err, view.ErrUnknownMode) {
		t.Fatalf("bad view: %v", err)
	}
	if _, err := (Command{Op: OpSpeed, Speed: "2"}).Apply(p); err != nil || p.Multiplier() != view.Fast {
		t.Fatalf("speed: %v", err)
	}
	if _, err := (Command{Op: OpSpeed, Speed: "turbo"}).Apply(p); !errors.Is(err, view.ErrUnknownMultiplier) {
		t.Fatalf("bad speed: %v", err)
	}
	if _, err := (Command{Op: OpZoom, Zoom: ptr(40)}).Apply(p); err != nil || p.Zoom() != view.MaxZoom {
		t.Fatalf("zoom clamps: %v %v", err, p.Zoom())
	}
}

func TestApplyRouteGuards(t *testing.T) {
	p := loadedPlayer(t)
	current := p.Route().ID().String()

	if _, err := (Command{Op: OpPlay, RouteID: current}).Apply(p); err != nil {
		t.Fatalf("matching route id: %v", err)
	}
	if _, err := (Command{Op: OpPause, RouteID: uuid.NewString()}).Apply(p); !errors.Is(err, anim.ErrStaleRoute) {
		t.Fatalf("stale route id: %v", err)
	}

	other := []path.RawLeg{{Mode: "car", Points: []geo.Point{{Lat: 1, Lng: 1}, {Lat: 1.01, Lng: 1.01}}}}
	if _, err := (Command{Op: OpLoad, Legs: other}).Apply(p); !errors.Is(err, anim.ErrRouteBusy) {
		t.Fatalf("load while playing: %v", err)
	}
	Command{Op: OpStop}.Apply(p)
	res, err := Command{Op: OpLoad, Legs: other}.Apply(p)
	if err != nil || res.RouteID == current {
		t.Fatalf("load after stop: %+v %v", res, err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&anim.TransitionError{Op: "pause", From: anim.Idle}, http.StatusConflict},
		{anim.ErrRouteBusy, http.StatusConflict},
		{anim.ErrNoRoute, http.StatusConflict},
		{fmt.Errorf("%w: x", anim.ErrStaleRoute), http.StatusGone},
		{fmt.Errorf("%w: x", ErrBadCommand), http.StatusBadRequest},
		{anim.ErrInvalidProgress, http.StatusBadRequest},
		{path.ErrEmptyRoute, http.StatusBadRequest},
		{view.ErrUnknownMode, http.StatusBadRequest},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHandleMessage(t *testing.T) {
	d := direct{loadedPlayer(t)}

	var rep Reply
	if err := json.Unmarshal(HandleMessage(context.Background(), d, []byte(`{"op":"play"}`)), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Status != http.StatusOK || rep.Phase != "playing" || rep.Frame == nil || rep.Error != "" {
		t.Fatalf("play reply %+v", rep)
	}

	rep = Reply{}
	json.Unmarshal(HandleMessage(context.Background(), d, []byte(`{"op":"resume"}`)), &rep)
	if rep.Status != http.StatusConflict || rep.Error == "" {
		t.Fatalf("resume reply %+v", rep)
	}

	rep = Reply{}
	json.Unmarshal(HandleMessage(context.Background(), d, []byte(`not json`)), &rep)
	if rep.Status != http.StatusBadRequest {
		t.Fatalf("garbage reply %+v", rep)
	}
}
