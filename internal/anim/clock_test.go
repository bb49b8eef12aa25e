package anim

import (
	"errors"
	"math"
	"testing"
	"time"

	orbgeo "github.com/paulmach/orb/geo"

	"route-animator/internal/geo"
	"route-animator/internal/path"
	"route-animator/internal/speed"
	"route-animator/internal/view"
)

var origin = geo.Point{Lat: 52.52, Lng: 13.405}

func north(meters float64) geo.Point {
	return geo.FromOrb(orbgeo.PointAtBearingAndDistance(origin.Orb(), 0, meters))
}

func leg(mode path.Mode, from, to, step float64) path.RawLeg {
	l := path.RawLeg{Mode: mode}
	for m := from; m <= to+1e-9; m += step {
		l.Points = append(l.Points, north(m))
	}
	return l
}

// walkThenDrive is 600m on foot followed by 400m by car.
func walkThenDrive() []path.RawLeg {
	return []path.RawLeg{leg("walk", 0, 600, 100), leg("car", 600, 1000, 100)}
}

func testRoute(t *testing.T) *path.Dense {
	t.Helper()
	d, err := path.Sample(walkThenDrive())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	return d
}

// wholeRoute keeps the speed independent of zoom.
var wholeRoute = StaticSettings{Mode: view.WholeRoute, Speed: view.Medium}

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newPlaying(t *testing.T) *Clock {
	t.Helper()
	c := NewClock(testRoute(t), wholeRoute)
	if _, err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	return c
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Clock)
		op    func(c *Clock) error
		from  Phase
	}{
		{"pause while idle", func(c *Clock) {}, func(c *Clock) error { _, err := c.Pause(); return err }, Idle},
		{"resume while idle", func(c *Clock) {}, func(c *Clock) error { _, err := c.Resume(); return err }, Idle},
		{"seek while idle", func(c *Clock) {}, func(c *Clock) error { _, err := c.Seek(10); return err }, Idle},
		{"play while playing", func(c *Clock) { c.Play() }, func(c *Clock) error { _, err := c.Play(); return err }, Playing},
		{"resume while playing", func(c *Clock) { c.Play() }, func(c *Clock) error { _, err := c.Resume(); return err }, Playing},
		{"play while paused", func(c *Clock) { c.Play(); c.Pause() }, func(c *Clock) error { _, err := c.Play(); return err }, Paused},
		{"pause while paused", func(c *Clock) { c.Play(); c.Pause() }, func(c *Clock) error { _, err := c.Pause(); return err }, Paused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClock(testRoute(t), wholeRoute)
			tt.setup(c)
			before := c.State()
			err := tt.op(c)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			var te *TransitionError
			if !errors.As(err, &te) || te.From != tt.from {
				t.Fatalf("expected TransitionError from %s, got %v", tt.from, err)
			}
			if after := c.State(); after.Phase != before.Phase || after.DistanceMeters != before.DistanceMeters {
				t.Fatalf("state changed on rejected op: %+v -> %+v", before, after)
			}
		})
	}
}

func TestPlayPauseResumeCycle(t *testing.T) {
	c := newPlaying(t)
	if c.Phase() != Playing || c.State().LastTick != nil {
		t.Fatalf("after Play: %+v", c.State())
	}
	c.Tick(t0)
	c.Tick(t0.Add(100 * time.Millisecond))
	if _, err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	paused := c.State().DistanceMeters
	c.Tick(t0.Add(150 * time.Millisecond))
	if c.State().DistanceMeters != paused {
		t.Fatal("tick while paused must not advance")
	}
	if _, err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	if c.Phase() != Playing {
		t.Fatalf("phase after resume = %s", c.Phase())
	}
}

func TestFirstTickAppliesNoDelta(t *testing.T) {
	c := newPlaying(t)
	s := c.Tick(t0)
	if s.DistanceMeters != 0 {
		t.Fatalf("first tick advanced to %v", s.DistanceMeters)
	}
	s = c.Tick(t0.Add(100 * time.Millisecond))
	want := speed.MetersPerSecond(c.Path().Total(), view.WholeRoute, 0, view.Medium) * 0.1
	if math.Abs(s.DistanceMeters-want) > 1e-9 {
		t.Fatalf("distance after 100ms = %v, want %v", s.DistanceMeters, want)
	}
}

func TestSuspendedHostDeltaIsClamped(t *testing.T) {
	c := newPlaying(t)
	c.Tick(t0)
	before := c.State().DistanceMeters
	s := c.Tick(t0.Add(5000 * time.Millisecond))
	if !s.Clamped {
		t.Fatal("a 5s delta must be reported as clamped")
	}
	v := speed.MetersPerSecond(c.Path().Total(), view.WholeRoute, 0, view.Medium)
	limit := v * NominalFrame.Seconds()
	if moved := s.DistanceMeters - before; moved > limit+1e-9 {
		t.Fatalf("moved %vm, want at most one nominal frame (%vm)", moved, limit)
	}
}

func TestNegativeDeltaDoesNotMoveBackwards(t *testing.T) {
	c := newPlaying(t)
	c.Tick(t0)
	c.Tick(t0.Add(50 * time.Millisecond))
	before := c.State().DistanceMeters
	s := c.Tick(t0.Add(10 * time.Millisecond))
	if s.DistanceMeters != before {
		t.Fatalf("backwards clock moved distance %v -> %v", before, s.DistanceMeters)
	}
}

func TestResumeIgnoresPausedInterval(t *testing.T) {
	c := newPlaying(t)
	c.Tick(t0)
	c.Tick(t0.Add(16 * time.Millisecond))
	if _, err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	paused := c.State().DistanceMeters

	if _, err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	// 3 seconds of wall clock passed while paused.
	s := c.Tick(t0.Add(3016 * time.Millisecond))
	if s.DistanceMeters != paused {
		t.Fatalf("first tick after resume moved %v -> %v", paused, s.DistanceMeters)
	}
	if s.Clamped {
		t.Fatal("first tick after resume must not see the paused gap at all")
	}
	s = c.Tick(t0.Add(3032 * time.Millisecond))
	if s.DistanceMeters <= paused {
		t.Fatal("animation must continue after resume")
	}
}

func TestSeekRoundTrip(t *testing.T) {
	for _, p := range []float64{0, 12.5, 40, 99.9, 100} {
		c := newPlaying(t)
		s, err := c.Seek(p)
		if err != nil {
			t.Fatalf("Seek(%v): %v", p, err)
		}
		if math.Abs(s.ProgressPercent-p) > 1e-9 || math.Abs(c.Progress()-p) > 1e-9 {
			t.Fatalf("Seek(%v) progress = %v", p, s.ProgressPercent)
		}
		if s.Phase != Paused {
			t.Fatalf("seek while playing must pause, got %s", s.Phase)
		}
	}
}

func TestTickResumesFromSeekedDistance(t *testing.T) {
	c := newPlaying(t)
	c.Tick(t0)
	c.Tick(t0.Add(16 * time.Millisecond))
	if _, err := c.Seek(40); err != nil {
		t.Fatal(err)
	}
	target := 0.4 * c.Path().Total()
	if _, err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	c.Tick(t0.Add(32 * time.Millisecond))
	s := c.Tick(t0.Add(48 * time.Millisecond))
	if s.DistanceMeters <= target {
		t.Fatalf("distance %v did not advance past seek target %v", s.DistanceMeters, target)
	}
	if s.DistanceMeters > target+100 {
		t.Fatalf("distance %v jumped far beyond seek target %v", s.DistanceMeters, target)
	}
}

func TestSeekClampsAndRejectsNaN(t *testing.T) {
	c := newPlaying(t)
	if _, err := c.Seek(math.NaN()); !errors.Is(err, ErrInvalidProgress) {
		t.Fatalf("Seek(NaN) error = %v", err)
	}
	if c.Phase() != Playing {
		t.Fatal("rejected seek must not pause")
	}
	s, _ := c.Seek(150)
	if s.ProgressPercent != 100 || s.DistanceMeters != c.Path().Total() {
		t.Fatalf("Seek(150) = %+v", s)
	}
	s, _ = c.Seek(-20)
	if s.DistanceMeters != 0 {
		t.Fatalf("Seek(-20) = %+v", s)
	}
}

func TestMonotonicUntilCompleted(t *testing.T) {
	c := newPlaying(t)
	total := c.Path().Total()
	prev := 0.0
	now := t0
	for i := 0; i < 10_000 && c.Phase() == Playing; i++ {
		s := c.Tick(now)
		if s.DistanceMeters < prev {
			t.Fatalf("tick %d moved backwards: %v -> %v", i, prev, s.DistanceMeters)
		}
		if s.DistanceMeters > total {
			t.Fatalf("tick %d overshot: %v > %v", i, s.DistanceMeters, total)
		}
		prev = s.DistanceMeters
		now = now.Add(16 * time.Millisecond)
	}
	st := c.State()
	if st.Phase != Completed {
		t.Fatalf("expected Completed, got %s", st.Phase)
	}
	if st.DistanceMeters != total || c.Progress() != 100 {
		t.Fatalf("completed at %v (%v%%), want exactly %v", st.DistanceMeters, c.Progress(), total)
	}
	if s := c.Tick(now.Add(time.Second)); s.DistanceMeters != total || s.Phase != Completed {
		t.Fatal("tick after completion must be a no-op")
	}
}

func TestPlayAfterCompletionRestarts(t *testing.T) {
	c := newPlaying(t)
	c.Seek(100)
	c.Resume()
	c.Tick(t0)
	if c.Phase() != Completed {
		t.Fatalf("expected Completed, got %s", c.Phase())
	}
	s, err := c.Play()
	if err != nil {
		t.Fatal(err)
	}
	if s.DistanceMeters != 0 || s.Phase != Playing {
		t.Fatalf("replay state %+v", s)
	}
}

func TestSeekFromCompletedPauses(t *testing.T) {
	c := newPlaying(t)
	c.Seek(100)
	c.Resume()
	c.Tick(t0)
	s, err := c.Seek(30)
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != Paused {
		t.Fatalf("phase = %s, want paused", s.Phase)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := newPlaying(t)
	c.Tick(t0)
	c.Tick(t0.Add(50 * time.Millisecond))
	if !c.Stop() {
		t.Fatal("first Stop must report a change")
	}
	want := c.State()
	if want.Phase != Idle || want.DistanceMeters != 0 || want.LastTick != nil {
		t.Fatalf("state after stop %+v", want)
	}
	if c.Stop() {
		t.Fatal("second Stop must be a no-op")
	}
	if got := c.State(); got.Phase != want.Phase || got.DistanceMeters != want.DistanceMeters {
		t.Fatalf("second Stop changed state: %+v", got)
	}
}

func TestSpeedFollowsSettings(t *testing.T) {
	d := testRoute(t)
	slow := NewClock(d, StaticSettings{Mode: view.WholeRoute, Speed: view.Slow})
	fast := NewClock(d, StaticSettings{Mode: view.WholeRoute, Speed: view.Fast})
	for _, c := range []*Clock{slow, fast} {
		c.Play()
		c.Tick(t0)
		c.Tick(t0.Add(100 * time.Millisecond))
	}
	ratio := fast.State().DistanceMeters / slow.State().DistanceMeters
	if math.Abs(ratio-4) > 1e-9 {
		t.Fatalf("fast/slow distance ratio = %v, want 4", ratio)
	}
}

func TestNilSettingsDefaults(t *testing.T) {
	c := NewClock(testRoute(t), nil)
	c.Play()
	c.Tick(t0)
	s := c.Tick(t0.Add(100 * time.Millisecond))
	if s.DistanceMeters <= 0 {
		t.Fatal("default settings must still move the marker")
	}
}
