// Package runner hosts the frame loop. One goroutine owns the Player: it
// ticks the animation at the configured frame interval and executes
// control commands between ticks, so the engine never sees concurrent
// calls.
package runner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"route-animator/internal/anim"
	"route-animator/internal/control"
)

var ErrNotRunning = errors.New("frame loop is not running")

// Metrics observes the loop.
type Metrics interface {
	TickObserve(d time.Duration)
	CommandReceived(source, op string)
}

type request struct {
	cmd   control.Command
	reply chan response
}

type response struct {
	res control.Result
	err error
}

// Runner drives a Player from a time.Ticker. It implements
// control.Dispatcher.
type Runner struct {
	player    *anim.Player
	interval  time.Duration
	metrics   Metrics
	logFrames bool

	reqs chan request

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
}

func New(p *anim.Player, interval time.Duration, m Metrics, logFrames bool) *Runner {
	return &Runner{
		player:    p,
		interval:  interval,
		metrics:   m,
		logFrames: logFrames,
		reqs:      make(chan request),
	}
}

// Start launches the loop once. It returns immediately; Stop (or
// cancelling parent) ends it.
func (r *Runner) Start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.stopped = make(chan struct{})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.stopped)
		r.loop(ctx)
	}()
	log.Printf("frame loop started (interval %s)", r.interval)
}

// Stop ends the loop and waits for it to exit. The Player is left as is.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	tick := time.NewTicker(r.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("frame loop stopped")
			return
		case req := <-r.reqs:
			res, err := req.cmd.Apply(r.player)
			if err != nil {
				log.Printf("command %s: %v", req.cmd.Op, err)
			}
			req.reply <- response{res, err}
		case now := <-tick.C:
			start := time.Now()
			f, ok := r.player.Tick(now)
			if !ok {
				continue
			}
			if r.logFrames {
				log.Printf("frame route=%s phase=%s d=%.1fm (%.2f%%) mode=%s", f.RouteID, f.Phase, f.DistanceMeters, f.ProgressPercent, f.ActiveMode)
			}
			if r.metrics != nil {
				r.metrics.TickObserve(time.Since(start))
			}
		}
	}
}

// Do runs cmd on the loop goroutine and waits for its result.
func (r *Runner) Do(ctx context.Context, cmd control.Command) (control.Result, error) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped == nil {
		return control.Result{}, ErrNotRunning
	}

	req := request{cmd: cmd, reply: make(chan response, 1)}
	select {
	case r.reqs <- req:
	case <-stopped:
		return control.Result{}, ErrNotRunning
	case <-ctx.Done():
		return control.Result{}, ctx.Err()
	}
	// The loop always replies once it has taken the request.
	resp := <-req.reply
	return resp.res, resp.err
}

// HandleNATS is the control subscription callback.
func (r *Runner) HandleNATS(data []byte) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return control.HandleMessage(ctx, countingDispatcher{r}, data)
}

type countingDispatcher struct{ r *Runner }

func (d countingDispatcher) Do(ctx context.Context, cmd control.Command) (control.Result, error) {
	if d.r.metrics != nil {
		d.r.metrics.CommandReceived("nats", string(cmd.Op))
	}
	return d.r.Do(ctx, cmd)
}
