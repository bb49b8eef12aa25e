package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"route-animator/internal/anim"
)

// Collector holds the animator's Prometheus metrics. It implements
// anim.Observer and publisher.PublisherMetrics.
type Collector struct {
	reg *prometheus.Registry

	RoutePoints  prometheus.Gauge
	RouteMeters  prometheus.Gauge
	RoutesLoaded prometheus.Counter

	FramesEmitted   prometheus.Counter
	Progress        prometheus.Gauge // percent
	DeltasClamped   prometheus.Counter
	Seeks           prometheus.Counter
	RoutesCompleted prometheus.Counter
	Rejected        *prometheus.CounterVec // op label: play|pause|resume|seek
	Commands        *prometheus.CounterVec // source label: http|nats, op label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	FrameInterval prometheus.Gauge // seconds
}

func NewCollector(frameInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RoutePoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_route_points",
			Help: "Number of points in the loaded dense path.",
		}),
		RouteMeters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_route_meters",
			Help: "Total length of the loaded route in meters.",
		}),
		RoutesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_routes_loaded_total",
			Help: "Total routes sampled and installed.",
		}),
		FramesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_frames_emitted_total",
			Help: "Total frames sent to the renderer.",
		}),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_progress_percent",
			Help: "Progress of the last emitted frame.",
		}),
		DeltasClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_frame_deltas_clamped_total",
			Help: "Ticks whose frame delta exceeded the maximum and was replaced by a nominal frame.",
		}),
		Seeks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_seeks_total",
			Help: "Total accepted seeks.",
		}),
		RoutesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_routes_completed_total",
			Help: "Total animations that reached the end of the route.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animator_transitions_rejected_total",
			Help: "Control operations rejected in the current phase.",
		}, []string{"op"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animator_commands_total",
			Help: "Control commands received.",
		}, []string{"source", "op"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_tick_duration_seconds",
			Help:    "Duration of frame tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		FrameInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_frame_interval_seconds",
			Help: "Host frame interval in seconds.",
		}),
	}

	// Register
	reg.MustRegister(
		c.RoutePoints, c.RouteMeters, c.RoutesLoaded,
		c.FramesEmitted, c.Progress, c.DeltasClamped, c.Seeks, c.RoutesCompleted,
		c.Rejected, c.Commands,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration, c.FrameInterval,
	)

	c.FrameInterval.Set(frameInterval.Seconds())

	return c
}

func (c *Collector) RouteLoaded(points int, totalMeters float64) {
	c.RoutesLoaded.Inc()
	c.RoutePoints.Set(float64(points))
	c.RouteMeters.Set(totalMeters)
}

func (c *Collector) FrameEmitted(f anim.Frame) {
	c.FramesEmitted.Inc()
	c.Progress.Set(f.ProgressPercent)
}

func (c *Collector) DeltaClamped()   { c.DeltasClamped.Inc() }
func (c *Collector) Seeked()         { c.Seeks.Inc() }
func (c *Collector) RouteCompleted() { c.RoutesCompleted.Inc() }

func (c *Collector) TransitionRejected(op string) { c.Rejected.WithLabelValues(op).Inc() }

// CommandReceived counts a control command by source (http, nats) and op.
func (c *Collector) CommandReceived(source, op string) {
	c.Commands.WithLabelValues(source, op).Inc()
}

func (c *Collector) TickObserve(d time.Duration) { c.TickDuration.Observe(d.Seconds()) }

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
