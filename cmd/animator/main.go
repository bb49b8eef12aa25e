package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"route-animator/internal/anim"
	"route-animator/internal/config"
	"route-animator/internal/control"
	"route-animator/internal/db"
	"route-animator/internal/metrics"
	"route-animator/internal/path"
	"route-animator/internal/publisher"
	"route-animator/internal/routesource"
	"route-animator/internal/runner"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.FrameInterval)
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// Frames go to NATS when configured; without it the engine still runs
	// and frames are only visible through the HTTP API.
	var renderer anim.Renderer
	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogFrames, publisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		renderer = pub
	}

	player := anim.NewPlayer(renderer, observer(mcol),
		anim.WithSettings(cfg.ViewMode, cfg.InitialZoom, cfg.PlaybackSpeed))

	legs, err := loadRoute(ctx, cfg)
	if err != nil {
		log.Fatalf("load route: %v", err)
	}
	if legs != nil {
		if _, err := player.Load(legs); err != nil {
			log.Fatalf("sample route: %v", err)
		}
		if cfg.Autoplay {
			if _, err := player.Play(); err != nil {
				log.Fatalf("autoplay: %v", err)
			}
		}
	} else {
		log.Printf("no initial route; POST one to /api/route")
	}

	// The runner owns the player from here on.
	run := runner.New(player, cfg.FrameInterval, runnerMetrics(mcol), cfg.LogFrames)
	run.Start(ctx)

	if pub != nil {
		sub, err := pub.SubscribeControl(run.HandleNATS)
		if err != nil {
			log.Fatalf("nats control: %v", err)
		}
		defer sub.Unsubscribe()
	}

	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: control.NewRouter(run, commandMetrics(mcol))}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()
	log.Printf("control API listening on %s", cfg.HTTPAddr)

	// Block until context cancelled
	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelShutdown()
	_ = httpSrv.Shutdown(shutdownCtx)
	run.Stop()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

// loadRoute reads the initial route from ROUTE_FILE or, by name, from
// Postgres. It returns nil legs when neither is configured.
func loadRoute(ctx context.Context, cfg *config.Config) ([]path.RawLeg, error) {
	switch {
	case cfg.RouteFile != "":
		log.Printf("loading route from %s", cfg.RouteFile)
		return routesource.LoadFile(cfg.RouteFile)
	case cfg.RouteName != "":
		return loadSavedRoute(ctx, cfg)
	}
	return nil, nil
}

func loadSavedRoute(ctx context.Context, cfg *config.Config) ([]path.RawLeg, error) {
	dsn := cfg.DatabaseURL
	if cfg.RoutesDB != "" {
		var err error
		if dsn, err = db.WithDBName(dsn, cfg.RoutesDB); err != nil {
			return nil, fmt.Errorf("compose DSN: %w", err)
		}
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	id, err := db.ResolveRouteID(ctx, sqlDB, cfg.RouteName)
	if err != nil {
		return nil, err
	}
	log.Printf("using saved route %s for %q", id, cfg.RouteName)
	return db.FetchRouteLegs(ctx, sqlDB, id)
}

// The collector is optional; these keep typed nils out of the interfaces.

func publisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return c
}

func observer(c *metrics.Collector) anim.Observer {
	if c == nil {
		return nil
	}
	return c
}

func runnerMetrics(c *metrics.Collector) runner.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func commandMetrics(c *metrics.Collector) control.CommandMetrics {
	if c == nil {
		return nil
	}
	return c
}
