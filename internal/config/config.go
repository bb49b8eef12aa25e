package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"route-animator/internal/geo"
	"route-animator/internal/view"
)

type Config struct {
	// Route source: a file path, or a saved route name looked up in Postgres.
	RouteFile   string
	RouteName   string
	DatabaseURL string
	// RoutesDB, when set, replaces the database named in DatabaseURL.
	RoutesDB string

	NATSURL           string
	NATSSubjectPrefix string `validate:"required,excludesall=*>"`

	FrameInterval time.Duration `validate:"gt=0"`
	PlaybackSpeed view.Multiplier
	ViewMode      view.Mode
	InitialZoom   float64
	Autoplay      bool

	MetricsAddr string
	HTTPAddr    string
	LogFrames   bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.RouteFile = strings.TrimSpace(os.Getenv("ROUTE_FILE"))
	cfg.RouteName = strings.TrimSpace(os.Getenv("ROUTE_NAME"))
	if cfg.RouteFile != "" && cfg.RouteName != "" {
		return nil, errors.New("set only one of ROUTE_FILE and ROUTE_NAME")
	}

	// Database URL is only needed for ROUTE_NAME: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && cfg.RouteName != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set when ROUTE_NAME is used")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn
	cfg.RoutesDB = strings.TrimSpace(os.Getenv("ROUTES_DB"))

	// Empty NATS_URL disables the NATS renderer and control subscription.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "animator")

	// Frame rate (frames per second)
	if v := os.Getenv("FRAME_RATE"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil || fps <= 0 || fps > 240 {
			return nil, fmt.Errorf("invalid FRAME_RATE: %q", v)
		}
		cfg.FrameInterval = time.Second / time.Duration(fps)
	} else {
		cfg.FrameInterval = time.Second / 60
	}

	cfg.PlaybackSpeed = view.Medium
	if v := os.Getenv("PLAYBACK_SPEED"); v != "" {
		m, err := view.ParseMultiplier(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PLAYBACK_SPEED: %w", err)
		}
		cfg.PlaybackSpeed = m
	}

	cfg.ViewMode = view.Follow
	if v := os.Getenv("VIEW_MODE"); v != "" {
		m, err := view.ParseMode(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VIEW_MODE: %w", err)
		}
		cfg.ViewMode = m
	}

	// Initial zoom; unset means the neutral zoom for the route length.
	cfg.InitialZoom = math.NaN()
	if v := os.Getenv("INITIAL_ZOOM"); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil || z < view.MinZoom || z > view.MaxZoom {
			return nil, fmt.Errorf("invalid INITIAL_ZOOM: %q", v)
		}
		cfg.InitialZoom = z
	}

	cfg.Autoplay = parseBool(os.Getenv("AUTOPLAY"))
	cfg.LogFrames = parseBool(os.Getenv("LOG_FRAMES"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	if err := geo.Validator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
