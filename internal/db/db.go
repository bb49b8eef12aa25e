package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"route-animator/internal/geo"
	"route-animator/internal/path"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Read-only loader: a handful of queries at startup and on route switches.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// legPoint is one row of the legs/points join.
type legPoint struct {
	LegIndex int
	Mode     string
	Lat, Lng float64
}

// FetchRouteLegs returns the legs of a saved route in leg order, each with
// its points in sequence order. Legs without points are omitted.
func FetchRouteLegs(ctx context.Context, db *sql.DB, routeID string) ([]path.RawLeg, error) {
	// Prefer lat/lng columns, but support a PostGIS geom column as fallback
	latlngExists, err := hasColumns(ctx, db, "public", "route_points", "lat", "lng")
	if err != nil {
		return nil, fmt.Errorf("introspect route_points columns: %w", err)
	}
	var q string
	if latlngExists["lat"] && latlngExists["lng"] {
		q = `SELECT l.leg_index, l.mode, p.lat, p.lng
             FROM route_legs l
             JOIN route_points p ON p.route_id = l.route_id AND p.leg_index = l.leg_index
             WHERE l.route_id = $1
             ORDER BY l.leg_index, p.seq`
	} else {
		geomExists, err := hasColumns(ctx, db, "public", "route_points", "geom")
		if err != nil {
			return nil, fmt.Errorf("introspect route_points geom: %w", err)
		}
		if !geomExists["geom"] {
			return nil, fmt.Errorf("route_points table missing expected columns (lat/lng or geom)")
		}
		q = `SELECT l.leg_index, l.mode,
                    ST_Y(p.geom::geometry) AS lat,
                    ST_X(p.geom::geometry) AS lng
             FROM route_legs l
             JOIN route_points p ON p.route_id = l.route_id AND p.leg_index = l.leg_index
             WHERE l.route_id = $1
             ORDER BY l.leg_index, p.seq`
	}
	rows, err := db.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, fmt.Errorf("query route legs: %w", err)
	}
	defer rows.Close()

	var pts []legPoint
	for rows.Next() {
		var lp legPoint
		if err := rows.Scan(&lp.LegIndex, &lp.Mode, &lp.Lat, &lp.Lng); err != nil {
			return nil, err
		}
		pts = append(pts, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	legs := groupLegs(pts)
	if len(legs) == 0 {
		return nil, fmt.Errorf("route %s: %w", routeID, path.ErrEmptyRoute)
	}
	return legs, nil
}

// groupLegs folds rows ordered by (leg_index, seq) into legs.
func groupLegs(pts []legPoint) []path.RawLeg {
	var legs []path.RawLeg
	cur := -1
	for _, p := range pts {
		if len(legs) == 0 || p.LegIndex != cur {
			legs = append(legs, path.RawLeg{Mode: path.Mode(p.Mode)})
			cur = p.LegIndex
		}
		l := &legs[len(legs)-1]
		l.Points = append(l.Points, geo.Point{Lat: p.Lat, Lng: p.Lng})
	}
	return legs
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
