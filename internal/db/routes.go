package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ResolveRouteID returns the id of the most recently created route with
// the given name (case-insensitive).
func ResolveRouteID(ctx context.Context, db *sql.DB, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("route name is required")
	}
	q := `
SELECT id::text
FROM routes
WHERE lower(name) = lower($1)
ORDER BY created_at DESC
LIMIT 1`
	var id sql.NullString
	if err := db.QueryRowContext(ctx, q, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no saved route named %q", name)
		}
		return "", err
	}
	if !id.Valid || id.String == "" {
		return "", fmt.Errorf("empty id for route %q", name)
	}
	return id.String, nil
}
