package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"geoindex/internal/geo"
	"geoindex/internal/metrics"
)

const boundaryColumns = `path, "left", bottom, "right", top, parent`

// InsertBoundary writes one record in its own transaction. A record for the
// same path is overwritten in place. A parent that is not tracked yields
// ErrUntrackedParent.
func (d *Database) InsertBoundary(ctx context.Context, b Boundary) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_boundary", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, `
		INSERT INTO boundaries (path, "left", "right", top, bottom, parent)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			"left" = excluded."left",
			"right" = excluded."right",
			top = excluded.top,
			bottom = excluded.bottom,
			parent = excluded.parent
		`, b.Path, b.BBox.West, b.BBox.East, b.BBox.North, b.BBox.South, b.Parent)
		return classify(execErr)
	})
	if err != nil {
		return fmt.Errorf("insert boundary %s: %w", b.Path, err)
	}
	return nil
}

// DeleteBoundary removes the record for path. Deleting a missing record is
// not an error.
func (d *Database) DeleteBoundary(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_boundary", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, "DELETE FROM boundaries WHERE path = ?", path)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete boundary %s: %w", path, err)
	}
	return nil
}

// GetBoundary returns the record for path or ErrNotFound.
func (d *Database) GetBoundary(ctx context.Context, path string) (Boundary, error) {
	found, err := d.queryBoundaries(ctx, "get_boundary",
		"SELECT "+boundaryColumns+" FROM boundaries WHERE path = ?", path)
	if err != nil {
		return Boundary{}, err
	}
	if len(found) == 0 {
		return Boundary{}, fmt.Errorf("boundary %s: %w", path, ErrNotFound)
	}
	return found[0], nil
}

// ListBoundaries returns the records whose parent is the tracked directory parent.
func (d *Database) ListBoundaries(ctx context.Context, parent string) ([]Boundary, error) {
	return d.queryBoundaries(ctx, "list_boundaries",
		"SELECT "+boundaryColumns+" FROM boundaries WHERE parent = ? ORDER BY path", parent)
}

// ListBoundariesUnder returns the records whose file lies anywhere below dir,
// regardless of which tracked directory owns them.
func (d *Database) ListBoundariesUnder(ctx context.Context, dir string) ([]Boundary, error) {
	prefix := strings.TrimRight(dir, "/") + "/"
	// '0' sorts immediately after '/', so [prefix, upper) is exactly the
	// set of paths starting with prefix.
	upper := prefix[:len(prefix)-1] + "0"
	return d.queryBoundaries(ctx, "list_boundaries_under",
		"SELECT "+boundaryColumns+" FROM boundaries WHERE path >= ? AND path < ? ORDER BY path", prefix, upper)
}

// QueryIntersecting returns the records whose box shares at least one point
// with region.
func (d *Database) QueryIntersecting(ctx context.Context, region geo.BBox) ([]Boundary, error) {
	return d.queryBoundaries(ctx, "query_intersecting",
		"SELECT "+boundaryColumns+` FROM boundaries
		WHERE "left" <= ? AND "right" >= ? AND bottom <= ? AND top >= ?
		ORDER BY path`,
		region.East, region.West, region.North, region.South)
}

func (d *Database) queryBoundaries(ctx context.Context, op, query string, args ...any) ([]Boundary, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var out []Boundary
	err = d.withConn(ctx, func(conn *sql.Conn) error {
		rows, qErr := conn.QueryContext(ctx, query, args...)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		for rows.Next() {
			var b Boundary
			var parent sql.NullString
			if scanErr := rows.Scan(&b.Path, &b.BBox.West, &b.BBox.South, &b.BBox.East, &b.BBox.North, &parent); scanErr != nil {
				return scanErr
			}
			b.Parent = parent.String
			out = append(out, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strings.ReplaceAll(op, "_", " "), err)
	}
	return out, nil
}

// Counts implements metrics.StatsProvider.
func (d *Database) Counts(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err = d.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM directories),
			(SELECT COUNT(*) FROM boundaries)
		`).Scan(&stats.TrackedDirectories, &stats.BoundaryRecords)
	})
	if err != nil {
		return metrics.Stats{}, fmt.Errorf("count records: %w", err)
	}
	return stats, nil
}
