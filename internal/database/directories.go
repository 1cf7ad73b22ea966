package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ListTrackedDirectories returns every tracked directory ordered by path.
func (d *Database) ListTrackedDirectories(ctx context.Context) ([]TrackedDirectory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_directories", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var dirs []TrackedDirectory
	err = d.withConn(ctx, func(conn *sql.Conn) error {
		rows, qErr := conn.QueryContext(ctx, "SELECT path, timestamp FROM directories ORDER BY path")
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		for rows.Next() {
			dir, scanErr := scanDirectory(rows)
			if scanErr != nil {
				return scanErr
			}
			dirs = append(dirs, dir)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list tracked directories: %w", err)
	}
	return dirs, nil
}

// GetDirectory returns one tracked directory or ErrNotFound.
func (d *Database) GetDirectory(ctx context.Context, path string) (TrackedDirectory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_directory", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var dir TrackedDirectory
	err = d.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, "SELECT path, timestamp FROM directories WHERE path = ?", path)
		var scanErr error
		dir, scanErr = scanDirectory(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return TrackedDirectory{}, fmt.Errorf("directory %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return TrackedDirectory{}, fmt.Errorf("get directory %s: %w", path, err)
	}
	return dir, nil
}

// AddDirectory registers path for indexing with no timestamp, so the next
// pass sees it as dirty. It reports false when path was already tracked.
// Tracked roots never nest: a path inside or above a tracked directory is
// rejected with ErrNestedDirectory.
func (d *Database) AddDirectory(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_directory", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var added bool
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		rows, qErr := tx.QueryContext(ctx, "SELECT path FROM directories")
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		for rows.Next() {
			var tracked string
			if scanErr := rows.Scan(&tracked); scanErr != nil {
				return scanErr
			}
			if tracked == path {
				return nil
			}
			if contains(tracked, path) || contains(path, tracked) {
				return fmt.Errorf("%w: %s", ErrNestedDirectory, tracked)
			}
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			return rowsErr
		}
		rows.Close()

		res, execErr := tx.ExecContext(ctx,
			"INSERT INTO directories (path, timestamp) VALUES (?, NULL) ON CONFLICT(path) DO NOTHING", path)
		if execErr != nil {
			return execErr
		}
		n, _ := res.RowsAffected()
		added = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("add directory %s: %w", path, err)
	}
	return added, nil
}

// contains reports whether child lies strictly below dir.
func contains(dir, child string) bool {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	return child != dir && strings.HasPrefix(child, prefix)
}

// RemoveDirectory stops tracking path. Its boundary records are removed by
// the foreign key cascade.
func (d *Database) RemoveDirectory(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_directory", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx, "DELETE FROM directories WHERE path = ?", path)
		if execErr != nil {
			return execErr
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove directory %s: %w", path, err)
	}
	return nil
}

// UpdateDirectoryTimestamp records ts (seconds since the epoch) as the mtime
// of path at its last committed scan.
func (d *Database) UpdateDirectoryTimestamp(ctx context.Context, path string, ts float64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_directory_timestamp", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx, "UPDATE directories SET timestamp = ? WHERE path = ?", ts, path)
		if execErr != nil {
			return execErr
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update timestamp of %s: %w", path, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDirectory(s scanner) (TrackedDirectory, error) {
	var dir TrackedDirectory
	var ts sql.NullFloat64
	if err := s.Scan(&dir.Path, &ts); err != nil {
		return TrackedDirectory{}, err
	}
	if ts.Valid {
		v := ts.Float64
		dir.Timestamp = &v
	}
	return dir, nil
}
