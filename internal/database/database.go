package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"geoindex/internal/logging"
	"geoindex/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUntrackedParent is returned when a boundary names a parent that is
	// not a tracked directory.
	ErrUntrackedParent = errors.New("parent directory is not tracked")

	// ErrNestedDirectory is returned when a directory to track lies inside,
	// or contains, one that is already tracked.
	ErrNestedDirectory = errors.New("directory overlaps a tracked directory")
)

// Database is the boundary store: tracked directories and the boundary
// records found under them.
type Database struct {
	db     *sql.DB
	dbPath string
	log    *logging.Logger
}

// New opens (creating if needed) the store at dbPath and applies the schema.
// dbPath is the database FILE; its parent directory must already exist.
func New(ctx context.Context, dbPath string) (*Database, error) {
	log := logging.New("database")
	log.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(log, dbPath); err != nil {
		log.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout and immediate transactions keep concurrent directory
	// workers from failing with "database is locked".
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
		log:    log,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS directories (
		path TEXT PRIMARY KEY,
		timestamp REAL
	);

	CREATE TABLE IF NOT EXISTS boundaries (
		path TEXT PRIMARY KEY,
		"left" REAL,
		"right" REAL,
		top REAL,
		bottom REAL,
		parent TEXT REFERENCES directories(path) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_boundaries_parent ON boundaries(parent);
	CREATE INDEX IF NOT EXISTS idx_boundaries_lon ON boundaries("left", "right");
	CREATE INDEX IF NOT EXISTS idx_boundaries_lat ON boundaries(bottom, top);
	`

	err = d.withConn(ctx, func(conn *sql.Conn) error {
		_, execErr := conn.ExecContext(ctx, schema)
		return execErr
	})
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Ping checks that the store is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// withConn runs fn on a connection acquired for this call only. The
// connection goes back to the pool on every return path.
func (d *Database) withConn(ctx context.Context, fn func(*sql.Conn) error) (err error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	metrics.DBConnectionsInUse.Inc()
	defer func() {
		metrics.DBConnectionsInUse.Dec()
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(conn)
}

// withTx runs fn inside a single transaction on a scoped connection.
func (d *Database) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return d.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return err
		}
		return tx.Commit()
	})
}

// classify maps driver constraint errors onto package sentinels.
func classify(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%w: %v", ErrUntrackedParent, err)
	}
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(log *logging.Logger, dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	log.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		log.Debug("%s exists (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			log.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
			if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
				log.Error("Failed to fix permissions on %s: %v", p, chmodErr)
			} else {
				log.Info("Fixed permissions on %s", p)
			}
		}
	}

	return nil
}
