package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"geoindex/internal/database"
	"geoindex/internal/geo"
	"geoindex/internal/indexer"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
)

// app carries the collaborators the commands share so tests can swap them.
type app struct {
	dbPath      string
	assumeYes   bool
	force       bool
	workers     int
	in          io.Reader
	out         io.Writer
	interactive func() bool
	reader      geo.Reader
	reprojector geo.Reprojector
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115 - file descriptors fit in int
}

func defaultDatabasePath() string {
	dir := os.Getenv("DATABASE_DIR")
	if dir == "" {
		dir = defaultDatabaseDir
	}
	return filepath.Join(dir, "geoindex.db")
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "trackdir",
		Short:         "Manage the directories tracked by geoindex",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.SetIn(a.in)
	root.PersistentFlags().StringVar(&a.dbPath, "db", defaultDatabasePath(), "database file (default $DATABASE_DIR/geoindex.db)")

	addCmd := &cobra.Command{
		Use:   "add <dir>...",
		Short: "Start tracking directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(cmd.Context(), func(ctx context.Context, db *database.Database) error {
				return a.add(ctx, db, args)
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <dir>",
		Short: "Stop tracking a directory and delete its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(cmd.Context(), func(ctx context.Context, db *database.Database) error {
				return a.remove(ctx, db, args[0])
			})
		},
	}
	removeCmd.Flags().BoolVarP(&a.assumeYes, "yes", "y", false, "do not ask for confirmation")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDatabase(cmd.Context(), a.list)
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one reconciliation pass and report each directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeDatabase(db)
			return a.scan(cmd.Context(), db)
		},
	}
	scanCmd.Flags().BoolVar(&a.force, "force", false, "rescan directories whose mtime is unchanged")
	scanCmd.Flags().IntVar(&a.workers, "workers", 0, "directories scanned in parallel (default from INDEX_WORKERS)")

	root.AddCommand(addCmd, removeCmd, listCmd, scanCmd)
	return root
}

func (a *app) open(ctx context.Context) (*database.Database, error) {
	db, err := database.New(ctx, a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s (check DATABASE_DIR or --db): %w", a.dbPath, err)
	}
	return db, nil
}

func (a *app) closeDatabase(db *database.Database) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

// withDatabase opens the store and bounds fn by defaultTimeout.
func (a *app) withDatabase(ctx context.Context, fn func(context.Context, *database.Database) error) error {
	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer a.closeDatabase(db)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return fn(ctx, db)
}

func (a *app) add(ctx context.Context, db *database.Database, dirs []string) error {
	for _, dir := range dirs {
		path, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot track %s: %w", path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("cannot track %s: not a directory", path)
		}

		added, err := db.AddDirectory(ctx, path)
		if err != nil {
			return fmt.Errorf("add %s: %w", path, err)
		}
		if added {
			fmt.Fprintf(a.out, "Tracking %s\n", path)
		} else {
			fmt.Fprintf(a.out, "Already tracked: %s\n", path)
		}
	}
	return nil
}

func (a *app) remove(ctx context.Context, db *database.Database, dir string) error {
	path, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := db.GetDirectory(ctx, path); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%s is not tracked", path)
		}
		return err
	}

	if !a.assumeYes && a.interactive() {
		records, err := db.ListBoundariesUnder(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Stop tracking %s and delete %d records? [y/N] ", path, len(records))
		if !confirmed(a.in) {
			fmt.Fprintln(a.out, "Aborted.")
			return nil
		}
	}

	if err := db.RemoveDirectory(ctx, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	fmt.Fprintf(a.out, "Stopped tracking %s\n", path)
	return nil
}

func confirmed(in io.Reader) bool {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (a *app) list(ctx context.Context, db *database.Database) error {
	dirs, err := db.ListTrackedDirectories(ctx)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		fmt.Fprintln(a.out, "No directories tracked.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tRECORDS\tLAST INDEXED")
	for _, d := range dirs {
		records, err := db.ListBoundaries(ctx, d.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Path, len(records), lastIndexed(d))
	}
	return tw.Flush()
}

func lastIndexed(d database.TrackedDirectory) string {
	if !d.Indexed() {
		return "never"
	}
	return time.Unix(0, int64(*d.Timestamp*1e9)).UTC().Format(time.RFC3339)
}

func (a *app) scan(ctx context.Context, db *database.Database) error {
	config := indexer.DefaultConfig()
	if a.workers > 0 {
		config.IndexWorkers = a.workers
	}
	config.WatchEnabled = false

	idx := indexer.New(db, a.reader, a.reprojector, config)
	defer idx.Stop()

	run := idx.ReconcileAll
	if a.force {
		run = idx.RescanAll
	}
	report, err := run(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSTATE\tFILES\tRECORDS\tWARNINGS\tERROR")
	for _, d := range report.Directories {
		records := d.Primaries + d.Companions - d.WriteFailures
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", d.Path, d.State, d.Files, records, d.Warnings, d.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nPass %s done in %s: %d committed, %d idle, %d partially failed\n",
		report.ID, report.Duration.Round(time.Millisecond),
		report.Count(indexer.StateCommitted), report.Count(indexer.StateIdle), report.Count(indexer.StatePartiallyFailed))

	if n := report.Count(indexer.StatePartiallyFailed); n > 0 {
		return fmt.Errorf("%d directories partially failed", n)
	}
	return nil
}
