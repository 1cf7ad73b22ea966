package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"geoindex/internal/logging"
	"geoindex/internal/workers"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	IndexInterval   time.Duration
	PollInterval    time.Duration
	WatchDebounce   time.Duration
	IndexWorkers    int
	FileWorkers     int
	PruneMissing    bool
	WatchEnabled    bool
	LogHealthChecks bool
	DirectoriesFile string
	// ExportRoot confines export destinations; empty disables exports.
	ExportRoot string

	// Derived
	DatabasePath string
	// Directories to register at startup, read from DirectoriesFile
	Directories []string
}

// DirectoriesSeed is the layout of DIRECTORIES_FILE.
//
//	directories:
//	  - /data/survey
//	  - /mnt/imagery
type DirectoriesSeed struct {
	Directories []string `yaml:"directories"`
}

// LoadConfig loads and validates configuration from environment variables,
// after merging in the .env file named by ENV_FILE (default ./.env) when
// it exists. Variables already set in the environment take precedence.
func LoadConfig() (*Config, error) {
	envFile, envErr := loadEnvFile()

	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	switch {
	case envErr != nil:
		logging.Warn("  Could not load env file %s: %v", envFile, envErr)
	case envFile != "":
		logging.Info("  Loaded environment from %s", envFile)
	}

	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	indexIntervalStr := getEnv("INDEX_INTERVAL", "6h")
	pollIntervalStr := getEnv("POLL_INTERVAL", "30s")
	watchDebounceStr := getEnv("WATCH_DEBOUNCE", "2s")
	indexWorkers := workers.FromEnv("INDEX_WORKERS", workers.ForCPU(4), 64)
	fileWorkers := workers.FromEnv("FILE_WORKERS", workers.ForIO(8), 64)
	pruneMissing := getEnvBool("PRUNE_MISSING", true)
	watchEnabled := getEnvBool("WATCH_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	directoriesFile := getEnv("DIRECTORIES_FILE", "")
	exportRoot := getEnv("EXPORT_ROOT", "")

	logSettings([][2]any{
		{"DATABASE_DIR", databaseDir},
		{"PORT", port},
		{"METRICS_PORT", metricsPort},
		{"METRICS_ENABLED", metricsEnabled},
		{"INDEX_INTERVAL", indexIntervalStr},
		{"POLL_INTERVAL", pollIntervalStr},
		{"WATCH_ENABLED", watchEnabled},
		{"WATCH_DEBOUNCE", watchDebounceStr},
		{"INDEX_WORKERS", indexWorkers},
		{"FILE_WORKERS", fileWorkers},
		{"PRUNE_MISSING", pruneMissing},
		{"DIRECTORIES_FILE", directoriesFile},
		{"EXPORT_ROOT", exportRoot},
		{"LOG_HEALTH_CHECKS", logHealthChecks},
		{"LOG_LEVEL", logging.GetLevel()},
	})

	indexInterval := parseDuration("INDEX_INTERVAL", indexIntervalStr, 6*time.Hour)
	pollInterval := parseDuration("POLL_INTERVAL", pollIntervalStr, 30*time.Second)
	watchDebounce := parseDuration("WATCH_DEBOUNCE", watchDebounceStr, 2*time.Second)

	section("DIRECTORY SETUP")

	databaseDir, err := filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	config := &Config{
		DatabaseDir:     databaseDir,
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		IndexInterval:   indexInterval,
		PollInterval:    pollInterval,
		WatchDebounce:   watchDebounce,
		IndexWorkers:    indexWorkers,
		FileWorkers:     fileWorkers,
		PruneMissing:    pruneMissing,
		WatchEnabled:    watchEnabled,
		LogHealthChecks: logHealthChecks,
		DirectoriesFile: directoriesFile,
		DatabasePath:    filepath.Join(databaseDir, "geoindex.db"),
	}

	// Ensure base database directory exists (required for database)
	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	// Test write access for database (required)
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	if exportRoot != "" {
		if exportRoot, err = filepath.Abs(exportRoot); err != nil {
			return nil, fmt.Errorf("failed to resolve export root: %w", err)
		}
		if err := ensureDirectory(exportRoot, "export"); err != nil {
			return nil, fmt.Errorf("export root error: %w", err)
		}
		config.ExportRoot = exportRoot
		logging.Info("  [OK] Exports confined to %s", exportRoot)
	} else {
		logging.Info("  Exports disabled (EXPORT_ROOT not set)")
	}

	if directoriesFile != "" {
		dirs, err := LoadDirectoriesFile(directoriesFile)
		if err != nil {
			return nil, fmt.Errorf("directories file: %w", err)
		}
		config.Directories = dirs
		logging.Info("  [OK] %d directories to track from %s", len(dirs), directoriesFile)
		for _, d := range dirs {
			logging.Debug("    %s", d)
		}
	}

	logging.Info("")
	logging.Info("  Features: watching %s, pruning %s, metrics %s",
		enabledString(config.WatchEnabled), enabledString(config.PruneMissing), enabledString(config.MetricsEnabled))

	return config, nil
}

// loadEnvFile merges ENV_FILE (or ./.env) into the environment. A missing
// default file is not an error; a missing explicit one is.
func loadEnvFile() (string, error) {
	path, explicit := os.LookupEnv("ENV_FILE")
	if !explicit || path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return path, err
	}
	return path, nil
}

// LoadDirectoriesFile reads a YAML seed of directories to track. Paths are
// made absolute and cleaned; blanks and duplicates are dropped.
func LoadDirectoriesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed DirectoriesSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(seed.Directories))
	dirs := make([]string, 0, len(seed.Directories))
	for _, d := range seed.Directories {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", d, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		dirs = append(dirs, abs)
	}
	return dirs, nil
}

func parseDuration(key, value string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		logging.Warn("  Invalid %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return d
}

// section starts a titled block of startup log output.
func section(format string, args ...any) {
	logging.Info("")
	logging.Info("%s", strings.Repeat("-", 60))
	logging.Info(format, args...)
	logging.Info("%s", strings.Repeat("-", 60))
}

func logSettings(settings [][2]any) {
	for _, kv := range settings {
		logging.Info("  %-20s %v", fmt.Sprint(kv[0])+":", kv[1])
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogDirectoriesSeeded logs how many seed directories were newly tracked
func LogDirectoriesSeeded(added, total int) {
	if total == 0 {
		return
	}
	logging.Info("  [OK] Seeded %d of %d directories (%d already tracked)", added, total, total-added)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(config *Config) {
	section("INDEXER INITIALIZATION")
	logging.Info("  Poll interval:   %v", config.PollInterval)
	logging.Info("  Rescan interval: %v", config.IndexInterval)
	logging.Info("  Workers:         %d directories, %d files", config.IndexWorkers, config.FileWorkers)
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("%s", strings.Repeat("-", 60))
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
                     _           _
   __ _  ___  ___   (_)_ __   __| | _____  __
  / _' |/ _ \/ _ \  | | '_ \ / _' |/ _ \ \/ /
 | (_| |  __/ (_) | | | | | | (_| |  __/>  <
  \__, |\___|\___/  |_|_| |_|\__,_|\___/_/\_\
  |___/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
