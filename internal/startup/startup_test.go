package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{"Returns default when env var not set", "TEST_UNSET_VAR", "default", "", "default", false},
		{"Returns env value when set", "TEST_SET_VAR", "default", "custom", "custom", true},
		{"Returns default when env var is empty", "TEST_EMPTY_VAR", "default", "", "default", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				unsetEnv(t, tt.key)
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"unset keeps default true", "", true, true},
		{"unset keeps default false", "", false, false},
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"upper TRUE", "TRUE", false, true},
		{"invalid keeps default", "not-a-bool", true, true},
		{"yes is not a bool", "yes", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.envValue, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"45s", 45 * time.Second},
		{"0", 0},
		{"bogus", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration("TEST", tt.value, time.Minute); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestLoadDirectoriesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dirs.yaml")
	content := `directories:
  - /data/survey
  - /data/survey/
  - "  "
  - /mnt/imagery
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadDirectoriesFile(path)
	if err != nil {
		t.Fatalf("LoadDirectoriesFile: %v", err)
	}
	want := []string{"/data/survey", "/mnt/imagery"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dir %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadDirectoriesFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadDirectoriesFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("directories: {not: [a list"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDirectoriesFile(bad); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestLoadConfig(t *testing.T) {
	dbDir := filepath.Join(t.TempDir(), "db")
	seed := filepath.Join(t.TempDir(), "dirs.yaml")
	if err := os.WriteFile(seed, []byte("directories: [/data/maps]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENV_FILE", "")
	t.Setenv("DATABASE_DIR", dbDir)
	t.Setenv("PORT", "9000")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("INDEX_INTERVAL", "nonsense")
	t.Setenv("INDEX_WORKERS", "3")
	t.Setenv("FILE_WORKERS", "7")
	t.Setenv("PRUNE_MISSING", "false")
	t.Setenv("WATCH_ENABLED", "false")
	t.Setenv("DIRECTORIES_FILE", seed)
	exportRoot := filepath.Join(t.TempDir(), "exports")
	t.Setenv("EXPORT_ROOT", exportRoot)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Port != "9000" {
		t.Errorf("Port = %q, want 9000", config.Port)
	}
	if config.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", config.PollInterval)
	}
	if config.IndexInterval != 6*time.Hour {
		t.Errorf("IndexInterval = %v, want default 6h", config.IndexInterval)
	}
	if config.IndexWorkers != 3 || config.FileWorkers != 7 {
		t.Errorf("workers = %d/%d, want 3/7", config.IndexWorkers, config.FileWorkers)
	}
	if config.PruneMissing || config.WatchEnabled {
		t.Error("PRUNE_MISSING and WATCH_ENABLED should be off")
	}
	if config.DatabasePath != filepath.Join(dbDir, "geoindex.db") {
		t.Errorf("DatabasePath = %q", config.DatabasePath)
	}
	if info, err := os.Stat(dbDir); err != nil || !info.IsDir() {
		t.Errorf("database directory not created: %v", err)
	}
	if len(config.Directories) != 1 || config.Directories[0] != "/data/maps" {
		t.Errorf("Directories = %v, want [/data/maps]", config.Directories)
	}
	if config.ExportRoot != exportRoot {
		t.Errorf("ExportRoot = %q, want %q", config.ExportRoot, exportRoot)
	}
	if info, err := os.Stat(exportRoot); err != nil || !info.IsDir() {
		t.Errorf("export root not created: %v", err)
	}
}

func TestLoadConfigExportDisabledByDefault(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("DIRECTORIES_FILE", "")
	t.Setenv("EXPORT_ROOT", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.ExportRoot != "" {
		t.Errorf("ExportRoot = %q, want empty", config.ExportRoot)
	}
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "geoindex.env")
	if err := os.WriteFile(envFile, []byte("GEOINDEX_TEST_FROM_FILE=loaded\nGEOINDEX_TEST_PRESET=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envFile)
	unsetEnv(t, "GEOINDEX_TEST_FROM_FILE")
	t.Setenv("GEOINDEX_TEST_PRESET", "environment")

	path, err := loadEnvFile()
	if err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if path != envFile {
		t.Errorf("path = %q, want %q", path, envFile)
	}
	if got := os.Getenv("GEOINDEX_TEST_FROM_FILE"); got != "loaded" {
		t.Errorf("GEOINDEX_TEST_FROM_FILE = %q, want loaded", got)
	}
	if got := os.Getenv("GEOINDEX_TEST_PRESET"); got != "environment" {
		t.Errorf("GEOINDEX_TEST_PRESET = %q, existing variables must win", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if _, err := loadEnvFile(); err == nil {
		t.Error("explicit missing ENV_FILE should fail")
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/api/boundaries":      "api/boundaries",
		"/api/export/manifest": "api/export",
		"/healthz":             "healthz",
		"/":                    "",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(_ http.ResponseWriter, _ *http.Request) {}
	router.HandleFunc("/api/directories", noop).Methods("GET", "POST").Name("directories")
	router.HandleFunc("/healthz", noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3: %+v", len(routes), routes)
	}
	if routes[0].Name != "directories" || routes[2].Method != "*" {
		t.Errorf("routes = %+v", routes)
	}
}

func TestEnsureDirectory(t *testing.T) {
	base := t.TempDir()
	created := filepath.Join(base, "a", "b")
	if err := ensureDirectory(created, "test"); err != nil {
		t.Fatalf("ensureDirectory: %v", err)
	}
	if err := testWriteAccess(created); err != nil {
		t.Errorf("testWriteAccess: %v", err)
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(file, "test"); err == nil {
		t.Error("regular file should be rejected")
	}
}
