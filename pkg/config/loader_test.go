package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestLoader(configFile string) *ViperLoader {
	return NewViperLoader(configFile, "RBTEST").WithDotEnvFiles()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != DefaultServiceName {
		t.Errorf("expected service name %s, got %s", DefaultServiceName, cfg.Service.Name)
	}
	if cfg.MongoDB.URL != "mongodb://localhost:27017" {
		t.Errorf("unexpected default url %s", cfg.MongoDB.URL)
	}
	if cfg.MongoDB.Database != "ycsb" || cfg.MongoDB.KeyField != "_id" {
		t.Errorf("unexpected default database/key field: %s/%s", cfg.MongoDB.Database, cfg.MongoDB.KeyField)
	}
	if cfg.MongoDB.WriteConcern != "acknowledged" || cfg.MongoDB.MaxConnections != 10 {
		t.Errorf("unexpected default write concern/pool: %s/%d", cfg.MongoDB.WriteConcern, cfg.MongoDB.MaxConnections)
	}
	if cfg.Workload.Table != "usertable" || cfg.Workload.FieldCount != 10 || cfg.Workload.FieldLength != 100 {
		t.Errorf("unexpected workload defaults: %+v", cfg.Workload)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := newTestLoader("").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MongoDB.Database != "ycsb" {
		t.Errorf("expected default database, got %s", cfg.MongoDB.Database)
	}
	if cfg.Workload.ReadProportion != 0.95 {
		t.Errorf("expected read proportion 0.95, got %v", cfg.Workload.ReadProportion)
	}
}

func TestLoad_ServiceNameDefault(t *testing.T) {
	cfg, err := newTestLoader("").WithServiceNameDefault("bench-eu").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "bench-eu" {
		t.Errorf("expected service name bench-eu, got %s", cfg.Service.Name)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
mongodb:
  url: db1:27018
  database: bench
  write_concern: fsync_safe
  operation_timeout: 2s
  sort_scan: true
workload:
  threads: 8
  scan_proportion: 0.1
`)
	cfg, err := newTestLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MongoDB.URL != "db1:27018" || cfg.MongoDB.Database != "bench" {
		t.Errorf("file values not applied: %+v", cfg.MongoDB)
	}
	if cfg.MongoDB.WriteConcern != "fsync_safe" || cfg.MongoDB.OperationTimeout != 2*time.Second || !cfg.MongoDB.SortScan {
		t.Errorf("file values not applied: %+v", cfg.MongoDB)
	}
	if cfg.Workload.Threads != 8 || cfg.Workload.ScanProportion != 0.1 {
		t.Errorf("workload values not applied: %+v", cfg.Workload)
	}
	if cfg.MongoDB.MaxConnections != 10 {
		t.Errorf("unset keys keep defaults, got max connections %d", cfg.MongoDB.MaxConnections)
	}
}

func TestLoad_LegacyPropertyNames(t *testing.T) {
	path := writeFile(t, t.TempDir(), "workload.properties", strings.Join([]string{
		"mongodb.url=mongodb://db2:27017",
		"mongodb.database=legacy",
		"mongodb.keyname=ycsb_key",
		"mongodb.writeConcern=replicas_safe",
		"mongodb.maxconnections=25",
	}, "\n"))

	cfg, err := newTestLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MongoDB.URL != "mongodb://db2:27017" || cfg.MongoDB.Database != "legacy" {
		t.Errorf("url/database not applied: %+v", cfg.MongoDB)
	}
	if cfg.MongoDB.KeyField != "ycsb_key" {
		t.Errorf("expected key field from mongodb.keyname, got %s", cfg.MongoDB.KeyField)
	}
	if cfg.MongoDB.WriteConcern != "replicas_safe" {
		t.Errorf("expected write concern from mongodb.writeConcern, got %s", cfg.MongoDB.WriteConcern)
	}
	if cfg.MongoDB.MaxConnections != 25 {
		t.Errorf("expected max connections from mongodb.maxconnections, got %d", cfg.MongoDB.MaxConnections)
	}
}

func TestLoad_CurrentKeyBeatsLegacyKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
mongodb:
  keyname: legacy_key
  key_field: new_key
`)
	cfg, err := newTestLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MongoDB.KeyField != "new_key" {
		t.Errorf("expected key_field to win, got %s", cfg.MongoDB.KeyField)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
mongodb:
  database: from_file
workload:
  threads: 2
`)
	t.Setenv("RBTEST_MONGODB_DATABASE", "from_env")
	t.Setenv("RBTEST_WORKLOAD_THREADS", "16")
	t.Setenv("RBTEST_MONGODB_CONNECT_TIMEOUT", "750ms")
	t.Setenv("RBTEST_LOG_LEVEL", "debug")

	cfg, err := newTestLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MongoDB.Database != "from_env" {
		t.Errorf("expected env database, got %s", cfg.MongoDB.Database)
	}
	if cfg.Workload.Threads != 16 {
		t.Errorf("expected env threads, got %d", cfg.Workload.Threads)
	}
	if cfg.MongoDB.ConnectTimeout != 750*time.Millisecond {
		t.Errorf("expected env connect timeout, got %v", cfg.MongoDB.ConnectTimeout)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected env log level, got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	dotEnv := writeFile(t, dir, ".env", "RBDOTENV_MONGODB_DATABASE=from_dotenv\nRBDOTENV_WORKLOAD_TABLE=from_dotenv\n")
	t.Setenv("RBDOTENV_WORKLOAD_TABLE", "from_env")
	t.Cleanup(func() { _ = os.Unsetenv("RBDOTENV_MONGODB_DATABASE") })

	cfg, err := NewViperLoader("", "RBDOTENV").WithDotEnvFiles(dotEnv, filepath.Join(dir, "missing.env")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MongoDB.Database != "from_dotenv" {
		t.Errorf("expected .env database, got %s", cfg.MongoDB.Database)
	}
	if cfg.Workload.Table != "from_env" {
		t.Errorf("expected real environment to win, got %s", cfg.Workload.Table)
	}
}

func TestLoad_MalformedDotEnvIsInvalid(t *testing.T) {
	dir := t.TempDir()
	dotEnv := writeFile(t, dir, ".env", "RBDOTENV_MONGODB_DATABASE=\"never closed\n")

	_, err := NewViperLoader("", "RBDOTENV").WithDotEnvFiles(dotEnv).Load()
	if err == nil {
		t.Fatal("expected an error for a malformed .env file")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), dotEnv) {
		t.Errorf("expected the file name in %q", err.Error())
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("RBTEST_WORKLOAD_THREADS", "4")
	t.Setenv("RBTEST_WORKLOAD_TABLE", "env_table")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("threads", 1, "")
	flags.String("table", "usertable", "")
	flags.Float64("target", 0, "")
	if err := flags.Parse([]string{"--threads=12", "--target=500"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := newTestLoader("").WithFlags(flags).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workload.Threads != 12 {
		t.Errorf("expected flag threads, got %d", cfg.Workload.Threads)
	}
	if cfg.Workload.Target != 500 {
		t.Errorf("expected flag target, got %v", cfg.Workload.Target)
	}
	if cfg.Workload.Table != "env_table" {
		t.Errorf("unchanged flag must not override env, got %s", cfg.Workload.Table)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newTestLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoad_InvalidWriteConcern(t *testing.T) {
	t.Setenv("RBTEST_MONGODB_WRITE_CONCERN", "whenever")

	_, err := newTestLoader("").Load()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !errors.Is(err, mongostore.ErrInvalidConfig) {
		t.Errorf("expected the mongodb config error to be kept, got %v", err)
	}
	if !strings.Contains(err.Error(), "acknowledged | safe | normal | fsync_safe | replicas_safe") {
		t.Errorf("error should list accepted write concerns: %v", err)
	}
}
