package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes every environment variable the loader reads.
const DefaultEnvPrefix = "RECORDBENCH"

// ErrInvalid is wrapped by every error that stems from bad configuration.
var ErrInvalid = errors.New("invalid configuration")

// DefaultDotEnvFiles are read before the environment is bound. Missing files are ignored.
var DefaultDotEnvFiles = []string{".env", ".env.local"}

// FlagBindings maps configuration keys to the command-line flags that override them.
var FlagBindings = map[string]string{
	"service.name":             "service-name",
	"workload.table":           "table",
	"workload.threads":         "threads",
	"workload.target":          "target",
	"workload.record_count":    "record-count",
	"workload.operation_count": "operation-count",
}

// legacyKeys maps property names of the original benchmark binding onto their current keys.
var legacyKeys = []struct {
	legacy  string
	current string
}{
	{"mongodb.keyname", "mongodb.key_field"},
	{"mongodb.writeconcern", "mongodb.write_concern"},
	{"mongodb.maxconnections", "mongodb.max_connections"},
}

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper.
// Precedence: flags > ENV > .env files > secrets file > config file > defaults.
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
	dotEnvFiles        []string
	flags              *pflag.FlagSet
}

// NewViperLoader creates a new ViperLoader
// configFile: path to a yaml, json, toml or properties file (optional, can be empty)
// envPrefix: prefix for environment variables (defaults to RECORDBENCH)
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile:  strings.TrimSpace(configFile),
		envPrefix:   envPrefix,
		dotEnvFiles: DefaultDotEnvFiles,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// WithDotEnvFiles replaces the .env files read before binding the environment.
func (l *ViperLoader) WithDotEnvFiles(files ...string) *ViperLoader {
	l.dotEnvFiles = files
	return l
}

// WithFlags binds the flags named in FlagBindings that exist in flags.
// Only flags set on the command line override other sources.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// Load reads and validates the configuration.
func (l *ViperLoader) Load() (*Config, error) {
	cfg, _, err := l.load(false)
	return cfg, err
}

func (l *ViperLoader) load(withSecrets bool) (*Config, *Config, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		if err := l.readConfigFile(v, l.configFile); err != nil {
			return nil, nil, err
		}
	}

	var secrets *Config
	if withSecrets {
		var err error
		if secrets, err = l.mergeSecrets(v); err != nil {
			return nil, nil, err
		}
	}

	if err := l.loadDotEnv(); err != nil {
		return nil, nil, err
	}
	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to unmarshal config: %w", ErrInvalid, err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, secrets, nil
}

func (l *ViperLoader) readConfigFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: failed to read config file %s: %w", ErrInvalid, path, err)
	}
	return applyLegacyKeys(v)
}

// applyLegacyKeys copies values found under legacy property names to the
// current keys, at config-file precedence. A current key in the same file wins.
func applyLegacyKeys(v *viper.Viper) error {
	for _, alias := range legacyKeys {
		if !v.InConfig(alias.legacy) || v.InConfig(alias.current) {
			continue
		}
		if err := v.MergeConfigMap(nested(alias.current, v.Get(alias.legacy))); err != nil {
			return fmt.Errorf("%w: failed to apply %s: %w", ErrInvalid, alias.legacy, err)
		}
	}
	return nil
}

// nested turns "a.b.c" = value into {"a": {"b": {"c": value}}}.
func nested(key string, value interface{}) map[string]interface{} {
	parts := strings.Split(key, ".")
	out := map[string]interface{}{parts[len(parts)-1]: value}
	for i := len(parts) - 2; i >= 0; i-- {
		out = map[string]interface{}{parts[i]: out}
	}
	return out
}

// loadDotEnv reads .env files into the process environment. Variables that are
// already set are never overridden. Missing files are skipped.
func (l *ViperLoader) loadDotEnv() error {
	for _, file := range l.dotEnvFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: failed to load %s: %w", ErrInvalid, file, err)
		}
	}
	return nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))

	// MongoDB
	v.BindEnv("mongodb.url", l.prefixedEnv("MONGODB_URL"))
	v.BindEnv("mongodb.database", l.prefixedEnv("MONGODB_DATABASE"))
	v.BindEnv("mongodb.key_field", l.prefixedEnv("MONGODB_KEY_FIELD"))
	v.BindEnv("mongodb.write_concern", l.prefixedEnv("MONGODB_WRITE_CONCERN"))
	v.BindEnv("mongodb.max_connections", l.prefixedEnv("MONGODB_MAX_CONNECTIONS"))
	v.BindEnv("mongodb.connect_timeout", l.prefixedEnv("MONGODB_CONNECT_TIMEOUT"))
	v.BindEnv("mongodb.operation_timeout", l.prefixedEnv("MONGODB_OPERATION_TIMEOUT"))
	v.BindEnv("mongodb.sort_scan", l.prefixedEnv("MONGODB_SORT_SCAN"))

	// Workload
	v.BindEnv("workload.table", l.prefixedEnv("WORKLOAD_TABLE"))
	v.BindEnv("workload.record_count", l.prefixedEnv("WORKLOAD_RECORD_COUNT"))
	v.BindEnv("workload.operation_count", l.prefixedEnv("WORKLOAD_OPERATION_COUNT"))
	v.BindEnv("workload.threads", l.prefixedEnv("WORKLOAD_THREADS"))
	v.BindEnv("workload.field_count", l.prefixedEnv("WORKLOAD_FIELD_COUNT"))
	v.BindEnv("workload.field_length", l.prefixedEnv("WORKLOAD_FIELD_LENGTH"))
	v.BindEnv("workload.read_all_fields", l.prefixedEnv("WORKLOAD_READ_ALL_FIELDS"))
	v.BindEnv("workload.read_proportion", l.prefixedEnv("WORKLOAD_READ_PROPORTION"))
	v.BindEnv("workload.update_proportion", l.prefixedEnv("WORKLOAD_UPDATE_PROPORTION"))
	v.BindEnv("workload.insert_proportion", l.prefixedEnv("WORKLOAD_INSERT_PROPORTION"))
	v.BindEnv("workload.scan_proportion", l.prefixedEnv("WORKLOAD_SCAN_PROPORTION"))
	v.BindEnv("workload.delete_proportion", l.prefixedEnv("WORKLOAD_DELETE_PROPORTION"))
	v.BindEnv("workload.max_scan_length", l.prefixedEnv("WORKLOAD_MAX_SCAN_LENGTH"))
	v.BindEnv("workload.key_prefix", l.prefixedEnv("WORKLOAD_KEY_PREFIX"))
	v.BindEnv("workload.target", l.prefixedEnv("WORKLOAD_TARGET"))
	v.BindEnv("workload.seed", l.prefixedEnv("WORKLOAD_SEED"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.metrics_addr", l.prefixedEnv("METRICS_ADDR"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for key, name := range FlagBindings {
		flag := l.flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))

	v.SetDefault("mongodb.url", cfg.MongoDB.URL)
	v.SetDefault("mongodb.database", cfg.MongoDB.Database)
	v.SetDefault("mongodb.key_field", cfg.MongoDB.KeyField)
	v.SetDefault("mongodb.write_concern", cfg.MongoDB.WriteConcern)
	v.SetDefault("mongodb.max_connections", cfg.MongoDB.MaxConnections)
	v.SetDefault("mongodb.connect_timeout", cfg.MongoDB.ConnectTimeout)
	v.SetDefault("mongodb.operation_timeout", cfg.MongoDB.OperationTimeout)
	v.SetDefault("mongodb.sort_scan", cfg.MongoDB.SortScan)

	v.SetDefault("workload.table", cfg.Workload.Table)
	v.SetDefault("workload.record_count", cfg.Workload.RecordCount)
	v.SetDefault("workload.operation_count", cfg.Workload.OperationCount)
	v.SetDefault("workload.threads", cfg.Workload.Threads)
	v.SetDefault("workload.field_count", cfg.Workload.FieldCount)
	v.SetDefault("workload.field_length", cfg.Workload.FieldLength)
	v.SetDefault("workload.read_all_fields", cfg.Workload.ReadAllFields)
	v.SetDefault("workload.read_proportion", cfg.Workload.ReadProportion)
	v.SetDefault("workload.update_proportion", cfg.Workload.UpdateProportion)
	v.SetDefault("workload.insert_proportion", cfg.Workload.InsertProportion)
	v.SetDefault("workload.scan_proportion", cfg.Workload.ScanProportion)
	v.SetDefault("workload.delete_proportion", cfg.Workload.DeleteProportion)
	v.SetDefault("workload.max_scan_length", cfg.Workload.MaxScanLength)
	v.SetDefault("workload.key_prefix", cfg.Workload.KeyPrefix)
	v.SetDefault("workload.target", cfg.Workload.Target)
	v.SetDefault("workload.seed", cfg.Workload.Seed)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.metrics_addr", cfg.Observability.MetricsAddr)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}
