// Package config loads recordbench settings from defaults, files, .env files,
// environment variables and command-line flags.
package config

import (
	"time"

	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
	"github.com/nimburion/recordbench/pkg/workload"
)

// DefaultServiceName is the service.name used when nothing overrides it.
const DefaultServiceName = "recordbench"

// Config is the root configuration of a benchmark process.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	MongoDB       MongoDBConfig       `mapstructure:"mongodb" yaml:"mongodb"`
	Workload      WorkloadConfig      `mapstructure:"workload" yaml:"workload"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures process identity metadata.
type ServiceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
}

// MongoDBConfig configures the shared connection and the record mapping.
type MongoDBConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	Database         string        `mapstructure:"database" yaml:"database"`
	KeyField         string        `mapstructure:"key_field" yaml:"key_field"`
	WriteConcern     string        `mapstructure:"write_concern" yaml:"write_concern"`
	MaxConnections   int           `mapstructure:"max_connections" yaml:"max_connections"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	SortScan         bool          `mapstructure:"sort_scan" yaml:"sort_scan"`
}

// Store returns the connection settings understood by the mongodb store package.
func (c MongoDBConfig) Store() mongostore.Config {
	return mongostore.Config{
		URL:              c.URL,
		Database:         c.Database,
		MaxConnections:   c.MaxConnections,
		WriteConcern:     c.WriteConcern,
		ConnectTimeout:   c.ConnectTimeout,
		OperationTimeout: c.OperationTimeout,
	}
}

// WorkloadConfig describes the operations a run issues.
type WorkloadConfig struct {
	Table            string  `mapstructure:"table" yaml:"table"`
	RecordCount      int     `mapstructure:"record_count" yaml:"record_count"`
	OperationCount   int     `mapstructure:"operation_count" yaml:"operation_count"`
	Threads          int     `mapstructure:"threads" yaml:"threads"`
	FieldCount       int     `mapstructure:"field_count" yaml:"field_count"`
	FieldLength      int     `mapstructure:"field_length" yaml:"field_length"`
	ReadAllFields    bool    `mapstructure:"read_all_fields" yaml:"read_all_fields"`
	ReadProportion   float64 `mapstructure:"read_proportion" yaml:"read_proportion"`
	UpdateProportion float64 `mapstructure:"update_proportion" yaml:"update_proportion"`
	InsertProportion float64 `mapstructure:"insert_proportion" yaml:"insert_proportion"`
	ScanProportion   float64 `mapstructure:"scan_proportion" yaml:"scan_proportion"`
	DeleteProportion float64 `mapstructure:"delete_proportion" yaml:"delete_proportion"`
	MaxScanLength    int     `mapstructure:"max_scan_length" yaml:"max_scan_length"`
	KeyPrefix        string  `mapstructure:"key_prefix" yaml:"key_prefix"`
	// Target caps throughput in operations per second; 0 means unthrottled.
	Target float64 `mapstructure:"target" yaml:"target"`
	Seed   int64   `mapstructure:"seed" yaml:"seed"`
}

// Runner returns the settings understood by the workload package.
func (c WorkloadConfig) Runner() workload.Config {
	return workload.Config{
		Table:            c.Table,
		RecordCount:      c.RecordCount,
		OperationCount:   c.OperationCount,
		Threads:          c.Threads,
		FieldCount:       c.FieldCount,
		FieldLength:      c.FieldLength,
		ReadAllFields:    c.ReadAllFields,
		ReadProportion:   c.ReadProportion,
		UpdateProportion: c.UpdateProportion,
		InsertProportion: c.InsertProportion,
		ScanProportion:   c.ScanProportion,
		DeleteProportion: c.DeleteProportion,
		MaxScanLength:    c.MaxScanLength,
		KeyPrefix:        c.KeyPrefix,
		Target:           c.Target,
		Seed:             c.Seed,
	}
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr       string  `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: DefaultServiceName,
		},
		MongoDB: MongoDBConfig{
			URL:              mongostore.DefaultURL,
			Database:         mongostore.DefaultDatabase,
			KeyField:         "_id",
			WriteConcern:     mongostore.DefaultWriteConcern,
			MaxConnections:   mongostore.DefaultMaxConnections,
			ConnectTimeout:   mongostore.DefaultConnectTimeout,
			OperationTimeout: 0,
			SortScan:         false,
		},
		Workload: WorkloadConfig{
			Table:            "usertable",
			RecordCount:      1000,
			OperationCount:   1000,
			Threads:          1,
			FieldCount:       10,
			FieldLength:      100,
			ReadAllFields:    true,
			ReadProportion:   0.95,
			UpdateProportion: 0.05,
			MaxScanLength:    100,
			KeyPrefix:        "user",
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "text",
			TracingEndpoint:   "localhost:4317",
			TracingSampleRate: 1.0,
		},
	}
}
