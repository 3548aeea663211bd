package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimburion/recordbench/pkg/observability/logger"
	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
)

// Validate reports every problem in cfg at once. Each error wraps ErrInvalid.
func (l *ViperLoader) Validate(cfg *Config) error {
	return cfg.Validate()
}

// Validate reports every problem in c at once. Each error wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(c.Service.Name) == "" {
		add("service.name is required")
	}

	// MongoDB
	if _, err := mongostore.ResolveURI(c.MongoDB.URL); err != nil {
		add("mongodb.url: %w", err)
	}
	if strings.TrimSpace(c.MongoDB.Database) == "" {
		add("mongodb.database is required")
	}
	if strings.TrimSpace(c.MongoDB.KeyField) == "" {
		add("mongodb.key_field is required")
	}
	if _, err := mongostore.ParseWriteConcern(c.MongoDB.WriteConcern); err != nil {
		add("mongodb.write_concern: %w", err)
	}
	if c.MongoDB.MaxConnections <= 0 {
		add("mongodb.max_connections must be positive, got %d", c.MongoDB.MaxConnections)
	}
	if c.MongoDB.ConnectTimeout <= 0 {
		add("mongodb.connect_timeout must be positive")
	}
	if c.MongoDB.OperationTimeout < 0 {
		add("mongodb.operation_timeout must not be negative")
	}

	// Workload
	w := c.Workload
	if strings.TrimSpace(w.Table) == "" {
		add("workload.table is required")
	}
	if w.Threads <= 0 {
		add("workload.threads must be positive, got %d", w.Threads)
	}
	if w.RecordCount < 0 {
		add("workload.record_count must not be negative")
	}
	if w.OperationCount < 0 {
		add("workload.operation_count must not be negative")
	}
	if w.FieldCount <= 0 {
		add("workload.field_count must be positive")
	}
	if w.FieldLength <= 0 {
		add("workload.field_length must be positive")
	}
	if w.MaxScanLength <= 0 {
		add("workload.max_scan_length must be positive")
	}
	if w.Target < 0 {
		add("workload.target must not be negative")
	}
	proportions := map[string]float64{
		"read":   w.ReadProportion,
		"update": w.UpdateProportion,
		"insert": w.InsertProportion,
		"scan":   w.ScanProportion,
		"delete": w.DeleteProportion,
	}
	sum := 0.0
	for _, name := range []string{"read", "update", "insert", "scan", "delete"} {
		if proportions[name] < 0 {
			add("workload.%s_proportion must not be negative", name)
		}
		sum += proportions[name]
	}
	if sum <= 0 {
		add("workload proportions must sum to a positive number")
	}

	// Observability
	if _, err := logger.ParseLogLevel(c.Observability.LogLevel); err != nil {
		add("observability.log_level: %w", err)
	}
	if _, err := logger.ParseLogFormat(c.Observability.LogFormat); err != nil {
		add("observability.log_format: %w", err)
	}
	if c.Observability.TracingEnabled && strings.TrimSpace(c.Observability.TracingEndpoint) == "" {
		add("observability.tracing_endpoint is required when tracing is enabled")
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		add("observability.tracing_sample_rate must be between 0 and 1")
	}

	return errors.Join(errs...)
}
