package tracing

import "time"

// NewTracerProviderWithExporter builds an enabled provider over exporter.
var NewTracerProviderWithExporter = newTracerProvider

// SetShutdownTimeout overrides the flush bound and returns a restore func.
func SetShutdownTimeout(d time.Duration) func() {
	previous := shutdownTimeout
	shutdownTimeout = d
	return func() { shutdownTimeout = previous }
}
