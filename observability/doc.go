// Package observability provides a metrics extension that counts
// timer job, workflow run and reminder events as OpenTelemetry counters.
// Register it on the engine with engine.WithExtension.
package observability
