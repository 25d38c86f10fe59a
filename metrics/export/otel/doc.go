// Package otel exposes the form engine's internal metrics as OpenTelemetry
// observable instruments. The exporter registers a single callback that
// reads one metrics snapshot per collection and observes every counter,
// histogram bucket, and the dropped-events counter from it.
package otel
