// Package prometheus renders the form engine's internal metrics in the
// Prometheus text exposition format without depending on the Prometheus
// client library. The exporter reads one metrics snapshot per render.
package prometheus
