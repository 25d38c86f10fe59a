// Package internaldefs holds the shared metric definitions used by the
// exporter packages. It exists so the otel and prometheus exporters agree
// on names, help strings, and bucket layout without duplicating tables.
package internaldefs
