// Package metrics exposes Prometheus instrumentation for the editor core.
//
// Metrics are registered on the default registry at init. The CLI dumps
// them to a node-exporter textfile when --metrics-file is set, since
// vidcanvas is a batch tool without an HTTP listener.
package metrics
