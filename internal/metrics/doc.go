// Package metrics provides observability hooks for the overlay engine.
//
// Components receive a Recorder through their Config. NoopRecorder is the
// default and does nothing; PrometheusRecorder registers collectors on a
// registry that the CLI can export as a node-exporter textfile after a run.
package metrics
