// Package metrics exposes Prometheus counters and histograms for the
// automation pipeline.
package metrics
