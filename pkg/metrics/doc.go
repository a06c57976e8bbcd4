// Package metrics provides Prometheus instrumentation for coalesce components.
//
// Every scheduling primitive and serial queue accepts an optional *Registry
// in its Config. A nil registry disables instrumentation for that instance.
//
// # Quick Start
//
//	registry := metrics.NewRegistry(prometheus.NewRegistry())
//
//	d := debounce.NewWithConfig(debounce.Config{
//		Name:    "search_box",
//		Metrics: registry,
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Available Metrics
//
// Debounce (label debouncer_name):
//   - coalesce_debounce_scheduled_total
//   - coalesce_debounce_fired_total
//   - coalesce_debounce_aborted_total
//
// Throttle (label throttler_name):
//   - coalesce_throttle_scheduled_total
//   - coalesce_throttle_fired_total
//   - coalesce_throttle_delay_seconds
//
// Accumulate (label debouncer_name):
//   - coalesce_accumulate_folded_total
//   - coalesce_accumulate_flushed_total
//   - coalesce_accumulate_aborted_total
//
// Queue (label queue_label):
//   - coalesce_queue_executed_total
//   - coalesce_queue_depth
//
// DefaultRegistry registers against prometheus.DefaultRegisterer at init.
// Use NewRegistry with a private prometheus.Registry in tests to avoid
// duplicate registration panics.
package metrics
