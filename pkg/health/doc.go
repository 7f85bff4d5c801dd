// Package health provides reusable health-check primitives used by backend
// adapters' health_check (the documentstore and timeseries adapters build an
// HTTPChecker per instance).
//
// A Checker performs one check and reports a Result; Status folds a stream of
// Results into a debounced healthy/unhealthy signal using consecutive-failure
// and consecutive-success thresholds, so a single flaky probe does not flip a
// backend's reported health.
package health
