// Package metrics defines and registers the Prometheus metrics exposed by a
// hexad node: Registry size, Raft role/term/log position, transport RPC
// outcomes, and resolver fan-out/latency. Handler serves them for scraping;
// Timer is a small helper for observing operation duration into a histogram.
package metrics
