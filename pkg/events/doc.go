// Package events provides a lightweight in-memory broker for Registry and
// consensus lifecycle notifications (store registered/unregistered, trust
// updated, hexad mapped/unmapped, leader elected/stepped down).
//
// Delivery is best-effort and non-blocking: a subscriber with a full buffer
// silently misses an event rather than stalling the publisher, since these
// events are advisory (CLI/metrics/diagnostics) and never a substitute for
// reading the Registry directly.
package events
