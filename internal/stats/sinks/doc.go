// Package sinks contains stats.Sink implementations for progress logging,
// Prometheus counters and persistent record storage.
package sinks
