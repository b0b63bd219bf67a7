// Package metrics exposes harvester counters in the Prometheus format.
package metrics
