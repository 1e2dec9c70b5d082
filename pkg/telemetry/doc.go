// Package telemetry groups the observability subpackages: structured
// logging setup, Prometheus metrics, and health checks for the ops
// endpoint.
package telemetry
