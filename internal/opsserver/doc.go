// Package opsserver exposes the daemon's operational HTTP surface: liveness
// and readiness probes, Prometheus metrics, and a small JSON job API used by
// the dubber CLI.
//
// Everything except /healthz and /readyz sits behind bearer-token auth when
// an ops token is configured.
package opsserver
