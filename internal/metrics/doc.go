// Package metrics defines the Prometheus series dubber exports: job
// submissions and outcomes, stage timings, absorbed degradations, queue
// depth, and ops server request metrics.
package metrics
