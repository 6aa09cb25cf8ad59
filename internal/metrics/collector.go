package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dubber/internal/dubbing"
)

// QueueStats provides the collector access to queue counts.
type QueueStats interface {
	Stats(ctx context.Context) (map[dubbing.Stage]int, error)
}

// Collector implements prometheus.Collector to read queue depth at scrape time.
type Collector struct {
	stats QueueStats

	jobsByStage *prometheus.Desc
	scrapeError *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (every stage reports 0).
func NewCollector(stats QueueStats) *Collector {
	return &Collector{
		stats: stats,
		jobsByStage: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "jobs"),
			"Jobs in the queue database by stage.",
			[]string{"stage"}, nil,
		),
		scrapeError: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "scrape_error"),
			"1 when the last queue scrape failed.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsByStage
	ch <- c.scrapeError
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var (
		counts map[dubbing.Stage]int
		err    error
	)
	if c.stats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		counts, err = c.stats.Stats(ctx)
		cancel()
	}
	failed := 0.0
	if err != nil {
		failed = 1
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeError, prometheus.GaugeValue, failed)
	for _, stage := range dubbing.AllStages() {
		ch <- prometheus.MustNewConstMetric(c.jobsByStage, prometheus.GaugeValue, float64(counts[stage]), string(stage))
	}
}
