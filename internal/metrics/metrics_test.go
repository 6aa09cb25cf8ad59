package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"dubber/internal/dubbing"
)

type fakeStats struct {
	counts map[dubbing.Stage]int
	err    error
}

func (f fakeStats) Stats(context.Context) (map[dubbing.Stage]int, error) {
	return f.counts, f.err
}

func TestCollectorReportsStages(t *testing.T) {
	c := NewCollector(fakeStats{counts: map[dubbing.Stage]int{dubbing.StageQueued: 2, dubbing.StageDone: 5}})
	want := `
# HELP dubber_queue_scrape_error 1 when the last queue scrape failed.
# TYPE dubber_queue_scrape_error gauge
dubber_queue_scrape_error 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "dubber_queue_scrape_error"); err != nil {
		t.Fatalf("scrape error gauge: %v", err)
	}
	if n := testutil.CollectAndCount(c, "dubber_queue_jobs"); n != len(dubbing.AllStages()) {
		t.Fatalf("expected one series per stage, got %d", n)
	}

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() != "dubber_queue_jobs" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == "done" && m.GetGauge().GetValue() == 5 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected done=5 series")
	}
}

func TestCollectorFlagsScrapeError(t *testing.T) {
	c := NewCollector(fakeStats{err: errors.New("db locked")})
	want := `
# HELP dubber_queue_scrape_error 1 when the last queue scrape failed.
# TYPE dubber_queue_scrape_error gauge
dubber_queue_scrape_error 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "dubber_queue_scrape_error"); err != nil {
		t.Fatalf("scrape error gauge: %v", err)
	}
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/jobs/{id}", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/42", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/jobs/{id}", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request recorded under the route pattern, delta %v", after-before)
	}
}
