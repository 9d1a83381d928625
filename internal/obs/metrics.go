// Package obs exposes the process's capture metrics as Prometheus
// collectors, in the same package-level-vars-plus-init-registration
// style the rest of this codebase's ambient stack follows.
package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RowsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kronicler_rows_total",
			Help: "Total number of rows durably committed to the column store",
		},
	)

	CapturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kronicler_captures_total",
			Help: "Total number of capture events accepted, by mode (sync, async)",
		},
		[]string{"mode"},
	)

	OverflowTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kronicler_queue_overflow_total",
			Help: "Total number of async capture events dropped because the queue was full",
		},
	)

	AppendErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kronicler_append_errors_total",
			Help: "Total number of column append failures, sync or async",
		},
	)

	AppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kronicler_append_duration_seconds",
			Help:    "Time taken to append one row to the column store",
			Buckets: prometheus.DefBuckets,
		},
	)

	AverageDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kronicler_average_query_duration_seconds",
			Help:    "Time taken to compute an average-by-name aggregate",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(RowsTotal)
	prometheus.MustRegister(CapturesTotal)
	prometheus.MustRegister(OverflowTotal)
	prometheus.MustRegister(AppendErrorsTotal)
	prometheus.MustRegister(AppendDuration)
	prometheus.MustRegister(AverageDuration)
}

// Handler returns the Prometheus scrape handler, for wiring into
// net/http or into cmd/kroniclerctl's serve-metrics subcommand.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an in-flight operation for later ObserveDuration.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() Timer { return Timer{start: time.Now()} }

// ObserveDuration records the elapsed time on histogram.
func (t Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
