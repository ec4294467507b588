package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backtest_jobs_claimed_total",
			Help: "Total number of queued backtest jobs claimed by the dispatcher",
		},
	)

	jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_jobs_finished_total",
			Help: "Total number of backtest jobs finished, by final status",
		},
		[]string{"status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backtest_job_duration_seconds",
			Help:    "Backtest job run time in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	dispatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backtest_dispatch_errors_total",
			Help: "Total number of dispatch calls aborted by an infrastructure error",
		},
	)

	marketDataSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_market_data_requests_total",
			Help: "Market data requests by the source that served them",
		},
		[]string{"source"},
	)

	staleJobsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backtest_stale_jobs_failed_total",
			Help: "Total number of running jobs failed by the stale sweep",
		},
	)
)

// Recorder is the dispatcher's view of the process metrics.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordClaimed(n int) {
	jobsClaimed.Add(float64(n))
}

func (r *Recorder) RecordJob(status string, duration time.Duration) {
	jobsFinished.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (r *Recorder) RecordDispatchError() {
	dispatchErrors.Inc()
}

func (r *Recorder) RecordMarketDataSource(source string) {
	marketDataSource.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordStaleJobs(n int64) {
	staleJobsFailed.Add(float64(n))
}
