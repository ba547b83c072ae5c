package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

// Recorder exposes extraction and query metrics through its own Prometheus
// registry.
type Recorder struct {
	registry *prometheus.Registry

	instruments  *prometheus.CounterVec
	quotes       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	sources      *prometheus.CounterVec
	sourceTime   *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	requests     *prometheus.CounterVec
	requestTimes *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		instruments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_instruments_total",
				Help: "Instruments attempted per source",
			},
			[]string{"site"},
		),
		quotes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_quotes_total",
				Help: "Quotes successfully extracted per source",
			},
			[]string{"site"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_failures_total",
				Help: "Failed instruments per source and failure kind",
			},
			[]string{"site", "kind"},
		),
		sources: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_sources_total",
				Help: "Processed sources by final status",
			},
			[]string{"site", "status"},
		),
		sourceTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_source_duration_seconds",
				Help:    "Time to extract and persist one source",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"site"},
		),
		lastSuccess: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quote_last_snapshot_timestamp_seconds",
				Help: "Unix time of the last written snapshot per source",
			},
			[]string{"site"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_runs_total",
				Help: "Extract runs by final status",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quote_run_duration_seconds",
				Help:    "Duration of extract runs",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_http_requests_total",
				Help: "Query service requests by route and status code",
			},
			[]string{"route", "code"},
		),
		requestTimes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_http_request_duration_seconds",
				Help:    "Query service request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// RecordSource records one processed source.
func (r *Recorder) RecordSource(sr model.SourceRun) {
	r.instruments.WithLabelValues(sr.Site).Add(float64(sr.Instruments))
	r.quotes.WithLabelValues(sr.Site).Add(float64(sr.Quotes))
	for kind, n := range sr.Failures {
		r.failures.WithLabelValues(sr.Site, kind).Add(float64(n))
	}
	r.sources.WithLabelValues(sr.Site, string(sr.Status)).Inc()
	r.sourceTime.WithLabelValues(sr.Site).Observe(sr.Duration.Seconds())
	if sr.Status == model.SourceStatusWritten {
		r.lastSuccess.WithLabelValues(sr.Site).Set(float64(sr.StartedAt.Add(sr.Duration).Unix()))
	}
}

// RecordRun records the end of an extract run.
func (r *Recorder) RecordRun(status model.RunStatus, d time.Duration) {
	r.runs.WithLabelValues(string(status)).Inc()
	r.runDuration.Observe(d.Seconds())
}

// RecordRequest records one query service request.
func (r *Recorder) RecordRequest(route string, code int, d time.Duration) {
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.requestTimes.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector. Extract runs are short-lived, so they publish this way instead
// of being scraped.
func (r *Recorder) WriteTextfile(path string) error {
	return eris.Wrapf(prometheus.WriteToTextfile(path, r.registry), "monitoring: write metrics %s", path)
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
