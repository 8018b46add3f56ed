package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "antenna_survey"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors shared by the relay and the orbiter. Each
// instance registers on its own registerer, so tests can use a fresh
// prometheus.NewRegistry().
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec

	instrumentReadsTotal      *prometheus.CounterVec
	instrumentDurationSeconds prometheus.Histogram

	measurementsTotal *prometheus.CounterVec
	missionUploads    *prometheus.CounterVec
	lastMagnitude     prometheus.Gauge
}

// New creates and registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"path", "method", "code"},
		),
		httpDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		instrumentReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instrument_reads_total",
				Help:      "Total number of instrument queries by result.",
			},
			[]string{"result"},
		),
		instrumentDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "instrument_read_duration_seconds",
				Help:      "Time to open the instrument, query it and close it.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		measurementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "measurements_total",
				Help:      "Total number of magnitude samples taken by the orbiter, by result.",
			},
			[]string{"result"},
		),
		missionUploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mission_uploads_total",
				Help:      "Total number of mission uploads by result.",
			},
			[]string{"result"},
		),
		lastMagnitude: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_magnitude",
				Help:      "Most recent valid magnitude reading.",
			},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDurationSeconds,
		m.instrumentReadsTotal,
		m.instrumentDurationSeconds,
		m.measurementsTotal,
		m.missionUploads,
		m.lastMagnitude,
	)

	return m
}

// Handler returns the metrics HTTP handler for g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordInstrumentRead counts one instrument query and its duration
func (m *Metrics) RecordInstrumentRead(d time.Duration, err error) {
	m.instrumentReadsTotal.WithLabelValues(result(err)).Inc()
	m.instrumentDurationSeconds.Observe(d.Seconds())
}

// RecordMeasurement counts one orbiter sample; valid readings update the
// last magnitude gauge
func (m *Metrics) RecordMeasurement(magnitude float64, err error) {
	m.measurementsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.lastMagnitude.Set(magnitude)
	}
}

func (m *Metrics) RecordMissionUpload(err error) {
	m.missionUploads.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		m.httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		m.httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
