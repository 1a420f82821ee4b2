// Package obs exposes Prometheus metrics for the transaction core and the
// HTTP adapter. A nil *Metrics is valid and records nothing.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apartado/backend/internal/money"
)

type Metrics struct {
	registry *prometheus.Registry

	paymentsTotal     *prometheus.CounterVec
	paymentCents      *prometheus.CounterVec
	noteTransitions   *prometheus.CounterVec
	shiftsOpened      prometheus.Counter
	shiftsClosed      *prometheus.CounterVec
	writeConflicts    *prometheus.CounterVec
	closeDifference   prometheus.Histogram
	httpInFlight      prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apartado_payments_total",
			Help: "Payments appended to notes.",
		}, []string{"method"}),
		paymentCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apartado_payment_amount_cents_total",
			Help: "Sum of payment amounts in minor units.",
		}, []string{"method"}),
		noteTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apartado_note_transitions_total",
			Help: "Note status transitions.",
		}, []string{"from", "to"}),
		shiftsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apartado_shifts_opened_total",
			Help: "Till shifts opened.",
		}),
		shiftsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apartado_shifts_closed_total",
			Help: "Till shifts closed by difference classification.",
		}, []string{"classification"}),
		writeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apartado_write_conflicts_total",
			Help: "Optimistic version conflicts, labelled by aggregate.",
		}, []string{"aggregate"}),
		closeDifference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apartado_shift_close_difference",
			Help:    "Declared minus expected cash at close, in currency units.",
			Buckets: []float64{-500, -200, -50, -10, -1, 0, 1, 10, 50, 200, 500},
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.paymentsTotal, m.paymentCents, m.noteTransitions,
		m.shiftsOpened, m.shiftsClosed, m.writeConflicts, m.closeDifference,
		m.httpInFlight, m.httpRequestsTotal, m.httpDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Payment(method string, amount money.Money) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(method).Inc()
	m.paymentCents.WithLabelValues(method).Add(float64(amount.Cents()))
}

func (m *Metrics) Transition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.noteTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ShiftOpened() {
	if m == nil {
		return
	}
	m.shiftsOpened.Inc()
}

func (m *Metrics) ShiftClosed(classification string, difference money.Money) {
	if m == nil {
		return
	}
	m.shiftsClosed.WithLabelValues(classification).Inc()
	f, _ := difference.Decimal().Float64()
	m.closeDifference.Observe(f)
}

func (m *Metrics) Conflict(aggregate string) {
	if m == nil {
		return
	}
	m.writeConflicts.WithLabelValues(aggregate).Inc()
}

// Instrument records RPS, latency and in-flight requests. Paths are
// labelled by the matched route pattern to keep cardinality bounded.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(sw.code)
		m.httpDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
