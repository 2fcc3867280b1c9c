// Package metrics holds the Prometheus instruments shared by the API and worker.
// All observe methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scenecast"

type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	RenderAttempts *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	Generations    *prometheus.CounterVec
	LLMRequests    *prometheus.CounterVec
	NarrationJobs  *prometheus.CounterVec
	StreamedBytes  prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the instruments with reg. Pass a fresh registry in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RenderAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_attempts_total",
			Help:      "Sandbox render attempts by outcome code.",
		}, []string{"outcome"}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Wall time of sandbox render attempts.",
			Buckets:   []float64{5, 10, 20, 40, 60, 120, 180, 300, 600},
		}),
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Chat generation requests by final outcome and attempts used.",
		}, []string{"outcome", "attempts"}),
		LLMRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Model calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		NarrationJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narration_jobs_total",
			Help:      "Narration jobs by terminal status.",
		}, []string{"status"}),
		StreamedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streamed_bytes_total",
			Help:      "Video bytes relayed to clients.",
		}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument counts requests by chi route pattern, so /chats/{chatId}/messages
// stays one series regardless of the chat.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// ObserveRender records one sandbox attempt. outcome is "ok" or an error code.
func (m *Metrics) ObserveRender(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RenderAttempts.WithLabelValues(outcome).Inc()
	m.RenderDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveGeneration(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome, strconv.Itoa(attempts)).Inc()
}

// ObserveLLM records a model call; kind is "chat" or "speech".
func (m *Metrics) ObserveLLM(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMRequests.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveNarrationJob(status string) {
	if m == nil {
		return
	}
	m.NarrationJobs.WithLabelValues(status).Inc()
}

func (m *Metrics) AddStreamed(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.StreamedBytes.Add(float64(n))
}
