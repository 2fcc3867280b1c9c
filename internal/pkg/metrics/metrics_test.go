package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/chats/{chatId}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chats/"+id+"/messages", nil))
	}

	assert.Contains(t, scrape(t, m),
		`scenecast_http_requests_total{method="GET",route="/chats/{chatId}/messages",status="202"} 3`)
}

func TestObservers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRender("ok", 2*time.Second)
	m.ObserveRender("SANDBOX_EXECUTION", time.Second)
	m.ObserveGeneration("ok", 2)
	m.ObserveLLM("chat", nil)
	m.ObserveLLM("speech", errors.New("quota"))
	m.ObserveNarrationJob("DONE")
	m.AddStreamed(8192)
	m.AddStreamed(-1)

	out := scrape(t, m)
	assert.Contains(t, out, `scenecast_render_attempts_total{outcome="SANDBOX_EXECUTION"} 1`)
	assert.Contains(t, out, `scenecast_render_duration_seconds_count 2`)
	assert.Contains(t, out, `scenecast_generations_total{attempts="2",outcome="ok"} 1`)
	assert.Contains(t, out, `scenecast_llm_requests_total{kind="speech",outcome="error"} 1`)
	assert.Contains(t, out, `scenecast_narration_jobs_total{status="DONE"} 1`)
	assert.Contains(t, out, `scenecast_streamed_bytes_total 8192`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRender("ok", time.Second)
		m.ObserveGeneration("ok", 1)
		m.ObserveLLM("chat", nil)
		m.ObserveNarrationJob("FAILED")
		m.AddStreamed(10)
	})
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Instrument(next))
}
