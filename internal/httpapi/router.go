// Package httpapi assembles the scenecast HTTP router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scenecast/internal/httpapi/handlers"
	"scenecast/internal/httpkit"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/metrics"
	"scenecast/internal/pkg/middleware"
)

// DefaultAllowedOrigins is used when no CORS origins are configured.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Deps struct {
	Handlers       handlers.Deps
	Log            *logger.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	// GenerateTimeout bounds POST /chats/{chatId}/messages. Zero disables it.
	GenerateTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	d.Handlers.Log = log
	d.Handlers.Metrics = d.Metrics

	allowedOrigins := d.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))
	r.Use(middleware.User)
	r.Use(d.Metrics.Instrument)

	h := handlers.New(d.Handlers)
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	// ---- HEALTH ----
	r.Get("/health", h.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// ---- CHATS ----
	r.Route("/chats/{chatId}", func(r chi.Router) {
		generate := r.With()
		if d.GenerateTimeout > 0 {
			generate = r.With(middleware.Timeout(d.GenerateTimeout))
		}
		generate.Post("/messages", wrap(h.PostMessage))
		r.Get("/messages", wrap(h.ListMessages))
		r.Get("/session", wrap(h.GetSession))
	})

	// ---- VIDEOS ----
	r.Get("/stream-video", wrap(h.StreamVideo))
	r.Post("/videos/{videoId}/script", wrap(h.PostScript))
	r.Post("/videos/{videoId}/narration", wrap(h.PostNarration))

	// ---- NARRATION JOBS ----
	r.Get("/narration-jobs/{jobId}", wrap(h.GetNarrationJob))

	return r
}
