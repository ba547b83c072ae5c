package query

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/monitoring"
)

// Options configures the query handler.
type Options struct {
	CORSOrigins []string
	// Metrics, when set, records request metrics and is served at /metrics.
	Metrics *monitoring.Recorder
}

type handler struct {
	svc *Service
}

// NewHandler builds the query service routes and middleware.
func NewHandler(svc *Service, opts Options) http.Handler {
	h := &handler{svc: svc}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Get("/quotes/{source}/{obsdate}", h.quotes)
	r.Get("/quotes/{source}/{obsdate}/{isin}", h.quotes)
	r.Get("/sources/{source}/observations", h.observations)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) quotes(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	obs := chi.URLParam(r, "obsdate")
	isin := chi.URLParam(r, "isin")

	rows, err := h.svc.Rows(source, obs, isin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) observations(w http.ResponseWriter, r *http.Request) {
	obs, err := h.svc.Observations(chi.URLParam(r, "source"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("query: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, msg)
}

// requestLogger logs each request and, when rec is set, records its route,
// status and latency.
func requestLogger(rec *monitoring.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if rec != nil {
				rec.RecordRequest(route, status, elapsed)
			}
			zap.L().Debug("query: request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", elapsed),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
