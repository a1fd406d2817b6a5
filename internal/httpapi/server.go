package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/speedcheck/internal/httpapi/middleware"
	"github.com/hamed0406/speedcheck/internal/repo"
)

// Server exposes the probe's metrics for scraping and its recent results.
type Server struct {
	Logger  *zap.Logger
	Metrics http.Handler
	Results repo.ResultStore
}

func NewServer(l *zap.Logger, metrics http.Handler, rs repo.ResultStore) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Metrics: metrics, Results: rs}
}

// Router mounts /healthz and /metrics openly and guards /api with keys
// and a per-IP rate limit (reqPerMin <= 0 disables the limit).
func (s *Server) Router(keys []string, reqPerMin, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(reqPerMin, burst))
		r.Use(apimw.RequireKey(keys))
		r.Get("/probes", s.handleLatest)
		r.Get("/probes/{name}", s.handleHistory)
	})

	return r
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("api_latest_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	rows, err := s.Results.History(r.Context(), name)
	if errors.Is(err, repo.ErrUnknownProbe) {
		writeError(w, http.StatusNotFound, "unknown probe")
		return
	}
	if err != nil {
		s.Logger.Warn("api_history_error", zap.String("probe", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
