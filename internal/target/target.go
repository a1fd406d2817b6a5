// Package target implements the service the probe measures.
package target

import (
	"crypto/rand"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	PingBody = "OK"

	textLine    = "Here is some text content, but not an awful lot. \n"
	TextRepeats = 10000 // about 500 kB

	StreamChunks    = 1024
	StreamChunkSize = 10 * 1024 // 10 MiB in total
)

// TextBody is the payload of /text.
var TextBody = strings.Repeat(textLine, TextRepeats)

type Handler struct {
	Logger *zap.Logger
	// Random feeds /stream; crypto/rand when nil.
	Random io.Reader
}

// NewRouter wires the endpoints plus /metrics for reg.
func NewRouter(h *Handler, reg *prometheus.Registry) http.Handler {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	if h.Random == nil {
		h.Random = rand.Reader
	}
	ins := NewInstrumentation(reg)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(ins.Middleware)

	r.Get("/ping", h.ping)
	r.Get("/text", h.text)
	r.Get("/stream", h.stream)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, PingBody)
}

func (h *Handler) text(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, TextBody)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, StreamChunkSize)
	for i := 0; i < StreamChunks; i++ {
		if _, err := io.ReadFull(h.Random, buf); err != nil {
			h.Logger.Error("stream_random_error", zap.Int("chunk", i), zap.Error(err))
			return
		}
		if _, err := w.Write(buf); err != nil {
			// client went away
			h.Logger.Debug("stream_write_error", zap.Int("chunk", i), zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
