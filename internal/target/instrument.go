package target

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RequestBuckets covers in-process handler latencies.
var RequestBuckets = []float64{.0001, .0002, .0003, .0005, .00075, .001, .005, .01, .1, 1}

// Instrumentation records per-route request metrics.
type Instrumentation struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

func NewInstrumentation(reg prometheus.Registerer) *Instrumentation {
	ins := &Instrumentation{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Time spent serving HTTP requests.",
				Buckets: RequestBuckets,
			},
			[]string{"method", "path", "status"},
		),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served.",
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(ins.duration, ins.total)
	return ins
}

func (ins *Instrumentation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, path, strconv.Itoa(status)}
		ins.duration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		ins.total.WithLabelValues(labels...).Inc()
	})
}
