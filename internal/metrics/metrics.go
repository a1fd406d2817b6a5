package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric the probe exports.
const Namespace = "speedcheck"

// LatencyBuckets spans fast pings up to the longest probe timeout.
var LatencyBuckets = []float64{.01, .05, .1, .25, .5, .75, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12, 15, 20, 30}

// Check holds the metric handles of one probe.
// Throughput is nil unless requested at registration.
type Check struct {
	Latency    prometheus.Histogram
	Last       prometheus.Gauge
	Throughput prometheus.Gauge
}

// Registry is the shared metrics sink. All methods are safe for concurrent use.
type Registry struct {
	reg *prometheus.Registry

	statusCodes *prometheus.CounterVec
	errors      prometheus.Counter

	mu     sync.Mutex
	checks map[string]*Check
}

// NewRegistry builds a registry with the status-code and error counters
// plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		statusCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_status_total",
				Help:      "The number of HTTP status codes seen.",
			},
			[]string{"code"},
		),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Number of errors while testing.",
		}),
		checks: make(map[string]*Check),
	}
	r.reg.MustRegister(
		r.statusCodes,
		r.errors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Check registers (once) and returns the handles for the named probe.
// Asking again for the same name returns the existing handles; asking
// for throughput on a check registered without it is an error.
func (r *Registry) Check(name string, throughput bool) (*Check, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.checks[name]; ok {
		if throughput && c.Throughput == nil {
			return nil, fmt.Errorf("check %q already registered without throughput", name)
		}
		return c, nil
	}

	c := &Check{
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      name,
			Help:      fmt.Sprintf("Testing the %s latency", name),
			Buckets:   LatencyBuckets,
		}),
		Last: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      name + "_last",
			Help:      fmt.Sprintf("The last measured time of %s", name),
		}),
	}
	cs := []prometheus.Collector{c.Latency, c.Last}
	if throughput {
		c.Throughput = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      name + "_speed",
			Help:      fmt.Sprintf("The last speed of fetching the %s in bytes/sec", name),
		})
		cs = append(cs, c.Throughput)
	}
	for _, col := range cs {
		if err := r.reg.Register(col); err != nil {
			return nil, fmt.Errorf("register %s metrics: %w", name, err)
		}
	}
	r.checks[name] = c
	return c, nil
}

// ObserveStatus counts one response with the given status code.
func (r *Registry) ObserveStatus(code int) {
	r.statusCodes.WithLabelValues(strconv.Itoa(code)).Inc()
}

// IncError bumps the global error counter.
func (r *Registry) IncError() {
	r.errors.Inc()
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
