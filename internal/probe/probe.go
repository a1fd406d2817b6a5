package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/speedcheck/internal/domain"
	"github.com/hamed0406/speedcheck/internal/metrics"
	"github.com/hamed0406/speedcheck/internal/repo"
)

// Definition describes one check. It is not modified after New.
type Definition struct {
	Name     string
	Path     string
	Timeout  time.Duration
	Interval time.Duration
	// FirstRunFraction scales Interval for the first firing, in (0, 1].
	FirstRunFraction float64

	Histogram  metrics.Observer
	Gauge      metrics.Setter
	Throughput metrics.Setter // nil unless the check reports bytes/sec
}

type Probe struct {
	def       Definition
	requester Requester
	logger    *zap.Logger
	results   repo.ResultStore
	now       metrics.Clock
}

type Option func(*Probe)

// WithResults records every run into store.
func WithResults(store repo.ResultStore) Option {
	return func(p *Probe) { p.results = store }
}

// WithClock replaces time.Now for duration and throughput measurement.
func WithClock(now metrics.Clock) Option {
	return func(p *Probe) { p.now = now }
}

func New(def Definition, r Requester, logger *zap.Logger, opts ...Option) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	if def.FirstRunFraction <= 0 || def.FirstRunFraction > 1 {
		def.FirstRunFraction = 1
	}
	p := &Probe{
		def:       def,
		requester: r,
		logger:    logger.With(zap.String("probe", def.Name)),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Probe) Definition() Definition { return p.def }

func (p *Probe) Name() string { return p.def.Name }

func (p *Probe) Interval() time.Duration { return p.def.Interval }

// FirstDelay is the wait before the first firing.
func (p *Probe) FirstDelay() time.Duration {
	return time.Duration(float64(p.def.Interval) * p.def.FirstRunFraction)
}

// SafeExecute runs the request and never fails: any error or panic is
// logged with a stack trace and reported as zero bytes.
func (p *Probe) SafeExecute(ctx context.Context) int64 {
	out, _ := p.safeDo(ctx)
	return out.Bytes
}

func (p *Probe) safeDo(ctx context.Context) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			p.logger.Error("probe_failed",
				zap.String("path", p.def.Path),
				zap.Error(err),
				zap.Stack("stacktrace"),
			)
			out = Outcome{StatusCode: out.StatusCode}
		}
	}()
	return p.requester.Do(ctx, p.def.Path, p.def.Timeout)
}

// Run performs one measured invocation. The whole call, failure handling
// included, is timed into the histogram and last gauge.
func (p *Probe) Run(ctx context.Context) {
	var (
		out       Outcome
		err       error
		bps       float64
		startedAt = p.now()
	)

	timer := metrics.NewTimer(p.now, p.def.Histogram, p.def.Gauge)
	defer func() {
		d := timer.ObserveDuration()
		p.record(ctx, startedAt, d, out, bps, err)
	}()

	start := p.now()
	out, err = p.safeDo(ctx)
	elapsed := p.now().Sub(start)

	if p.def.Throughput != nil {
		if v, ok := Throughput(out.Bytes, elapsed); ok {
			bps = v
			p.def.Throughput.Set(v)
		}
	}
}

// Throughput returns bytes per second when both inputs are positive.
func Throughput(bytes int64, elapsed time.Duration) (float64, bool) {
	if bytes <= 0 || elapsed <= 0 {
		return 0, false
	}
	return float64(bytes) / elapsed.Seconds(), true
}

func (p *Probe) record(ctx context.Context, startedAt time.Time, d time.Duration, out Outcome, bps float64, err error) {
	if p.results == nil {
		return
	}
	r := &domain.ProbeResult{
		RunID:           uuid.NewString(),
		Probe:           p.def.Name,
		Path:            p.def.Path,
		OK:              err == nil && out.StatusCode == http.StatusOK,
		StatusCode:      out.StatusCode,
		Bytes:           out.Bytes,
		DurationSeconds: d.Seconds(),
		ThroughputBPS:   bps,
		StartedAt:       startedAt.UTC(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	// the parent context may already be cancelled at shutdown
	if aerr := p.results.Append(context.WithoutCancel(ctx), r); aerr != nil {
		p.logger.Warn("probe_result_append_error", zap.Error(aerr))
	}
}
