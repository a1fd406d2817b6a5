package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/speedcheck/internal/metrics"
	"github.com/hamed0406/speedcheck/internal/repo/memory"
)

// fakeClock advances only when a fake request says so.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRequester struct {
	clock *fakeClock
	takes time.Duration
	out   Outcome
	err   error
	panic bool
	calls int
}

func (f *fakeRequester) Do(ctx context.Context, path string, timeout time.Duration) (Outcome, error) {
	f.calls++
	f.clock.Advance(f.takes)
	if f.panic {
		panic("unexpected nil body")
	}
	return f.out, f.err
}

type recHistogram struct{ got []float64 }

func (h *recHistogram) Observe(v float64) { h.got = append(h.got, v) }

type recGauge struct {
	sets int
	v    float64
}

func (g *recGauge) Set(v float64) { g.sets++; g.v = v }

func newClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func TestProbe_PingSuccessRecordsLatency(t *testing.T) {
	clock := newClock()
	req := &fakeRequester{clock: clock, takes: 5 * time.Millisecond, out: Outcome{Bytes: 2, StatusCode: 200}}
	h, g := &recHistogram{}, &recGauge{}

	p := New(Definition{Name: "ping", Path: "/ping", Timeout: 10 * time.Second, Histogram: h, Gauge: g},
		req, zap.NewNop(), WithClock(clock.Now))
	p.Run(context.Background())

	if len(h.got) != 1 || h.got[0] != 0.005 {
		t.Fatalf("want one 0.005 observation, got %v", h.got)
	}
	if g.sets != 1 || g.v != 0.005 {
		t.Fatalf("want gauge 0.005 set once, got %+v", g)
	}
}

func TestProbe_FailureStillRecordsLatency(t *testing.T) {
	clock := newClock()
	req := &fakeRequester{
		clock: clock,
		takes: 15 * time.Second,
		err:   &NetworkError{Op: "request", URL: "http://t/text", Err: context.DeadlineExceeded},
	}
	h, g := &recHistogram{}, &recGauge{}

	core, logs := observer.New(zap.InfoLevel)
	p := New(Definition{Name: "text", Path: "/text", Timeout: 15 * time.Second, Histogram: h, Gauge: g},
		req, zap.New(core), WithClock(clock.Now))
	p.Run(context.Background())

	if len(h.got) != 1 || h.got[0] != 15 {
		t.Fatalf("want one 15s observation, got %v", h.got)
	}
	if g.v != 15 {
		t.Fatalf("gauge=%v want 15", g.v)
	}
	failed := logs.FilterMessage("probe_failed").All()
	if len(failed) != 1 {
		t.Fatalf("want one probe_failed line, got %d", len(failed))
	}
	if _, ok := failed[0].ContextMap()["stacktrace"]; !ok {
		t.Fatalf("failure log should carry a stack trace")
	}
}

func TestProbe_SafeExecuteNeverFails(t *testing.T) {
	clock := newClock()
	cases := map[string]*fakeRequester{
		"network": {clock: clock, err: &NetworkError{Op: "read", Err: errors.New("connection reset")}, out: Outcome{Bytes: 500}},
		"other":   {clock: clock, err: errors.New("weird")},
		"panic":   {clock: clock, panic: true},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			p := New(Definition{Name: "ping", Path: "/ping"}, req, nil)
			if n := p.SafeExecute(context.Background()); n != 0 {
				t.Fatalf("want 0 bytes, got %d", n)
			}
		})
	}
}

func TestProbe_StreamThroughput(t *testing.T) {
	clock := newClock()
	req := &fakeRequester{clock: clock, takes: 2 * time.Second, out: Outcome{Bytes: 10_485_760, StatusCode: 200}}
	h, g, tp := &recHistogram{}, &recGauge{}, &recGauge{}

	p := New(Definition{Name: "stream", Path: "/stream", Histogram: h, Gauge: g, Throughput: tp},
		req, nil, WithClock(clock.Now))
	p.Run(context.Background())

	if tp.sets != 1 || tp.v != 5_242_880 {
		t.Fatalf("want throughput 5242880, got %+v", tp)
	}
	if len(h.got) != 1 || h.got[0] != 2 {
		t.Fatalf("want one 2s observation, got %v", h.got)
	}
}

func TestProbe_StreamThroughputKeptOnFailure(t *testing.T) {
	clock := newClock()
	tp := &recGauge{v: 1234}

	failing := &fakeRequester{clock: clock, takes: time.Second, err: errors.New("reset")}
	p := New(Definition{Name: "stream", Path: "/stream", Throughput: tp}, failing, nil, WithClock(clock.Now))
	p.Run(context.Background())

	instant := &fakeRequester{clock: clock, takes: 0, out: Outcome{Bytes: 100, StatusCode: 200}}
	p = New(Definition{Name: "stream", Path: "/stream", Throughput: tp}, instant, nil, WithClock(clock.Now))
	p.Run(context.Background())

	if tp.sets != 0 || tp.v != 1234 {
		t.Fatalf("throughput must keep last value, got %+v", tp)
	}
}

func TestThroughput(t *testing.T) {
	cases := []struct {
		bytes   int64
		elapsed time.Duration
		want    float64
		ok      bool
	}{
		{10_485_760, 2 * time.Second, 5_242_880, true},
		{1000, 500 * time.Millisecond, 2000, true},
		{0, time.Second, 0, false},
		{1000, 0, 0, false},
	}
	for _, c := range cases {
		got, ok := Throughput(c.bytes, c.elapsed)
		if got != c.want || ok != c.ok {
			t.Fatalf("Throughput(%d, %v)=(%v,%v) want (%v,%v)", c.bytes, c.elapsed, got, ok, c.want, c.ok)
		}
	}
}

func TestProbe_RecordsResults(t *testing.T) {
	clock := newClock()
	store := memory.New(0)

	ok := &fakeRequester{clock: clock, takes: time.Second, out: Outcome{Bytes: 2000, StatusCode: 200}}
	p := New(Definition{Name: "stream", Path: "/stream", Throughput: &recGauge{}}, ok, nil,
		WithClock(clock.Now), WithResults(store))
	p.Run(context.Background())

	bad := &fakeRequester{clock: clock, takes: time.Second, out: Outcome{Bytes: 12, StatusCode: 503}}
	p = New(Definition{Name: "stream", Path: "/stream"}, bad, nil, WithClock(clock.Now), WithResults(store))
	p.Run(context.Background())

	h, err := store.History(context.Background(), "stream")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h) != 2 {
		t.Fatalf("want 2 results, got %d", len(h))
	}
	if h[1].RunID == "" || !h[1].OK || h[1].ThroughputBPS != 2000 || h[1].DurationSeconds != 1 {
		t.Fatalf("unexpected first result: %+v", h[1])
	}
	if h[0].OK || h[0].StatusCode != 503 {
		t.Fatalf("503 should not be OK: %+v", h[0])
	}
}

func TestProbe_FirstDelay(t *testing.T) {
	p := New(Definition{Name: "ping", Interval: 10 * time.Second, FirstRunFraction: 0.01}, nil, nil)
	if got := p.FirstDelay(); got != 100*time.Millisecond {
		t.Fatalf("FirstDelay=%v want 100ms", got)
	}
	p = New(Definition{Name: "ping", Interval: 10 * time.Second}, nil, nil)
	if got := p.FirstDelay(); got != 10*time.Second {
		t.Fatalf("FirstDelay=%v want full interval", got)
	}
}

// --- against a real target and registry ---

func sampleCount(t *testing.T, reg *metrics.Registry, name string) uint64 {
	t.Helper()
	m := findMetric(t, reg, name, nil)
	if m == nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func counterValue(t *testing.T, reg *metrics.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func findMetric(t *testing.T, reg *metrics.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func newRegistryProbe(t *testing.T, baseURL, name, path string, timeout time.Duration) (*Probe, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	check, err := reg.Check(name, false)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	ex := NewExecutor(baseURL, Credentials{}, reg, nil)
	p := New(Definition{Name: name, Path: path, Timeout: timeout, Histogram: check.Latency, Gauge: check.Last}, ex, nil)
	return p, reg
}

func TestProbe_ServiceUnavailable(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer s.Close()

	p, reg := newRegistryProbe(t, s.URL, "ping", "/ping", 2*time.Second)
	p.Run(context.Background())

	if got := counterValue(t, reg, "speedcheck_http_status_total", map[string]string{"code": "503"}); got != 1 {
		t.Fatalf("status{503}=%v want 1", got)
	}
	if got := counterValue(t, reg, "speedcheck_errors_total", nil); got != 1 {
		t.Fatalf("errors=%v want 1", got)
	}
	if got := sampleCount(t, reg, "speedcheck_ping"); got != 1 {
		t.Fatalf("ping samples=%d want 1", got)
	}
}

func TestProbe_TimeoutCountsOnceAndObserves(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer s.Close()

	p, reg := newRegistryProbe(t, s.URL, "text", "/text", 50*time.Millisecond)
	p.Run(context.Background())

	if got := counterValue(t, reg, "speedcheck_errors_total", nil); got != 1 {
		t.Fatalf("errors=%v want 1", got)
	}
	m := findMetric(t, reg, "speedcheck_text", nil)
	if m.GetHistogram().GetSampleCount() != 1 || m.GetHistogram().GetSampleSum() < 0.05 {
		t.Fatalf("want one observation >= timeout, got %+v", m.GetHistogram())
	}
}

func TestProbe_RepeatedPingsGrowSampleCount(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer s.Close()

	p, reg := newRegistryProbe(t, s.URL, "ping", "/ping", 2*time.Second)
	var last uint64
	for i := 0; i < 3; i++ {
		p.Run(context.Background())
		n := sampleCount(t, reg, "speedcheck_ping")
		if n < last {
			t.Fatalf("sample count decreased: %d -> %d", last, n)
		}
		last = n
	}
	if last != 3 {
		t.Fatalf("want 3 samples, got %d", last)
	}
	if v := findMetric(t, reg, "speedcheck_ping_last", nil).GetGauge().GetValue(); v <= 0 || v > 2 {
		t.Fatalf("last gauge %v outside (0, timeout]", v)
	}
}

func TestProbe_FastPingLandsInFirstBucket(t *testing.T) {
	reg := metrics.NewRegistry()
	check, err := reg.Check("ping", false)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	clock := newClock()
	req := &fakeRequester{clock: clock, takes: 5 * time.Millisecond, out: Outcome{Bytes: 2, StatusCode: 200}}
	p := New(Definition{Name: "ping", Path: "/ping", Histogram: check.Latency, Gauge: check.Last},
		req, nil, WithClock(clock.Now))
	p.Run(context.Background())

	h := findMetric(t, reg, "speedcheck_ping", nil).GetHistogram()
	if b := h.GetBucket()[0]; b.GetUpperBound() != 0.01 || b.GetCumulativeCount() != 1 {
		t.Fatalf("want the 5ms ping in the .01 bucket, got %+v", b)
	}
	if got := counterValue(t, reg, "speedcheck_errors_total", nil); got != 0 {
		t.Fatalf("errors=%v want 0", got)
	}
}
