package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ChunkSize is the read size used while draining response bodies.
const ChunkSize = 1000

type Executor struct {
	BaseURL     string
	Client      *http.Client
	Credentials Credentials
	Counters    Counters
	Logger      *zap.Logger
}

// NewExecutor returns an executor for baseURL. Timeouts are applied per
// request through the context, so the client carries none of its own.
func NewExecutor(baseURL string, creds Credentials, counters Counters, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counters == nil {
		counters = nopCounters{}
	}
	return &Executor{
		BaseURL:     baseURL,
		Client:      &http.Client{},
		Credentials: creds,
		Counters:    counters,
		Logger:      logger,
	}
}

// Execute fetches path and returns the number of body bytes read.
func (e *Executor) Execute(ctx context.Context, path string, timeout time.Duration) (int64, error) {
	out, err := e.Do(ctx, path, timeout)
	if err != nil {
		return 0, err
	}
	return out.Bytes, nil
}

// Do issues GET BaseURL+path, records the status code, and drains the body.
// Every returned error, and every panic, increments the error counter once.
// A non-200 response increments it too, independently.
func (e *Executor) Do(ctx context.Context, path string, timeout time.Duration) (out Outcome, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.Counters.IncError()
			panic(r)
		}
		if err != nil {
			e.Counters.IncError()
			out = Outcome{StatusCode: out.StatusCode}
		}
		out.Elapsed = time.Since(start)
	}()

	url := e.BaseURL + path

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return out, &NetworkError{Op: "request", URL: url, Err: err}
	}
	if e.Credentials.Enabled() {
		req.SetBasicAuth(e.Credentials.Username, e.Credentials.Password)
	}

	resp, err := e.client().Do(req)
	if err != nil {
		return out, &NetworkError{Op: "request", URL: url, Err: err}
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	e.Logger.Info("probe_request",
		zap.String("method", req.Method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)

	e.Counters.ObserveStatus(resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		e.Counters.IncError()
	}

	buf := make([]byte, ChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		out.Bytes += int64(n)
		if errors.Is(rerr, io.EOF) {
			return out, nil
		}
		if rerr != nil {
			return out, &NetworkError{Op: "read", URL: url, Err: rerr}
		}
	}
}

func (e *Executor) client() *http.Client {
	if e.Client == nil {
		return http.DefaultClient
	}
	return e.Client
}

type nopCounters struct{}

func (nopCounters) ObserveStatus(int) {}
func (nopCounters) IncError()         {}
