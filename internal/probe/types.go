package probe

import (
	"context"
	"fmt"
	"time"
)

// Outcome is the result of one completed request.
type Outcome struct {
	Bytes      int64
	StatusCode int
	Elapsed    time.Duration
}

// Requester performs a single GET of path bounded by timeout.
type Requester interface {
	Do(ctx context.Context, path string, timeout time.Duration) (Outcome, error)
}

// Counters receives the request classification signals.
type Counters interface {
	ObserveStatus(code int)
	IncError()
}

// Credentials enable basic auth only when both fields are set.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// NetworkError is returned for any transport-level failure: connection
// errors, timeouts, malformed responses and failures while draining the body.
type NetworkError struct {
	Op  string // "request" or "read"
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
