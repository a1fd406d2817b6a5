package domain

import "time"

// ProbeResult is one completed probe invocation as shown by the status API.
// It is kept in memory only.
type ProbeResult struct {
	RunID           string    `json:"run_id"`
	Probe           string    `json:"probe"`
	Path            string    `json:"path"`
	OK              bool      `json:"ok"`
	StatusCode      int       `json:"status_code,omitempty"` // 0 when no response arrived
	Bytes           int64     `json:"bytes"`
	DurationSeconds float64   `json:"duration_seconds"`
	ThroughputBPS   float64   `json:"throughput_bps,omitempty"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
}
