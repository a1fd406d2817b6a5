package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/speedcheck/internal/domain"
)

// ErrUnknownProbe is returned when no result was ever recorded for a probe.
var ErrUnknownProbe = errors.New("unknown probe")

// ResultStore keeps recent probe results for the status API.
type ResultStore interface {
	Append(ctx context.Context, r *domain.ProbeResult) error
	// Latest returns the newest result of every probe, ordered by probe name.
	Latest(ctx context.Context) ([]domain.ProbeResult, error)
	// History returns the retained results of one probe, newest first.
	History(ctx context.Context, probe string) ([]domain.ProbeResult, error)
}
