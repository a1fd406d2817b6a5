package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hamed0406/speedcheck/internal/domain"
	"github.com/hamed0406/speedcheck/internal/repo"
)

// DefaultRetention is how many results are kept per probe.
const DefaultRetention = 100

type Store struct {
	mu        sync.RWMutex
	retention int
	results   map[string][]domain.ProbeResult // oldest first
}

// New returns a store keeping up to retention results per probe.
// A non-positive retention selects DefaultRetention.
func New(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		retention: retention,
		results:   make(map[string][]domain.ProbeResult),
	}
}

func (m *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	if r == nil || r.Probe == "" {
		return fmt.Errorf("append: result without probe name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := append(m.results[r.Probe], *r)
	if len(rs) > m.retention {
		rs = append(rs[:0:0], rs[len(rs)-m.retention:]...)
	}
	m.results[r.Probe] = rs
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ProbeResult, 0, len(m.results))
	for _, rs := range m.results {
		if len(rs) > 0 {
			out = append(out, rs[len(rs)-1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Probe < out[j].Probe })
	return out, nil
}

func (m *Store) History(ctx context.Context, probe string) ([]domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs, ok := m.results[probe]
	if !ok {
		return nil, fmt.Errorf("history %q: %w", probe, repo.ErrUnknownProbe)
	}
	out := make([]domain.ProbeResult, len(rs))
	for i, r := range rs {
		out[len(rs)-1-i] = r
	}
	return out, nil
}
