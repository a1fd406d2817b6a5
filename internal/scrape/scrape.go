// Package scrape reads a running probe's /metrics endpoint back into a
// compact summary.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// CheckSummary is what the probe last reported for one check.
type CheckSummary struct {
	Name        string
	Samples     uint64
	SumSeconds  float64
	LastSeconds float64
	Throughput  float64 // bytes/sec, 0 if not reported
}

func (c CheckSummary) MeanSeconds() float64 {
	if c.Samples == 0 {
		return 0
	}
	return c.SumSeconds / float64(c.Samples)
}

type Summary struct {
	Checks []CheckSummary     // ordered by name
	Status map[string]float64 // HTTP status code -> count
	Errors float64
}

// Fetch GETs url and parses the text exposition.
func Fetch(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse decodes a Prometheus text exposition. A partial result with a
// parse warning is still returned successfully.
func Parse(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// Summarize picks the families with the given namespace prefix
// (e.g. "speedcheck") out of mfs.
func Summarize(namespace string, mfs map[string]*dto.MetricFamily) Summary {
	prefix := namespace + "_"
	s := Summary{Status: make(map[string]float64)}
	checks := make(map[string]*CheckSummary)
	check := func(name string) *CheckSummary {
		c := checks[name]
		if c == nil {
			c = &CheckSummary{Name: name}
			checks[name] = c
		}
		return c
	}

	for name, mf := range mfs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		short := strings.TrimPrefix(name, prefix)
		switch {
		case short == "errors_total":
			s.Errors = sumFamily(mf)
		case short == "http_status_total":
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "code" {
						s.Status[lp.GetValue()] += m.GetCounter().GetValue()
					}
				}
			}
		case mf.GetType() == dto.MetricType_HISTOGRAM:
			c := check(short)
			for _, m := range mf.GetMetric() {
				c.Samples += m.GetHistogram().GetSampleCount()
				c.SumSeconds += m.GetHistogram().GetSampleSum()
			}
		case strings.HasSuffix(short, "_last"):
			check(strings.TrimSuffix(short, "_last")).LastSeconds = sumFamily(mf)
		case strings.HasSuffix(short, "_speed"):
			check(strings.TrimSuffix(short, "_speed")).Throughput = sumFamily(mf)
		}
	}

	for _, c := range checks {
		s.Checks = append(s.Checks, *c)
	}
	sort.Slice(s.Checks, func(i, j int) bool { return s.Checks[i].Name < s.Checks[j].Name })
	return s
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
