package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type probeOverride struct {
	Name         string        `yaml:"name"`
	Path         string        `yaml:"path"`
	Timeout      time.Duration `yaml:"timeout"`
	Interval     time.Duration `yaml:"interval"`
	FastFirstRun *bool         `yaml:"fast_first_run"`
	Throughput   *bool         `yaml:"throughput"`
}

type probesFile struct {
	Probes []probeOverride `yaml:"probes"`
}

// LoadProbes merges the probes listed in the YAML file at path into base.
// Entries match by name and only the fields present override the base
// value. Unknown names are appended as new probes.
//
//	probes:
//	  - name: stream
//	    interval: 10m
//	    timeout: 45s
//	    fast_first_run: true
//	    throughput: true
func LoadProbes(path string, base []ProbeConfig) ([]ProbeConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file %s: %w", path, err)
	}
	var f probesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("could not parse YAML %s: %w", path, err)
	}

	out := append([]ProbeConfig(nil), base...)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Name] = i
	}
	for _, o := range f.Probes {
		if o.Name == "" {
			return nil, fmt.Errorf("%s: probe entry without name", path)
		}
		i, ok := index[o.Name]
		if !ok {
			i = len(out)
			index[o.Name] = i
			out = append(out, ProbeConfig{Name: o.Name})
		}
		cur := out[i]
		if o.Path != "" {
			cur.Path = o.Path
		}
		if o.Timeout != 0 {
			cur.Timeout = o.Timeout
		}
		if o.Interval != 0 {
			cur.Interval = o.Interval
		}
		if o.FastFirstRun != nil {
			cur.FastFirstRun = *o.FastFirstRun
		}
		if o.Throughput != nil {
			cur.Throughput = *o.Throughput
		}
		out[i] = cur
	}
	return out, nil
}
