package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// ProbeConfig is the tunable part of one check.
type ProbeConfig struct {
	Name         string
	Path         string
	Timeout      time.Duration
	Interval     time.Duration
	FastFirstRun bool
	Throughput   bool
}

// DefaultProbes returns the ping, text and stream checks.
func DefaultProbes() []ProbeConfig {
	return []ProbeConfig{
		{Name: "ping", Path: "/ping", Timeout: 10 * time.Second, Interval: 10 * time.Second, FastFirstRun: true},
		{Name: "text", Path: "/text", Timeout: 15 * time.Second, Interval: 30 * time.Second, FastFirstRun: true},
		{Name: "stream", Path: "/stream", Timeout: 30 * time.Second, Interval: 5 * time.Minute, FastFirstRun: true, Throughput: true},
	}
}

type Config struct {
	BaseURL       string   // target service, e.g. http://localhost:5000
	MetricsHost   string   // metrics/status bind host
	MetricsPort   int      // metrics/status bind port
	HTTPUser      string   // basic auth user for the target
	HTTPPassword  string   // basic auth password for the target
	LogDir        string   // rotated JSON logs; empty logs to stderr only
	LogLevel      string   // debug | info | warn | error
	ProbesFile    string   // optional YAML overrides for Probes
	StatusAPIKeys []string // keys for /api; empty leaves it open
	StatusRPM     int      // per-IP requests per minute on /api; 0 disables
	StatusBurst   int

	Probes []ProbeConfig
}

// FromEnv reads the probe configuration. Malformed numbers fall back to
// defaults; Validate reports what is still unusable.
func FromEnv() Config {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}

	host := os.Getenv("METRICS_HOST")
	if host == "" {
		host = "0.0.0.0"
	}

	port := 3997
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			port = n
		}
	}

	rpm := 120
	if v := os.Getenv("STATUS_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			rpm = n
		}
	}
	burst := 60
	if v := os.Getenv("STATUS_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}

	return Config{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		MetricsHost:   host,
		MetricsPort:   port,
		HTTPUser:      os.Getenv("HTTP_USER"),
		HTTPPassword:  os.Getenv("HTTP_PASSWORD"),
		LogDir:        os.Getenv("LOG_DIR"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		ProbesFile:    os.Getenv("PROBES_FILE"),
		StatusAPIKeys: splitList(os.Getenv("STATUS_API_KEYS")),
		StatusRPM:     rpm,
		StatusBurst:   burst,
		Probes:        DefaultProbes(),
	}
}

// MetricsAddr is the listen address of the metrics/status server.
func (c Config) MetricsAddr() string {
	return net.JoinHostPort(c.MetricsHost, strconv.Itoa(c.MetricsPort))
}

// AuthEnabled reports whether basic auth is sent to the target.
func (c Config) AuthEnabled() bool {
	return c.HTTPUser != "" && c.HTTPPassword != ""
}

// AuthHalfSet reports a username without password or the reverse; auth
// stays disabled in that case.
func (c Config) AuthHalfSet() bool {
	return (c.HTTPUser == "") != (c.HTTPPassword == "")
}

// Validate returns every problem found, combined.
func (c Config) Validate() error {
	var err error

	if u, perr := url.Parse(c.BaseURL); perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("BASE_URL %q: want an http(s) URL with a host", c.BaseURL))
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		err = multierr.Append(err, fmt.Errorf("METRICS_PORT %d: out of range", c.MetricsPort))
	}
	if len(c.Probes) == 0 {
		err = multierr.Append(err, errors.New("no probes configured"))
	}

	seen := make(map[string]bool, len(c.Probes))
	for _, p := range c.Probes {
		if p.Name == "" {
			err = multierr.Append(err, errors.New("probe without name"))
			continue
		}
		if seen[p.Name] {
			err = multierr.Append(err, fmt.Errorf("probe %q: duplicate name", p.Name))
		}
		seen[p.Name] = true
		if !strings.HasPrefix(p.Path, "/") {
			err = multierr.Append(err, fmt.Errorf("probe %q: path %q must start with /", p.Name, p.Path))
		}
		if p.Timeout <= 0 {
			err = multierr.Append(err, fmt.Errorf("probe %q: timeout must be positive", p.Name))
		}
		if p.Interval <= 0 {
			err = multierr.Append(err, fmt.Errorf("probe %q: interval must be positive", p.Name))
		}
	}
	return err
}

// TargetConfig configures the target service.
type TargetConfig struct {
	Addr     string
	LogDir   string
	LogLevel string
}

func TargetFromEnv() TargetConfig {
	addr := os.Getenv("TARGET_ADDR")
	if addr == "" {
		addr = "0.0.0.0:5000"
	}
	return TargetConfig{
		Addr:     addr,
		LogDir:   os.Getenv("LOG_DIR"),
		LogLevel: os.Getenv("LOG_LEVEL"),
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
