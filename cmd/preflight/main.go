// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/hamed0406/speedcheck/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	if cfg.ProbesFile != "" {
		ps, err := config.LoadProbes(cfg.ProbesFile, cfg.Probes)
		if err != nil {
			fail(err.Error())
			os.Exit(1)
		}
		cfg.Probes = ps
		ok("PROBES_FILE=" + cfg.ProbesFile)
	}

	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
		os.Exit(1)
	}

	ok("BASE_URL=" + cfg.BaseURL)
	ok("metrics on " + cfg.MetricsAddr())

	switch {
	case cfg.AuthEnabled():
		ok("basic auth enabled for " + cfg.HTTPUser)
	case cfg.AuthHalfSet():
		warn("only one of HTTP_USER / HTTP_PASSWORD is set; basic auth stays disabled.")
	default:
		ok("basic auth disabled")
	}

	if len(cfg.StatusAPIKeys) == 0 {
		warn("STATUS_API_KEYS empty; /api is open to anyone who can reach the metrics port.")
	}
	if cfg.LogDir == "" {
		warn("LOG_DIR empty; logging to stderr only.")
	}

	for _, p := range cfg.Probes {
		ok(fmt.Sprintf("probe %s: GET %s every %s (timeout %s, fast first run %t)",
			p.Name, p.Path, p.Interval, p.Timeout, p.FastFirstRun))
	}

	ok("preflight passed")
}
