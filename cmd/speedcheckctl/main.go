package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/speedcheck/internal/domain"
	"github.com/hamed0406/speedcheck/internal/metrics"
	"github.com/hamed0406/speedcheck/internal/scrape"
)

var (
	addr    string
	apiKey  string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "speedcheckctl",
	Short:        "Inspect a running speedcheck probe",
	SilenceUsage: true,
}

var statusCmd = &cobra.Command{
	Use:   "status [probe]",
	Short: "Show the latest result of every probe, or the history of one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/probes"
		if len(args) == 1 {
			path += "/" + args[0]
		}
		rows, err := getResults(cmd.Context(), strings.TrimRight(addr, "/")+path)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROBE\tOK\tSTATUS\tBYTES\tSECONDS\tBYTES/S\tSTARTED\tERROR")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%.3f\t%.0f\t%s\t%s\n",
				r.Probe, r.OK, r.StatusCode, r.Bytes, r.DurationSeconds, r.ThroughputBPS,
				r.StartedAt.Local().Format(time.RFC3339), r.Error)
		}
		return w.Flush()
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Scrape /metrics and summarise the probe counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		mfs, err := scrape.Fetch(ctx, http.DefaultClient, strings.TrimRight(addr, "/")+"/metrics")
		if err != nil {
			return err
		}
		s := scrape.Summarize(metrics.Namespace, mfs)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHECK\tSAMPLES\tMEAN(s)\tLAST(s)\tBYTES/S")
		for _, c := range s.Checks {
			fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.0f\n", c.Name, c.Samples, c.MeanSeconds(), c.LastSeconds, c.Throughput)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		codes := make([]string, 0, len(s.Status))
		for code := range s.Status {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Printf("\nerrors: %.0f\n", s.Errors)
		for _, code := range codes {
			fmt.Printf("HTTP %s: %.0f\n", code, s.Status[code])
		}
		return nil
	},
}

func getResults(ctx context.Context, url string) ([]domain.ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe returned status: %s", resp.Status)
	}
	var rows []domain.ProbeResult
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return rows, nil
}

func init() {
	defAddr := os.Getenv("SPEEDCHECK_ADDR")
	if defAddr == "" {
		defAddr = "http://localhost:3997"
	}
	rootCmd.PersistentFlags().StringVarP(&addr, "addr", "a", defAddr, "probe metrics/status base URL")
	rootCmd.PersistentFlags().StringVarP(&apiKey, "key", "k", os.Getenv("SPEEDCHECK_API_KEY"), "status API key")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.AddCommand(statusCmd, metricsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
