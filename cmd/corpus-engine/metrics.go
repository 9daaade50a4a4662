// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics [source]",
	Short: "Show per-source call statistics",
	Long: `Metrics reports cumulative per-source statistics: request counts,
success rate, time spent, and how many papers each source contributed.
Pass a source name to show just that source.`,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	e, err := newEngine(engineConfig())
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	metrics, err := e.store.SourceMetrics(ctx)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		m, err := e.store.SourceMetric(ctx, args[0])
		if err != nil {
			return err
		}
		metrics = append(metrics[:0], *m)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(metrics)
	}

	if len(metrics) == 0 {
		fmt.Println("No source calls recorded.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-16s  %8s  %8s  %8s  %8s  %8s  %9s\n",
		"Source", "Calls", "OK", "Failed", "Papers", "Unique", "Seconds")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 78))
	for _, m := range metrics {
		fmt.Fprintf(os.Stdout, "%-16s  %8d  %8d  %8d  %8d  %8d  %9.1f\n",
			m.Source, m.TotalRequests, m.SuccessfulRequests, m.FailedRequests,
			m.PapersReturned, m.UniquePapers, m.TotalSeconds)
	}
	return nil
}
