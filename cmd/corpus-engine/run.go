// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/corpus-engine/internal/cache"
	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/pipeline"
	"github.com/pdiddy/corpus-engine/internal/sources"
	"github.com/pdiddy/corpus-engine/internal/store"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// engine bundles the wired components every subcommand needs.
type engine struct {
	cfg   types.EngineConfig
	store *store.Store
	cache *cache.ViewCache
	coord *pipeline.Coordinator
}

// newEngine wires the store, HTTP client, source set, view cache, and
// coordinator from the given configuration.
func newEngine(cfg types.EngineConfig) (*engine, error) {
	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return nil, err
	}

	client := httputil.New(cfg.HTTP, cfg.Sources.InstitutionalProxyURL, cfg.Sources.RateLimits)
	set := sources.NewSet(client, cfg.Sources, st)
	vc := cache.New(st.CompleteView, cfg.Cache)
	coord := pipeline.New(st, vc, set, client, cfg, newLogger())

	return &engine{cfg: cfg, store: st, cache: vc, coord: coord}, nil
}

func (e *engine) close() {
	if err := e.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [accessions...]",
	Short: "Run the acquisition pipeline for one or more dataset accessions",
	Long: `Run takes dataset accessions (e.g. GSE189158) through the full pipeline:
citation discovery, URL collection, PDF download, and content extraction.
Runs are restartable; publications with an acquired PDF are skipped on
subsequent runs.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("no-discovery", false, "skip citation discovery")
	runCmd.Flags().Bool("no-download", false, "collect URLs but do not download")
	runCmd.Flags().Bool("no-extraction", false, "download PDFs but do not extract content")
	runCmd.Flags().Int("max-citing", 0, "cap citing papers per dataset (0 = no cap)")
	runCmd.Flags().String("summary", "", "also write run summaries to a YAML file")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more dataset accessions (e.g. GSE189158)")
	}

	cfg := engineConfig()
	if v, _ := cmd.Flags().GetBool("no-discovery"); v {
		cfg.Pipeline.EnableDiscovery = false
	}
	if v, _ := cmd.Flags().GetBool("no-download"); v {
		cfg.Pipeline.EnableDownload = false
	}
	if v, _ := cmd.Flags().GetBool("no-extraction"); v {
		cfg.Pipeline.EnableExtraction = false
	}
	if v, _ := cmd.Flags().GetInt("max-citing"); v > 0 {
		cfg.Pipeline.MaxCitingPapers = v
	}

	e, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	failed := 0
	var summaries []*types.RunSummary
	for _, accession := range args {
		summary, err := e.coord.Run(ctx, accession)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", accession, err)
			failed++
			continue
		}
		summaries = append(summaries, summary)
		out, merr := yaml.Marshal(summary)
		if merr != nil {
			return merr
		}
		fmt.Printf("---\n%s", out)
	}

	if path, _ := cmd.Flags().GetString("summary"); path != "" && len(summaries) > 0 {
		data, err := yaml.Marshal(summaries)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing summary file: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d dataset(s) failed", failed)
	}
	return nil
}
