// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/corpus-engine/internal/ident"
)

var viewCmd = &cobra.Command{
	Use:   "view [accession]",
	Short: "Render a dataset's aggregate state as YAML or JSON",
	Long: `View assembles a dataset's complete downstream state: its publications
grouped by relationship, every discovered URL, every download attempt, and
extraction results with quality grades. Views are served from an in-process
cache; use --fresh to bypass it.`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().Bool("json", false, "output as JSON instead of YAML")
	viewCmd.Flags().Bool("fresh", false, "invalidate the cached view first")

	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one dataset accession")
	}
	accession, err := ident.NormalizeDataset(args[0])
	if err != nil {
		return err
	}

	e, err := newEngine(engineConfig())
	if err != nil {
		return err
	}
	defer e.close()

	if fresh, _ := cmd.Flags().GetBool("fresh"); fresh {
		e.cache.Invalidate(accession)
	}

	view, err := e.cache.GetView(context.Background(), accession)
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	out, err := yaml.Marshal(view)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
