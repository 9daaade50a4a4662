// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/store"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the append-only pipeline event log",
	Long: `Events lists pipeline audit records, newest last. Filter by run ID,
dataset accession, or stage (discovery, url_collection, download,
extraction).`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().String("run", "", "filter by run ID")
	eventsCmd.Flags().String("dataset", "", "filter by dataset accession")
	eventsCmd.Flags().String("stage", "", "filter by stage")
	eventsCmd.Flags().Int("limit", 100, "maximum events to list (0 = all)")
	eventsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	e, err := newEngine(engineConfig())
	if err != nil {
		return err
	}
	defer e.close()

	runID, _ := cmd.Flags().GetString("run")
	dataset, _ := cmd.Flags().GetString("dataset")
	stage, _ := cmd.Flags().GetString("stage")
	limit, _ := cmd.Flags().GetInt("limit")

	f := store.EventFilter{
		RunID:     runID,
		DatasetID: dataset,
		Stage:     types.Stage(stage),
		Limit:     limit,
	}
	events, err := e.store.Events(context.Background(), f)
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Println("No events found.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-12s  %-14s  %-8s  %-10s  %8s  %s\n",
		"Dataset", "Stage", "Type", "Pub", "ms", "Message")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, ev := range events {
		pub := "-"
		if ev.PublicationID != 0 {
			pub = fmt.Sprintf("%d", ev.PublicationID)
		}
		msg := ev.Message
		if ev.Error != "" {
			msg = ev.Error
		}
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-12s  %-14s  %-8s  %-10s  %8d  %s\n",
			ev.DatasetID, ev.Stage, ev.Type, pub, ev.DurationMS, msg)
	}
	fmt.Fprintf(os.Stdout, "\n%d events\n", len(events))
	return nil
}
