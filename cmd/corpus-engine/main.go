// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the corpus-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/corpus-engine/internal/secrets"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, else the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the corpus-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "corpus-engine",
	Short: "Acquire the publication corpus around functional-genomics datasets",
	Long: `corpus-engine builds a local corpus of scientific literature around
functional-genomics dataset accessions. For each dataset it discovers the
original and citing publications, collects candidate full-text URLs from
open-access providers, downloads and validates PDFs, and extracts structured
content with quality grades.

Each operation is a subcommand: run executes the full pipeline for one or
more accessions, view renders a dataset's aggregate state, and events and
metrics expose the audit log and per-source statistics.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./corpus-engine.yaml or ~/.config/corpus-engine/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default corpus.db)")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug-level logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("corpus-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "corpus-engine"))
		}
	}

	viper.SetEnvPrefix("CORPUS_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig assembles the effective configuration: documented defaults,
// overridden by the config file and CORPUS_ENGINE_* environment variables,
// with credentials falling back to .secrets/.
func engineConfig() types.EngineConfig {
	cfg := types.DefaultEngineConfig()

	if v := viper.GetString("db_path"); v != "" {
		cfg.Store.DBPath = v
	}
	if db, _ := rootCmd.PersistentFlags().GetString("db"); db != "" {
		cfg.Store.DBPath = db
	}
	if v := viper.GetString("pdfs_root"); v != "" {
		cfg.Acquisition.PDFsRoot = v
	}
	if v := viper.GetInt("max_parallel_publications"); v > 0 {
		cfg.Pipeline.MaxParallelPublications = v
	}
	if v := viper.GetInt("max_citing_papers"); v > 0 {
		cfg.Pipeline.MaxCitingPapers = v
	}
	if viper.GetBool("disable_tls_verify") {
		cfg.HTTP.DisableTLSVerify = true
	}
	if viper.GetBool("skip_low_reliability") {
		cfg.Pipeline.SkipLowReliability = true
	}
	if viper.GetBool("probe_unknown_urls") {
		cfg.Sources.ProbeUnknownURLs = true
	}
	if viper.GetBool("enable_scihub") {
		cfg.Sources.EnableSciHub = true
	}
	if viper.GetBool("enable_libgen") {
		cfg.Sources.EnableLibGen = true
	}
	if v := viper.GetDuration("cache_ttl"); v > 0 {
		cfg.Cache.TTL = v
	}

	cfg.Sources.NCBIAPIKey = secretDefault("ncbi-api-key", viper.GetString("ncbi_api_key"))
	cfg.Sources.SemanticScholarAPIKey = secretDefault("semantic-scholar-api-key", viper.GetString("semantic_scholar_api_key"))
	cfg.Sources.COREAPIKey = secretDefault("core-api-key", viper.GetString("core_api_key"))
	cfg.Sources.UnpaywallEmail = secretDefault("unpaywall-email", viper.GetString("unpaywall_email"))
	cfg.Sources.OpenAlexEmail = secretDefault("openalex-email", viper.GetString("openalex_email"))
	cfg.Sources.InstitutionalProxyURL = viper.GetString("institutional_proxy_url")

	return cfg
}

// newLogger builds the CLI logger. Verbose mode lowers the level to debug.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if v, _ := rootCmd.PersistentFlags().GetBool("verbose"); v {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
