// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the deep-research CLI.
// Implements: prd010-pipeline, prd011-search, prd013-synthesis,
//             prd014-routing, prd017-history (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the deep-research CLI.
var rootCmd = &cobra.Command{
	Use:   "deep-research",
	Short: "Multi-stage web research with model routing and cited reports",
	Long: `deep-research answers a natural-language question by decomposing it into
sub-queries, searching the web, scoring and ranking the sources, and
synthesizing a cited report. Model selection per stage is automatic and
driven by a cost preference; the synthesis strategy adapts to how many
sources fit the chosen model's context window.

Run a question with "run", inspect past runs with "history", and list the
model catalog with "models". "serve" exposes the pipeline over WebSocket.`,
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

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./deep-research.yaml or ~/.config/deep-research/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("deep-research")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "deep-research"))
		}
	}

	viper.SetEnvPrefix("DEEP_RESEARCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig overlays the config file, environment, and secrets onto the
// built-in defaults.
func buildConfig() types.PipelineConfig {
	cfg := types.DefaultConfig()

	if v := viper.GetString("llm.base_url"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := viper.GetInt("llm.max_output_tokens"); v > 0 {
		cfg.LLM.MaxOutputTokens = v
	}
	if v := viper.GetInt("search.max_results_per_query"); v > 0 {
		cfg.Search.MaxResultsPerQuery = v
	}
	if v := viper.GetFloat64("search.cost_per_query_usd"); v > 0 {
		cfg.Search.CostPerQueryUSD = v
	}
	if v := viper.GetFloat64("evaluation.relevance_threshold"); v > 0 {
		cfg.Evaluation.RelevanceThreshold = v
	}
	if v := viper.GetString("store.dir"); v != "" {
		cfg.Store.Dir = v
	}
	if v := viper.GetString("reports_dir"); v != "" {
		cfg.ReportsDir = v
	}

	cfg.LLM.APIKey = secretDefault("openai-api-key", viper.GetString("llm.api_key"))
	cfg.Search.APIKey = secretDefault("tavily-api-key", viper.GetString("search.api_key"))
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
