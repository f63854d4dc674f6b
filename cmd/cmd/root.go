// Package cmd wires Argus's cobra command tree: the worker supervisor
// (decision/analysis) and the alias-admin surface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"argus/cmd/handlers"
	"argus/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Argus ingests, decides, analyzes, and clusters news articles",
	Long: `Argus is the article-understanding pipeline behind a news clustering
system: it decides whether an RSS-sourced article is relevant, runs it
through LLM-assisted analysis, extracts named entities, embeds it, and
assigns it to an evolving cluster of related stories.`,
}

// Execute runs the root command, exiting with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.argus.yaml, then $HOME/.argus.yaml)")
	cobra.OnInitialize(func() {
		if _, err := config.Load(cfgFile); err != nil {
			fmt.Fprintln(os.Stderr, "loading config:", err)
			os.Exit(1)
		}
	})

	rootCmd.AddCommand(handlers.NewAliasCmd())
	rootCmd.AddCommand(handlers.NewWorkCmd())
	rootCmd.AddCommand(handlers.NewMigrateCmd())
}
