// Package cmd implements the depot command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "depot",
	Short: "depot: metadata-curated dataset staging and completion",
	Long: `depot manages staging datasets: files arrive through a tus upload
server, JSON metadata is attached and validated against the dataset's
profile, and completed datasets are promoted atomically into a read-only
store for post-processing.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default: ./depot.toml if present)")
}

// Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
