package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/depot/internal/config"
)

var defaultConfigCmd = &cobra.Command{
	Use:   "default-config",
	Short: "Print a skeleton configuration file to stdout",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Print(config.DefaultTOML)
	},
}

func init() {
	rootCmd.AddCommand(defaultConfigCmd)
}
