package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/depot/internal/config"
	"github.com/agentic-research/depot/internal/profile"
	"github.com/agentic-research/depot/internal/schema"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Assemble all profiles and report problems without serving",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log, err := cfg.NewLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		store := schema.NewStore(log, cfg.ProfileDir)
		profiles := profile.NewRegistry(log, profile.NewAssembler(log, store))
		if err := profiles.Load(cfg.ProfileDir); err != nil {
			return err
		}
		for _, name := range profiles.Names() {
			p, err := profiles.Get(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %q (%d schemas, %d patterns)\n",
				name, p.Title, len(p.Schemas), len(p.Patterns))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
