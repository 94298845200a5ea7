package cmd

import (
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/checksum"
	"github.com/agentic-research/depot/internal/config"
	"github.com/agentic-research/depot/internal/dataset"
	"github.com/agentic-research/depot/internal/profile"
	"github.com/agentic-research/depot/internal/schema"
	"github.com/agentic-research/depot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the depot server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log, err := cfg.NewLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		// Misconfigured profiles or data directories must never let the
		// server come up; zap.Fatal terminates with a clear message.
		store := schema.NewStore(log.Named("schema"), cfg.ProfileDir)
		profiles := profile.NewRegistry(log.Named("profile"), profile.NewAssembler(log.Named("profile"), store))
		if err := profiles.Load(cfg.ProfileDir); err != nil {
			log.Fatal("profile loading failed", zap.Error(err))
		}

		alg, _ := checksum.ParseAlg(cfg.Checksum)
		datasets := dataset.NewRegistry(log.Named("dataset"), osfs.New(cfg.DataDir), alg, cfg.TTL())
		if err := datasets.Load(); err != nil {
			log.Fatal("dataset loading failed", zap.Error(err))
		}
		datasets.Cleanup()

		srv := server.New(log.Named("server"), cfg, profiles, datasets, osfs.New(cfg.TusdDataDir))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
