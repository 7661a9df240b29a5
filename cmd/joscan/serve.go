// SPDX-License-Identifier: MIT

package main

import (
	"github.com/spf13/cobra"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/daemon"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

func serveCmd(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan console HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			return serve(cfg, loader)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address (host:port)")
	return cmd
}

func serve(cfg config.AppConfig, loader *config.Loader) error {
	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	holder := config.NewConfigHolder(cfg, loader)
	app, err := daemon.Bootstrap(ctx, holder)
	if err != nil {
		return err
	}

	logger := xglog.WithComponent("daemon")
	if path := loader.Path(); path != "" {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", path).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon stopped with error")
		return err
	}
	logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return nil
}
