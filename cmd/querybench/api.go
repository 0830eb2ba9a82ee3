package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/querybench/querybench/pkg/api"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the runs-index API server",
	Long: `Api starts the HTTP server that serves indexed run summaries and the
raw summary files, with the background indexer keeping the index in
sync with storage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		srv := api.NewServer(log, &cfg.API, &cfg.Storage)

		if err := srv.Start(ctx); err != nil {
			return err
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		select {
		case s := <-sig:
			log.WithField("signal", s.String()).Info("Shutting down")
		case <-ctx.Done():
		}

		return srv.Stop()
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
}
