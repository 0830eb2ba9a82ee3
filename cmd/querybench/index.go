package main

import (
	"fmt"

	"github.com/querybench/querybench/pkg/indexer"
	"github.com/querybench/querybench/pkg/indexstore"
	"github.com/querybench/querybench/pkg/storage"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run one indexing pass over result storage",
	Long: `Index scans the configured storage backend for summarized runs and
upserts them into the runs-index database, then exits. The API server
runs the same pass periodically; this command is for one-shot or
cron-driven indexing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reader, err := storage.New(log, &cfg.Storage)
		if err != nil {
			return err
		}

		store := indexstore.NewStore(log, &cfg.API.Database)
		if err := store.Start(cmd.Context()); err != nil {
			return err
		}

		defer func() {
			if err := store.Stop(); err != nil {
				log.WithError(err).Warn("Failed to close index database")
			}
		}()

		concurrency := 0
		if cfg.API.Indexing != nil {
			concurrency = cfg.API.Indexing.Concurrency
		}

		idx := indexer.NewIndexer(log, store, reader, "", cfg.API.IndexingInterval(), concurrency)

		if err := idx.RunOnce(cmd.Context()); err != nil {
			return fmt.Errorf("indexing pass: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
