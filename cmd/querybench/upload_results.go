package main

import (
	"fmt"

	"github.com/querybench/querybench/pkg/runpath"
	"github.com/spf13/cobra"
)

var (
	uploadResultDir string
	uploadRunPath   string
)

var uploadCmd = &cobra.Command{
	Use:   "upload-results",
	Short: "Upload a run result directory to storage",
	Long: `Upload copies a local run result directory (raw JTL file, summary,
reports) into the partitioned storage layout under the key derived
from --run-path. The backend is verified with a preflight check before
any file is transferred.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rp, err := runpath.Parse(uploadRunPath)
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedInput, err)
		}

		if rp.RunID == "" {
			return fmt.Errorf("%w: --run-path must include a run_id segment", errMalformedInput)
		}

		store, err := openStore(cfg, rp)
		if err != nil {
			return err
		}

		if err := store.Preflight(cmd.Context()); err != nil {
			return fmt.Errorf("storage preflight: %w", err)
		}

		uploaded, err := store.UploadDir(cmd.Context(), uploadResultDir, rp.Key())
		if err != nil {
			return fmt.Errorf("uploading %s: %w", uploadResultDir, err)
		}

		log.WithField("files", uploaded).
			WithField("key", rp.Key()).
			Info("Upload complete")

		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadResultDir, "result-dir", "", "local result directory to upload")
	uploadCmd.Flags().StringVar(&uploadRunPath, "run-path", "", "destination run path (must include run_id)")

	_ = uploadCmd.MarkFlagRequired("result-dir")
	_ = uploadCmd.MarkFlagRequired("run-path")

	rootCmd.AddCommand(uploadCmd)
}
