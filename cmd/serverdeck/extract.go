package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"serverdeck/internal/assets"
	"serverdeck/internal/broadcast"
	"serverdeck/internal/client"
	"serverdeck/internal/metrics"
)

func newExtractAssetsCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "extract-assets",
		Short: "Populate the asset cache from the server's Assets.zip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				return remoteRunE(extractRemote)(cmd, args)
			}
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			manager := assets.NewManager(assets.Options{
				DataDir:     cfg.DataDir,
				Logger:      logger,
				Broadcaster: broadcast.Discard{},
				Metrics:     metrics.Default,
			})
			result := manager.Extract(cmd.Context(), cfg.ServerDir)
			if !result.Success {
				return errors.New(result.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files cached in %s\n", result.TotalFiles, manager.CacheDir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask a running serverdeck to extract, so connected surfaces see progress")
	return cmd
}

func extractRemote(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
	result, err := c.ExtractAssets(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New(result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d files cached\n", result.TotalFiles)
	return nil
}
