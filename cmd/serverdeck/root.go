package main

import (
	"github.com/spf13/cobra"

	"serverdeck/internal/config"
	"serverdeck/internal/logging"
)

const (
	flagVerbose = "verbose"
	flagQuiet   = "quiet"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "serverdeck",
		Short:         "Background services for a local game server dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	config.BindFlags(flags)
	flags.BoolP(flagVerbose, "v", false, "log at debug level")
	flags.BoolP(flagQuiet, "q", false, "log warnings and errors only")
	root.MarkFlagsMutuallyExclusive(flagVerbose, flagQuiet)

	root.AddCommand(newServeCmd())
	root.AddCommand(newExtractAssetsCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newModsCmd())
	return root
}

// loadRuntime resolves configuration and builds the process logger.
func loadRuntime(cmd *cobra.Command) (config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool(flagVerbose); verbose {
		level = logging.LevelDebug
	} else if quiet, _ := cmd.Flags().GetBool(flagQuiet); quiet {
		level = logging.LevelWarning
	}
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), level, cmd.ErrOrStderr())
	return cfg, logger, nil
}
