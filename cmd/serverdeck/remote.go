package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"serverdeck/internal/client"
	"serverdeck/internal/config"
)

const remoteTimeout = 15 * time.Second

// dialDaemon builds a client for the serve instance named by the resolved
// listen address and token.
func dialDaemon(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Listen, cfg.Token)
}

func remoteRunE(run func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := dialDaemon(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
		defer cancel()
		return run(ctx, cmd, c, args)
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running serverdeck",
		Args:  cobra.NoArgs,
		RunE: remoteRunE(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			status, err := c.Status(ctx)
			if err != nil {
				return err
			}
			writer := table.NewWriter()
			writer.SetOutputMirror(cmd.OutOrStdout())
			writer.SetStyle(table.StyleLight)
			writer.AppendHeader(table.Row{"Server", "PID", "Run", "Watching", "Assets cached", "Surfaces"})
			pid := ""
			if status.Server.PID > 0 {
				pid = strconv.Itoa(status.Server.PID)
			}
			writer.AppendRow(table.Row{status.Server.State, pid, status.Server.RunID, status.Watching, status.Assets.Cached, status.Surfaces})
			writer.Render()
			return nil
		}),
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Ask a running serverdeck to launch the game server",
		Args:  cobra.NoArgs,
		RunE: remoteRunE(func(ctx context.Context, _ *cobra.Command, c *client.Client, _ []string) error {
			return c.StartServer(ctx)
		}),
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask a running serverdeck to stop the game server",
		Args:  cobra.NoArgs,
		RunE: remoteRunE(func(ctx context.Context, _ *cobra.Command, c *client.Client, _ []string) error {
			return c.StopServer(ctx)
		}),
	}
}

func newLogsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent game server output",
		Args:  cobra.NoArgs,
		RunE: remoteRunE(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			lines, err := c.Logs(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range lines {
				if line.Stream == "stderr" {
					fmt.Fprintf(out, "! %s\n", line.Line)
					continue
				}
				fmt.Fprintln(out, line.Line)
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "number of lines (0 for all retained)")
	return cmd
}

func newModsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mods",
		Short: "List, enable or disable server mods",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show enabled and disabled mods",
		Args:  cobra.NoArgs,
		RunE: remoteRunE(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			list, err := c.Mods(ctx)
			if err != nil {
				return err
			}
			writer := table.NewWriter()
			writer.SetOutputMirror(cmd.OutOrStdout())
			writer.SetStyle(table.StyleLight)
			writer.AppendHeader(table.Row{"Mod", "Enabled"})
			for _, name := range list.Enabled {
				writer.AppendRow(table.Row{name, "yes"})
			}
			for _, name := range list.Disabled {
				writer.AppendRow(table.Row{name, "no"})
			}
			writer.SortBy([]table.SortBy{{Name: "Mod", Mode: table.Asc}})
			writer.Render()
			return nil
		}),
	})
	toggle := func(use, short string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <name>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: remoteRunE(func(ctx context.Context, _ *cobra.Command, c *client.Client, args []string) error {
				return c.ToggleMod(ctx, args[0], enabled)
			}),
		}
	}
	cmd.AddCommand(toggle("enable", "Move a mod back into the server's mods folder", true))
	cmd.AddCommand(toggle("disable", "Move a mod out of the server's mods folder", false))
	return cmd
}
