package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuropharmdb-server/internal/setup"
)

func mcpConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-config",
		Short: "Register the MCP server with a desktop MCP client",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("client-config")
			out := cmd.OutOrStdout()

			if remove, _ := cmd.Flags().GetBool("remove"); remove {
				if path == "" {
					var err error
					if path, err = setup.DefaultConfigPath(); err != nil {
						return err
					}
				}
				removed, err := setup.Unregister(path)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(out, "Removed %s from %s\n", setup.ServerName, path)
				} else {
					fmt.Fprintf(out, "%s is not registered in %s\n", setup.ServerName, path)
				}
				return nil
			}

			opts := setup.Options{ConfigPath: path}
			opts.UserID, _ = cmd.Flags().GetString("user")
			opts.ServerType, _ = cmd.Flags().GetString("type")
			opts.BinaryPath, _ = cmd.Flags().GetString("binary")
			if lite, _ := cmd.Flags().GetBool("lite"); lite || opts.ServerType == "lite" {
				opts.DataDir = loadLiteConfig(cmd).DataDir
			}

			written, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Registered %s for user %s in %s\n", setup.ServerName, opts.UserID, written)
			fmt.Fprintln(out, "Restart the MCP client to load the server.")
			return nil
		},
	}
	cmd.Flags().String("user", "", "User the MCP tools act for")
	cmd.Flags().String("type", "lite", "Server binary to register: lite or full")
	cmd.Flags().String("binary", "", "Path to the server binary (default: search PATH)")
	cmd.Flags().String("client-config", "", "Client config file (default: platform location)")
	cmd.Flags().Bool("remove", false, "Remove the registration instead")
	return cmd
}
