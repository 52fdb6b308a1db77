package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand returns the base command when called without any subcommands.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auditctl",
		Short: "Send audit events to a helix audit collector",
		Long: `auditctl sends audit events to an audit collector over HTTP, using the
same client library services embed.

Configuration comes from an optional YAML file (--config), AUDIT_*
environment variables and flags, in increasing order of priority.

Quick start:
  export AUDIT_SERVICE_NAME=billing AUDIT_ENDPOINT=http://audit:3000/logs
  auditctl send --action UPDATE --resource-type invoice --resource-id inv-1`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	cmd.PersistentFlags().String("log-level", "warn", "Diagnostic log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "console", "Diagnostic log format: json or console")

	cmd.AddCommand(SendCommand())
	cmd.AddCommand(ReplayCommand())

	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
