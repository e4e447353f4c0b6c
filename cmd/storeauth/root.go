package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/goliatone/go-storeauth/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the storeauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storeauth",
		Short: "storeauth - accounts and request authentication for the store API",
		Long: `storeauth issues and verifies bearer tokens for store users,
serves registration, login and profile endpoints, and
provides operator tooling for account provisioning.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCreateAdminCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}

// loadConfig resolves the configuration for a command whose flags were
// registered with config.BindFlags.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	return config.Load(configFile, flags)
}
