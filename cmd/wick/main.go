package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wick-sh/wick/internal/interfaces/cli/crl"
	"github.com/wick-sh/wick/internal/interfaces/cli/migrate"
	"github.com/wick-sh/wick/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wick",
		Short: "Wick - subscription entitlement server",
		Long:  `Wick manages subscription pools, entitlements and the certificates that prove them.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		crl.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
