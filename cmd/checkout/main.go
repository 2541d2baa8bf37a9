package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/checkout/internal/interfaces/cli/migrate"
	"github.com/orris-inc/checkout/internal/interfaces/cli/pay"
	"github.com/orris-inc/checkout/internal/interfaces/cli/server"
	"github.com/orris-inc/checkout/internal/shared/version"
)

//	@title			Checkout API
//	@version		1.0
//	@description	Card checkout with 3DS challenge handling and saved cards.
//	@BasePath		/api

func main() {
	rootCmd := &cobra.Command{
		Use:     "checkout",
		Short:   "Checkout - card payments with 3DS",
		Long:    `Checkout runs card payments for a merchant, pausing and resuming around 3DS challenges, and manages saved cards.`,
		Version: version.Get().Version,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)
	rootCmd.AddCommand(pay.NewCommands()...)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
