package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-extract/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "fintrade",
		Short: "Watermark-driven incremental extraction for financial market data",
		Long: `fintrade tracks a per-(target, symbol) watermark for every extraction pair
and only fetches what is stale, never-fetched, or newly registered. Delisted
symbols are skipped permanently; repeatedly failing symbols are suspended
until an operator resets them.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRegisterCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
		commands.NewResetCmd(),
		commands.NewMigrateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
