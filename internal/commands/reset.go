package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-extract/internal/config"
)

// NewResetCmd creates the reset command.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [target-name] [symbol...]",
		Short: "Clear a suspended symbol's failure counter",
		Long: `Suspension is a manual-intervention state: a symbol that failed too many
consecutive times stays skipped until an operator resets it. Reset clears the
failure counter so the next run picks the symbol up again.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(args[0], args[1:])
		},
	}
}

func runReset(name string, symbols []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	target, err := findTarget(cfg, name)
	if err != nil {
		return err
	}

	s, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, symbol := range symbols {
		if err := s.ResetFailures(ctx, target.Name, symbol); err != nil {
			return fmt.Errorf("resetting %s: %w", symbol, err)
		}
		color.Green("  ✓ %s/%s reset", target.Name, symbol)
	}
	return nil
}
