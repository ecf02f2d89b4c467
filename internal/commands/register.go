package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-extract/internal/config"
	"github.com/kennydoit/fin-trade-extract/internal/metrics"
	"github.com/kennydoit/fin-trade-extract/internal/registry"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

const registerTimeout = 5 * time.Minute

// NewRegisterCmd creates the register command.
func NewRegisterCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "register [target-name]",
		Short: "Register the symbol universe for a target",
		Long: `Loads the symbol listing from the configured registry source and creates
watermark rows for every (target, symbol) pair that does not have one yet.
Existing rows keep their progress; lifecycle fields are refreshed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("provide a target name or --all")
			}
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return runRegister(name, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Register symbols for every configured target")
	return cmd
}

func runRegister(name string, all bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	targets := cfg.Targets
	if !all {
		target, err := findTarget(cfg, name)
		if err != nil {
			return err
		}
		targets = []types.TargetConfig{target}
	}

	source, err := registry.New(cfg.Registry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()

	symbols, err := source.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d symbols from registry\n", len(symbols))

	s, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, target := range targets {
		created, err := s.RegisterSymbols(ctx, target.Name, symbols)
		if err != nil {
			return fmt.Errorf("registering %s: %w", target.Name, err)
		}
		metrics.SymbolsRegistered.Add(int64(created))
		color.Green("  ✓ %s: %d new, %d refreshed", target.Name, created, len(symbols)-created)
	}
	return nil
}
