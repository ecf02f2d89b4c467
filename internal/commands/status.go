package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-extract/internal/config"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [target-name]",
		Short: "Show watermark coverage per target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return runStatus(name)
		},
	}
}

func runStatus(name string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	targets := cfg.Targets
	if name != "" {
		target, err := findTarget(cfg, name)
		if err != nil {
			return err
		}
		targets = []types.TargetConfig{target}
	}

	s, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bold := color.New(color.Bold)
	for _, target := range targets {
		sum, err := s.Summary(ctx, target.Name, target.Policy)
		if err != nil {
			return fmt.Errorf("summarizing %s: %w", target.Name, err)
		}
		printTargetSummary(bold, target, sum)
	}
	return nil
}

func printTargetSummary(bold *color.Color, target types.TargetConfig, sum *types.StoreSummary) {
	_, _ = bold.Printf("%s\n", target.Name)
	if sum.Total == 0 {
		fmt.Println("  No symbols registered.")
		fmt.Println()
		return
	}

	fmt.Printf("  Symbols:       %d (%d eligible, %d delisted)\n",
		sum.Total, sum.ByEligibility[types.Eligible], sum.ByEligibility[types.Delisted])
	fmt.Printf("  Never fetched: %d\n", sum.NeverFetched)
	if sum.Suspended > 0 {
		color.Yellow("  Suspended:     %d (reset with: fintrade reset %s <symbol>)", sum.Suspended, target.Name)
	} else {
		fmt.Printf("  Suspended:     0\n")
	}
	if sum.OldestSuccess != nil {
		fmt.Printf("  Oldest success: %s\n", sum.OldestSuccess.Format(time.RFC3339))
	}
	fmt.Println()
}
