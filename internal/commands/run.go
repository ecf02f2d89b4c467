package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-extract/internal/config"
	"github.com/kennydoit/fin-trade-extract/internal/coordinator"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// runFlags are per-invocation overrides of the target's configured policy and
// batch settings. Negative values mean "use the configured value".
type runFlags struct {
	maxSymbols      int
	batchSize       int
	concurrency     int
	skipRecentHours int
	exchange        string
	dryRun          bool
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [target-name]",
		Short: "Run an incremental extraction for a target",
		Long: `Lists eligible symbols from the watermark store, fetches each one, and
records the outcome. Aborted runs exit non-zero; the partial summary is
still printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtraction(args[0], flags)
		},
	}
	cmd.Flags().IntVar(&flags.maxSymbols, "max-symbols", 0, "Cap the number of symbols this run processes (0 = no cap)")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", -1, "Symbols per batch (overrides the target's batchSize)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", -1, "Concurrent fetches (overrides the target's concurrency)")
	cmd.Flags().IntVar(&flags.skipRecentHours, "skip-recent-hours", -1, "Skip symbols attempted within this window (overrides the target's skipRecentHours)")
	cmd.Flags().StringVar(&flags.exchange, "exchange", "", "Only process symbols on this exchange")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Fetch without staging to S3 or notifying the loader")
	return cmd
}

func runExtraction(name string, flags runFlags) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	target, err := findTarget(cfg, name)
	if err != nil {
		return err
	}
	applyRunFlags(&target, flags)

	// Ctrl-C aborts cooperatively: in-flight symbols finish recording.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, err := buildFetcher(ctx, cfg, flags.dryRun)
	if err != nil {
		return err
	}
	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	s, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	c := coordinator.New(s, fetcher, coordinator.WithAlertFunc(dispatcher.AlertFunc()))
	summary, runErr := c.Run(ctx, target, coordinator.RunOptions{MaxSymbols: flags.maxSymbols})
	if summary != nil {
		printRunSummary(summary)
	}
	if runErr != nil {
		if summary != nil && summary.AbortReason != "" {
			return fmt.Errorf("run aborted: %s", summary.AbortReason)
		}
		return runErr
	}
	return nil
}

func applyRunFlags(target *types.TargetConfig, flags runFlags) {
	if flags.batchSize >= 0 {
		target.BatchSize = flags.batchSize
	}
	if flags.concurrency >= 0 {
		target.Concurrency = flags.concurrency
	}
	if flags.skipRecentHours >= 0 {
		target.Policy.SkipRecentHours = flags.skipRecentHours
	}
	if flags.exchange != "" {
		target.ExchangeFilter = flags.exchange
	}
}

func printRunSummary(summary *types.RunSummary) {
	bold := color.New(color.Bold)
	fmt.Println()
	_, _ = bold.Printf("Run %s (%s)\n", summary.RunID, summary.Target)

	statusStr := color.GreenString(string(summary.Status))
	if summary.Status == types.RunAborted {
		statusStr = color.RedString("%s (%s)", summary.Status, summary.AbortReason)
	}
	fmt.Printf("  Status:      %s\n", statusStr)
	fmt.Printf("  Eligible:    %d\n", summary.Eligible)
	fmt.Printf("  Succeeded:   %d\n", summary.Succeeded)
	fmt.Printf("  Failed:      %d\n", summary.Failed)
	if summary.Unprocessed > 0 {
		fmt.Printf("  Unprocessed: %d\n", summary.Unprocessed)
	}
	if len(summary.Skipped) > 0 {
		fmt.Printf("  Skipped:    ")
		for decision, n := range summary.Skipped {
			fmt.Printf(" %s=%d", decision, n)
		}
		fmt.Println()
	}
	fmt.Printf("  Elapsed:     %s (%.1f symbols/min)\n", summary.Elapsed.Round(10*time.Millisecond), summary.SymbolsPerMinute)
}
