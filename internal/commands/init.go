package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new extraction project",
		Long:  "Creates project scaffolding: fintrade.yaml and a sample listing file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0])
		},
	}
}

func runInit(projectName string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing extraction project: %s\n", projectName)

	if err := os.MkdirAll(filepath.Join(projectName, "data"), 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	configPath := filepath.Join(projectName, "fintrade.yaml")
	configContent := `store: dynamodb
dynamodb:
  tableName: fintrade-watermarks
  region: us-east-1
  createTable: true

registry:
  type: csv
  path: data/listing_status.csv

fetch:
  baseUrl: https://api.example.com
  apiKeyEnv: FINTRADE_API_KEY
  # apiKeySecret: fintrade/api-key
  timeout: 60s
  # bucket: fintrade-staging
  # prefix: raw
  # queueUrl: https://sqs.us-east-1.amazonaws.com/ACCOUNT/fintrade-loader

targets:
  - name: time_series
    stalenessDays: 3
    maxConsecutiveFailures: 5
    batchSize: 100
    concurrency: 8
  - name: overview
    stalenessDays: 30
    maxConsecutiveFailures: 5
  - name: balance_sheet
    stalenessDays: 95
    maxConsecutiveFailures: 5

alerts:
  - type: console
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	listingPath := filepath.Join(projectName, "data", "listing_status.csv")
	listingContent := `symbol,name,exchange,assetType,ipoDate,delistingDate,status
AAPL,Apple Inc,NASDAQ,Stock,1980-12-12,null,Active
IBM,International Business Machines,NYSE,Stock,1962-01-02,null,Active
MSFT,Microsoft Corporation,NASDAQ,Stock,1986-03-13,null,Active
`
	if err := os.WriteFile(listingPath, []byte(listingContent), 0o644); err != nil {
		return fmt.Errorf("writing sample listing: %w", err)
	}

	color.Green("  ✓ Project scaffolded")
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  fintrade register time_series")
	fmt.Println("  fintrade run time_series")
	return nil
}
