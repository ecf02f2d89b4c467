package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

const validConfig = `
store: dynamodb
dynamodb:
  tableName: fintrade-watermarks
  region: us-east-1

registry:
  type: csv
  path: data/listing_status.csv

fetch:
  baseUrl: https://api.example.com
  apiKeyEnv: FINTRADE_API_KEY
  bucket: fintrade-staging
  prefix: raw
  queueUrl: https://sqs.us-east-1.amazonaws.com/123/fintrade-loader

targets:
  - name: time_series
    stalenessDays: 3
    maxConsecutiveFailures: 5
    batchSize: 100
    concurrency: 8
  - name: balance_sheet
    stalenessDays: 95
    maxConsecutiveFailures: 5
    exchangeFilter: NYSE

alerts:
  - type: console
  - type: file
    path: alerts.jsonl
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fintrade.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, types.StoreDynamoDB, cfg.Store)
	require.NotNil(t, cfg.DynamoDB)
	assert.Equal(t, "fintrade-watermarks", cfg.DynamoDB.TableName)

	assert.Equal(t, "csv", cfg.Registry.Type)
	assert.Equal(t, "https://api.example.com", cfg.Fetch.BaseURL)

	require.Len(t, cfg.Targets, 2)
	ts := cfg.Targets[0]
	assert.Equal(t, "time_series", ts.Name)
	assert.Equal(t, 3, ts.Policy.StalenessThresholdDays)
	assert.Equal(t, 100, ts.BatchSize)
	assert.Equal(t, 8, ts.Concurrency)
	assert.Equal(t, "NYSE", cfg.Targets[1].ExchangeFilter)

	require.Len(t, cfg.Alerts, 2)
	assert.Equal(t, types.AlertFile, cfg.Alerts[1].Type)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "reading config")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing store",
			"targets:\n  - name: t\n",
			"store is required",
		},
		{
			"unknown store",
			"store: sqlite\ntargets:\n  - name: t\n",
			"unknown store",
		},
		{
			"dynamodb without table",
			"store: dynamodb\ndynamodb:\n  region: us-east-1\ntargets:\n  - name: t\n",
			"dynamodb.tableName is required",
		},
		{
			"postgres without dsn",
			"store: postgres\npostgres: {}\ntargets:\n  - name: t\n",
			"postgres.dsn is required",
		},
		{
			"no targets",
			"store: memory\n",
			"at least one target is required",
		},
		{
			"duplicate targets",
			"store: memory\ntargets:\n  - name: t\n  - name: t\n",
			"duplicate target",
		},
		{
			"bad error rate",
			"store: memory\ntargets:\n  - name: t\n    errorRateThreshold: 1.5\n",
			"errorRateThreshold",
		},
		{
			"bad registry type",
			"store: memory\nregistry:\n  type: ftp\ntargets:\n  - name: t\n",
			"unknown registry type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MemoryStoreNeedsNoBackend(t *testing.T) {
	cfg, err := Load(writeConfig(t, "store: memory\ntargets:\n  - name: t\n"))
	require.NoError(t, err)
	assert.Equal(t, types.StoreMemory, cfg.Store)
}
