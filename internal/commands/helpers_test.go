package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-extract/internal/store/memory"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

func TestFindTarget(t *testing.T) {
	cfg := &types.ProjectConfig{Targets: []types.TargetConfig{
		{Name: "time_series"},
		{Name: "overview"},
	}}

	target, err := findTarget(cfg, "overview")
	require.NoError(t, err)
	assert.Equal(t, "overview", target.Name)

	_, err = findTarget(cfg, "dividends")
	require.Error(t, err)
	assert.ErrorContains(t, err, "time_series, overview")
}

func TestBuildStore_Memory(t *testing.T) {
	s, err := buildStore(context.Background(), &types.ProjectConfig{Store: types.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestBuildStore_RequiresBackendConfig(t *testing.T) {
	_, err := buildStore(context.Background(), &types.ProjectConfig{Store: types.StoreDynamoDB})
	assert.ErrorContains(t, err, "dynamodb config is required")

	_, err = buildStore(context.Background(), &types.ProjectConfig{Store: "sqlite"})
	assert.ErrorContains(t, err, "unsupported store")
}

func TestBuildDispatcher_DefaultsToConsole(t *testing.T) {
	d, err := buildDispatcher(&types.ProjectConfig{})
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestBuildFetcher_DryRunSkipsAWS(t *testing.T) {
	t.Setenv("FINTRADE_API_KEY", "test-key")
	cfg := &types.ProjectConfig{Fetch: types.FetchConfig{
		BaseURL:   "https://api.example.com",
		APIKeyEnv: "FINTRADE_API_KEY",
		Bucket:    "staging",
		QueueURL:  "https://example/queue",
	}}

	f, err := buildFetcher(context.Background(), cfg, true)
	require.NoError(t, err)
	require.NotNil(t, f)
}
