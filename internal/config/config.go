// Package config handles loading and validation of fintrade.yaml project
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Load reads and parses fintrade.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "fintrade.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.Store {
	case "":
		return fmt.Errorf("store is required")
	case types.StoreDynamoDB:
		if cfg.DynamoDB == nil {
			return fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		if cfg.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required")
		}
	case types.StorePostgres:
		if cfg.Postgres == nil {
			return fmt.Errorf("postgres config is required when store is postgres")
		}
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required")
		}
	case types.StoreMemory:
		// No backend section needed.
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	seen := make(map[string]bool, len(cfg.Targets))
	for i, target := range cfg.Targets {
		if target.Name == "" {
			return fmt.Errorf("targets[%d].name is required", i)
		}
		if seen[target.Name] {
			return fmt.Errorf("duplicate target %q", target.Name)
		}
		seen[target.Name] = true
		if target.ErrorRateThreshold < 0 || target.ErrorRateThreshold > 1 {
			return fmt.Errorf("target %s: errorRateThreshold must be in [0, 1]", target.Name)
		}
		if target.Policy.StalenessThresholdDays < 0 {
			return fmt.Errorf("target %s: stalenessThresholdDays must not be negative", target.Name)
		}
	}

	switch cfg.Registry.Type {
	case "", "csv", "http":
	default:
		return fmt.Errorf("unknown registry type %q", cfg.Registry.Type)
	}

	return nil
}
