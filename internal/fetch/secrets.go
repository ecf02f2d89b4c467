package fetch

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// SecretsAPI is the subset of the Secrets Manager client used for API key
// resolution.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveAPIKey resolves the market-data API key: the environment variable
// wins when set, otherwise the configured Secrets Manager secret is read.
func ResolveAPIKey(ctx context.Context, cfg types.FetchConfig, client SecretsAPI) (string, error) {
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			return key, nil
		}
	}
	if cfg.APIKeySecret == "" {
		return "", fmt.Errorf("no API key: %s unset and no secret configured", cfg.APIKeyEnv)
	}

	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("loading AWS config: %w", err)
		}
		client = secretsmanager.NewFromConfig(awsCfg)
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.APIKeySecret),
	})
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", cfg.APIKeySecret, err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("secret %s is empty", cfg.APIKeySecret)
	}
	return *out.SecretString, nil
}
