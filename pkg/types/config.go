package types

// ProjectConfig represents the top-level fintrade.yaml configuration.
type ProjectConfig struct {
	Store    StoreKind       `yaml:"store"`
	DynamoDB *DynamoDBConfig `yaml:"dynamodb,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
	Registry RegistryConfig  `yaml:"registry"`
	Fetch    FetchConfig     `yaml:"fetch"`
	Targets  []TargetConfig  `yaml:"targets"`
	Alerts   []AlertConfig   `yaml:"alerts,omitempty"`
}

// TargetConfig is the per-extraction-target policy and batch configuration.
type TargetConfig struct {
	Name               string  `yaml:"name" json:"name"`
	Policy             Policy  `yaml:",inline" json:"policy"`
	BatchSize          int     `yaml:"batchSize,omitempty" json:"batchSize,omitempty"`
	Concurrency        int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	ExchangeFilter     string  `yaml:"exchangeFilter,omitempty" json:"exchangeFilter,omitempty"`
	ErrorRateThreshold float64 `yaml:"errorRateThreshold,omitempty" json:"errorRateThreshold,omitempty"`
	MinSamples         int     `yaml:"minSamples,omitempty" json:"minSamples,omitempty"`
}

// RegistryConfig selects the symbol registry source.
type RegistryConfig struct {
	Type string `yaml:"type"` // "csv" or "http"
	Path string `yaml:"path,omitempty"`
	URL  string `yaml:"url,omitempty"`
}

// FetchConfig configures the default fetch-and-load collaborator.
type FetchConfig struct {
	BaseURL      string `yaml:"baseUrl"`
	APIKeyEnv    string `yaml:"apiKeyEnv,omitempty"`
	APIKeySecret string `yaml:"apiKeySecret,omitempty"` // Secrets Manager secret ID
	Timeout      string `yaml:"timeout,omitempty"`      // e.g. "30s"
	Bucket       string `yaml:"bucket,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	QueueURL     string `yaml:"queueUrl,omitempty"`
	Region       string `yaml:"region,omitempty"`
}

// AlertConfig defines an alert sink configuration.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN string    `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
}

// DynamoDBConfig holds DynamoDB connection and table settings.
type DynamoDBConfig struct {
	TableName   string `yaml:"tableName" json:"tableName"`
	Region      string `yaml:"region" json:"region"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreateTable bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// PostgresConfig holds warehouse connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}
