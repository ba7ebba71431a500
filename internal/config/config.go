// Package config loads runtime settings from the environment, with an
// optional TOML deployments file for per-network contract addresses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // TRUSTSCORE_DATABASE_URL (required)
	HTTPAddr    string // TRUSTSCORE_HTTP_ADDR (default ":8080")
	NATSURL     string // TRUSTSCORE_NATS_URL (optional, empty = no events)

	// Chain settings
	RPCURL             string // TRUSTSCORE_RPC_URL
	IdentityContract   string // TRUSTSCORE_IDENTITY_CONTRACT
	ReputationContract string // TRUSTSCORE_REPUTATION_CONTRACT
	OracleContract     string // TRUSTSCORE_ORACLE_CONTRACT
	OraclePrivateKey   string // TRUSTSCORE_ORACLE_PRIVATE_KEY (hex)

	// Indexer settings
	StartBlock     uint64        // TRUSTSCORE_START_BLOCK (default 0)
	BlockBatchSize uint64        // TRUSTSCORE_BLOCK_BATCH_SIZE (default 1000)
	PollInterval   time.Duration // TRUSTSCORE_POLL_INTERVAL (default 15s)

	// Scoring settings
	HalfLifeDays float64 // TRUSTSCORE_HALF_LIFE_DAYS (default 90)

	// Publication settings
	MinScoreChange float64       // TRUSTSCORE_MIN_SCORE_CHANGE (default 1.0)
	ScoreBatchSize int           // TRUSTSCORE_SCORE_BATCH_SIZE (default 50)
	ConfirmTimeout time.Duration // TRUSTSCORE_CONFIRM_TIMEOUT (default 2m)
	BatchDelay     time.Duration // TRUSTSCORE_BATCH_DELAY (default 2s)
	UpdateInterval time.Duration // TRUSTSCORE_UPDATE_INTERVAL (default 1h)

	// Export settings
	ExportInterval   time.Duration // TRUSTSCORE_EXPORT_INTERVAL (default 0 = disabled)
	ExportFile       string        // TRUSTSCORE_EXPORT_FILE (enables file snapshots when set)
	ExportS3Bucket   string        // TRUSTSCORE_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Key      string        // TRUSTSCORE_EXPORT_S3_KEY (default "trustscore/snapshot.jsonl")
	ExportS3Region   string        // TRUSTSCORE_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Endpoint string        // TRUSTSCORE_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
}

// deploymentsFile mirrors the TOML layout of an optional per-network
// deployments file (TRUSTSCORE_DEPLOYMENTS). Environment variables
// override its values.
type deploymentsFile struct {
	RPCURL    string `toml:"rpc_url"`
	Contracts struct {
		Identity   string `toml:"identity"`
		Reputation string `toml:"reputation"`
		Oracle     string `toml:"oracle"`
		StartBlock uint64 `toml:"start_block"`
	} `toml:"contracts"`
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("TRUSTSCORE_DATABASE_URL"),
		HTTPAddr:         envOrDefault("TRUSTSCORE_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("TRUSTSCORE_NATS_URL"),
		OraclePrivateKey: os.Getenv("TRUSTSCORE_ORACLE_PRIVATE_KEY"),
		ExportFile:       os.Getenv("TRUSTSCORE_EXPORT_FILE"),
		ExportS3Bucket:   os.Getenv("TRUSTSCORE_EXPORT_S3_BUCKET"),
		ExportS3Key:      envOrDefault("TRUSTSCORE_EXPORT_S3_KEY", "trustscore/snapshot.jsonl"),
		ExportS3Region:   envOrDefault("TRUSTSCORE_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Endpoint: os.Getenv("TRUSTSCORE_EXPORT_S3_ENDPOINT"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("TRUSTSCORE_DATABASE_URL is required")
	}

	if path := os.Getenv("TRUSTSCORE_DEPLOYMENTS"); path != "" {
		var dep deploymentsFile
		if _, err := toml.DecodeFile(path, &dep); err != nil {
			return nil, fmt.Errorf("TRUSTSCORE_DEPLOYMENTS: %w", err)
		}
		c.RPCURL = dep.RPCURL
		c.IdentityContract = dep.Contracts.Identity
		c.ReputationContract = dep.Contracts.Reputation
		c.OracleContract = dep.Contracts.Oracle
		c.StartBlock = dep.Contracts.StartBlock
	}

	if v := os.Getenv("TRUSTSCORE_RPC_URL"); v != "" {
		c.RPCURL = v
	}
	if v := os.Getenv("TRUSTSCORE_IDENTITY_CONTRACT"); v != "" {
		c.IdentityContract = v
	}
	if v := os.Getenv("TRUSTSCORE_REPUTATION_CONTRACT"); v != "" {
		c.ReputationContract = v
	}
	if v := os.Getenv("TRUSTSCORE_ORACLE_CONTRACT"); v != "" {
		c.OracleContract = v
	}

	var err error
	if c.StartBlock, err = envUint("TRUSTSCORE_START_BLOCK", c.StartBlock); err != nil {
		return nil, err
	}
	if c.BlockBatchSize, err = envUint("TRUSTSCORE_BLOCK_BATCH_SIZE", 1000); err != nil {
		return nil, err
	}
	if c.HalfLifeDays, err = envFloat("TRUSTSCORE_HALF_LIFE_DAYS", 90); err != nil {
		return nil, err
	}
	if c.MinScoreChange, err = envFloat("TRUSTSCORE_MIN_SCORE_CHANGE", 1.0); err != nil {
		return nil, err
	}
	if c.ScoreBatchSize, err = envInt("TRUSTSCORE_SCORE_BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if c.PollInterval, err = envDuration("TRUSTSCORE_POLL_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if c.ConfirmTimeout, err = envDuration("TRUSTSCORE_CONFIRM_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if c.BatchDelay, err = envDuration("TRUSTSCORE_BATCH_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if c.UpdateInterval, err = envDuration("TRUSTSCORE_UPDATE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = envDuration("TRUSTSCORE_EXPORT_INTERVAL", 0); err != nil {
		return nil, err
	}

	if c.HalfLifeDays <= 0 {
		return nil, fmt.Errorf("TRUSTSCORE_HALF_LIFE_DAYS must be positive")
	}
	if c.MinScoreChange < 0 {
		return nil, fmt.Errorf("TRUSTSCORE_MIN_SCORE_CHANGE must not be negative")
	}

	return c, nil
}

// ValidateIndexing checks the settings the ingestion pipeline needs.
// These are fatal at process start, never during steady state.
func (c *Config) ValidateIndexing() error {
	if c.RPCURL == "" {
		return fmt.Errorf("TRUSTSCORE_RPC_URL is required for indexing")
	}
	if c.IdentityContract == "" {
		return fmt.Errorf("TRUSTSCORE_IDENTITY_CONTRACT is required for indexing")
	}
	if c.ReputationContract == "" {
		return fmt.Errorf("TRUSTSCORE_REPUTATION_CONTRACT is required for indexing")
	}
	return nil
}

// ValidatePublishing checks the settings the publication pipeline needs.
func (c *Config) ValidatePublishing() error {
	if c.RPCURL == "" {
		return fmt.Errorf("TRUSTSCORE_RPC_URL is required for publishing")
	}
	if c.OracleContract == "" {
		return fmt.Errorf("TRUSTSCORE_ORACLE_CONTRACT is required for publishing")
	}
	if c.OraclePrivateKey == "" {
		return fmt.Errorf("TRUSTSCORE_ORACLE_PRIVATE_KEY is required for publishing")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
