package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvPrivateKey    = "WALLET_PRIVATE_KEY"
	EnvRPCEndpoint   = "ARBBOT_RPC_ENDPOINT"
	EnvAggregatorURL = "ARBBOT_AGGREGATOR_URL"
	EnvPriceURL      = "ARBBOT_PRICE_URL"
	EnvRelayName     = "ARBBOT_RELAY"
	EnvRegistryFile  = "ARBBOT_REGISTRY_FILE"
	EnvPostgresDSN   = "ARBBOT_POSTGRES_DSN"
	EnvRedisURL      = "ARBBOT_REDIS_URL"
)

// LoadEnv loads environment variables from .env files. Missing files are
// not an error.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, f := range filenames {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}
