package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Ledger     LedgerConfig     `yaml:"ledger"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Relay      RelayConfig      `yaml:"relay"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Strategy   Strategy         `yaml:"strategy"`
	Simulation SimulationConfig `yaml:"simulation"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Audit      AuditConfig      `yaml:"audit"`

	// RegistryFile points at a YAML provider/relay catalogue. Empty selects
	// the built-in one.
	RegistryFile string `yaml:"registry_file"`
}

type LedgerConfig struct {
	RPCEndpoint string        `yaml:"rpc_endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  uint64        `yaml:"max_retries"`
	Commitment  string        `yaml:"commitment"`
}

type AggregatorConfig struct {
	BaseURL         string               `yaml:"base_url"`
	PriceURL        string               `yaml:"price_url"`
	Timeout         time.Duration        `yaml:"timeout"`
	OnlyDirect      bool                 `yaml:"only_direct"`
	FallbackEnabled bool                 `yaml:"fallback_enabled"`
	FallbackFee     float64              `yaml:"fallback_fee"`
	PriceTTL        time.Duration        `yaml:"price_ttl"`
	AssetDecimals   map[string]uint8     `yaml:"asset_decimals"`
	RateLimit       RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ErrorThreshold int           `yaml:"error_threshold"`
	CooldownPeriod time.Duration `yaml:"cooldown_period"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type RelayConfig struct {
	Name            string        `yaml:"name"`
	Timeout         time.Duration `yaml:"timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
}

type ScannerConfig struct {
	Period      time.Duration     `yaml:"period"`
	BaseAsset   string            `yaml:"base_asset"`
	StartAmount uint64            `yaml:"start_amount"`
	WatchList   []string          `yaml:"watch_list"`
	Concurrency int               `yaml:"concurrency"`
	CacheTTL    time.Duration     `yaml:"cache_ttl"`
	CacheSize   int               `yaml:"cache_size"`
	AutoExecute AutoExecuteConfig `yaml:"auto_execute"`

	// MaxRoutes caps the routes quoted per tick, shortest first. Zero means
	// no cap.
	MaxRoutes int `yaml:"max_routes"`
}

type AutoExecuteConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MinConfidence float64 `yaml:"min_confidence"`
	Urgency       float64 `yaml:"urgency"`
}

type SimulationConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type AuditConfig struct {
	PostgresDSN  string `yaml:"postgres_dsn"`
	RedisURL     string `yaml:"redis_url"`
	RedisChannel string `yaml:"redis_channel"`
}

func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			RPCEndpoint: "https://api.mainnet-beta.solana.com",
			Timeout:     5 * time.Second,
			MaxRetries:  3,
			Commitment:  "confirmed",
		},
		Aggregator: AggregatorConfig{
			BaseURL:         "https://quote-api.jup.ag/v6",
			PriceURL:        "https://price.jup.ag/v4/price",
			Timeout:         5 * time.Second,
			FallbackEnabled: true,
			FallbackFee:     0.003,
			PriceTTL:        30 * time.Second,
			AssetDecimals: map[string]uint8{
				"So11111111111111111111111111111111111111112":  9,
				"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 6,
				"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": 6,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:        true,
				ErrorThreshold: 5,
				CooldownPeriod: 30 * time.Second,
			},
		},
		Relay: RelayConfig{
			Name:            "jito-mainnet",
			Timeout:         5 * time.Second,
			PollInterval:    time.Second,
			MaxPollAttempts: 30,
		},
		Scanner: ScannerConfig{
			Period:      time.Second,
			BaseAsset:   "So11111111111111111111111111111111111111112",
			StartAmount: 1_000_000_000,
			WatchList: []string{
				"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
			},
			Concurrency: 4,
			MaxRoutes:   256,
			CacheTTL:    10 * time.Second,
			CacheSize:   1024,
			AutoExecute: AutoExecuteConfig{
				Enabled:       false,
				MinConfidence: 0.6,
				Urgency:       0.5,
			},
		},
		Strategy: DefaultStrategy(),
		Simulation: SimulationConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
		Audit: AuditConfig{
			RedisChannel: "arbbot:executions",
		},
	}
}

// Validate collects every problem into a single error
func (c *Config) Validate() error {
	var errors []string

	if c.Ledger.RPCEndpoint == "" {
		errors = append(errors, "ledger rpc_endpoint must be specified")
	}
	if c.Ledger.Timeout <= 0 {
		errors = append(errors, "ledger timeout must be positive")
	}

	if c.Aggregator.BaseURL == "" {
		errors = append(errors, "aggregator base_url must be specified")
	}
	if c.Aggregator.Timeout <= 0 {
		errors = append(errors, "aggregator timeout must be positive")
	}
	if c.Aggregator.FallbackFee < 0 || c.Aggregator.FallbackFee >= 1 {
		errors = append(errors, "aggregator fallback_fee must be in [0, 1)")
	}
	if err := c.Aggregator.RateLimit.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("aggregator rate limit error: %v", err))
	}
	if err := c.Aggregator.CircuitBreaker.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("circuit breaker error: %v", err))
	}

	if c.Relay.Name == "" {
		errors = append(errors, "relay name must be specified")
	}
	if c.Relay.Timeout <= 0 {
		errors = append(errors, "relay timeout must be positive")
	}
	if c.Relay.PollInterval <= 0 {
		errors = append(errors, "relay poll_interval must be positive")
	}
	if c.Relay.MaxPollAttempts <= 0 {
		errors = append(errors, "relay max_poll_attempts must be positive")
	}

	if err := c.Scanner.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("scanner config error: %v", err))
	}
	if err := c.Strategy.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("strategy config error: %v", err))
	}

	if c.Simulation.Enabled && c.Simulation.Timeout <= 0 {
		errors = append(errors, "simulation timeout must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errors = append(errors, "metrics address must be specified when metrics are enabled")
	}
	if c.Audit.RedisURL != "" && c.Audit.RedisChannel == "" {
		errors = append(errors, "audit redis_channel must be specified with redis_url")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (s *ScannerConfig) Validate() error {
	if s.Period <= 0 {
		return fmt.Errorf("period must be positive")
	}
	if s.BaseAsset == "" {
		return fmt.Errorf("base asset must be specified")
	}
	if s.StartAmount == 0 {
		return fmt.Errorf("start amount must be positive")
	}
	if len(s.WatchList) < 2 {
		return fmt.Errorf("watch list needs at least two assets")
	}
	for _, a := range s.WatchList {
		if a == s.BaseAsset {
			return fmt.Errorf("watch list must not contain the base asset")
		}
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if s.MaxRoutes < 0 {
		return fmt.Errorf("max routes must not be negative")
	}
	if s.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if s.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if s.AutoExecute.MinConfidence < 0 || s.AutoExecute.MinConfidence > 1 {
		return fmt.Errorf("auto execute min confidence must be in [0, 1]")
	}
	if s.AutoExecute.Urgency < 0 || s.AutoExecute.Urgency > 1 {
		return fmt.Errorf("auto execute urgency must be in [0, 1]")
	}
	return nil
}

func (c *CircuitBreakerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ErrorThreshold <= 0 {
		return fmt.Errorf("error threshold must be positive")
	}
	if c.CooldownPeriod <= 0 {
		return fmt.Errorf("cooldown period must be positive")
	}

	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}

	return nil
}

// LoadConfig reads a YAML file over the defaults, applies environment
// overrides and validates the result. An empty path uses defaults only.
func LoadConfig(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	if cfgFile != "" {
		data, err := os.ReadFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Ledger.RPCEndpoint = GetEnvWithDefault(EnvRPCEndpoint, c.Ledger.RPCEndpoint)
	c.Aggregator.BaseURL = GetEnvWithDefault(EnvAggregatorURL, c.Aggregator.BaseURL)
	c.Aggregator.PriceURL = GetEnvWithDefault(EnvPriceURL, c.Aggregator.PriceURL)
	c.Relay.Name = GetEnvWithDefault(EnvRelayName, c.Relay.Name)
	c.Audit.PostgresDSN = GetEnvWithDefault(EnvPostgresDSN, c.Audit.PostgresDSN)
	c.Audit.RedisURL = GetEnvWithDefault(EnvRedisURL, c.Audit.RedisURL)
	c.RegistryFile = GetEnvWithDefault(EnvRegistryFile, c.RegistryFile)
}

// SaveConfig writes cfg as YAML
func SaveConfig(cfg *Config, cfgFile string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgFile, data, 0o600)
}
