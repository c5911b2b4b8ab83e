// Package config loads the service configuration from a YAML file and
// NAMETAG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultPaths are tried in order when no config path is given.
var DefaultPaths = []string{"configs/nametag.yaml", "/etc/nametag/nametag.yaml"}

type Config struct {
	LogLevel  string          `yaml:"logLevel"`
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Chain     ChainConfig     `yaml:"chain"`
	Alchemy   AlchemyConfig   `yaml:"alchemy"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Events    EventsConfig    `yaml:"events"`
}

type HTTPConfig struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	CORSOrigin     string        `yaml:"corsOrigin"`
}

type StorageConfig struct {
	// Backend stores identities: memory or postgres.
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"databaseURL"`
	// ChallengeBackend stores challenges: memory, postgres or redis.
	// Empty means the same as Backend.
	ChallengeBackend string `yaml:"challengeBackend"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type ChallengeConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type ChainConfig struct {
	RPCURL  string        `yaml:"rpcURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type AlchemyConfig struct {
	APIKey  string        `yaml:"apiKey"`
	Network string        `yaml:"network"`
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type EventsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration that runs with in-memory storage.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Listen:         ":9000",
			RequestTimeout: 10 * time.Second,
			CORSOrigin:     "*",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Challenge: ChallengeConfig{
			TTL: 5 * time.Minute,
		},
		Chain: ChainConfig{
			Timeout: 5 * time.Second,
		},
		Alchemy: AlchemyConfig{
			Network: "polygon-mainnet",
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     1,
			Burst:   5,
		},
	}
}

// Load reads path (or the first readable default path when path is empty),
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
	} else {
		for _, candidate := range DefaultPaths {
			err := readFile(candidate, &cfg)
			if err == nil {
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.LogLevel, "NAMETAG_LOG_LEVEL")
	setString(&cfg.HTTP.Listen, "NAMETAG_HTTP_LISTEN")
	setString(&cfg.HTTP.CORSOrigin, "NAMETAG_CORS_ORIGIN")
	setString(&cfg.Storage.Backend, "NAMETAG_STORAGE_BACKEND")
	setString(&cfg.Storage.DatabaseURL, "DATABASE_URL", "NAMETAG_DATABASE_URL")
	setString(&cfg.Storage.ChallengeBackend, "NAMETAG_CHALLENGE_BACKEND")
	setString(&cfg.Redis.URL, "REDIS_URL", "NAMETAG_REDIS_URL")
	setString(&cfg.Chain.RPCURL, "NAMETAG_RPC_URL")
	setString(&cfg.Alchemy.APIKey, "NAMETAG_ALCHEMY_API_KEY")
	setString(&cfg.Alchemy.Network, "NAMETAG_ALCHEMY_NETWORK")
	setString(&cfg.Alchemy.BaseURL, "NAMETAG_ALCHEMY_BASE_URL")

	durations := map[string]*time.Duration{
		"NAMETAG_HTTP_REQUEST_TIMEOUT": &cfg.HTTP.RequestTimeout,
		"NAMETAG_CHALLENGE_TTL":        &cfg.Challenge.TTL,
		"NAMETAG_RPC_TIMEOUT":          &cfg.Chain.Timeout,
		"NAMETAG_ALCHEMY_TIMEOUT":      &cfg.Alchemy.Timeout,
	}
	for env, dst := range durations {
		if raw := strings.TrimSpace(os.Getenv(env)); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"NAMETAG_RATE_LIMIT_ENABLED": &cfg.RateLimit.Enabled,
		"NAMETAG_EVENTS_ENABLED":     &cfg.Events.Enabled,
	}
	for env, dst := range bools {
		if raw := strings.TrimSpace(os.Getenv(env)); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env, err)
			}
			*dst = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("NAMETAG_RATE_LIMIT_RPS")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid NAMETAG_RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = v
	}
	if raw := strings.TrimSpace(os.Getenv("NAMETAG_RATE_LIMIT_BURST")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid NAMETAG_RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimit.Burst = v
	}
	return nil
}

// setString assigns the last non-empty variable among envs to dst.
func setString(dst *string, envs ...string) {
	for _, env := range envs {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
}

func (c *Config) fillDerived() {
	if c.Storage.ChallengeBackend == "" {
		c.Storage.ChallengeBackend = c.Storage.Backend
	}
	if c.Chain.RPCURL == "" && c.Alchemy.APIKey != "" {
		base := c.Alchemy.BaseURL
		if base == "" {
			base = fmt.Sprintf("https://%s.g.alchemy.com", c.Alchemy.Network)
		}
		c.Chain.RPCURL = strings.TrimRight(base, "/") + "/v2/" + c.Alchemy.APIKey
	}
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Storage.Backend)
	}

	switch c.Storage.ChallengeBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("storage.challengeBackend must be %q, %q or %q, got %q",
			BackendMemory, BackendPostgres, BackendRedis, c.Storage.ChallengeBackend)
	}

	if (c.Storage.Backend == BackendPostgres || c.Storage.ChallengeBackend == BackendPostgres) && c.Storage.DatabaseURL == "" {
		return errors.New("storage.databaseURL is required for the postgres backend")
	}
	if (c.Storage.ChallengeBackend == BackendRedis || c.Events.Enabled) && c.Redis.URL == "" {
		return errors.New("redis.url is required for redis challenges and events")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("challenge.ttl must be positive")
	}
	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpcURL is required (or set alchemy.apiKey)")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rateLimit.rps and rateLimit.burst must be positive when enabled")
	}
	return nil
}
