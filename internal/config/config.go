package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Bearer token for the HTTP surface, stored as a bcrypt hash.
	APITokenHash string `env:"API_TOKEN_HASH"`

	// Per-chain endpoints and contract addresses, "chainId=value" pairs.
	RPCEndpoints          map[int64]string `env:"RPC_ENDPOINTS" envSeparator:"," envKeyValSeparator:"="`
	AssociationRegistries map[int64]string `env:"ASSOCIATION_REGISTRIES" envSeparator:"," envKeyValSeparator:"="`
	ValidationRegistries  map[int64]string `env:"VALIDATION_REGISTRIES" envSeparator:"," envKeyValSeparator:"="`
	IdentityRegistries    map[int64]string `env:"IDENTITY_REGISTRIES" envSeparator:"," envKeyValSeparator:"="`

	ProcessorIntervalSeconds int `env:"PROCESSOR_INTERVAL_SECONDS" envDefault:"300"`
	FeedbackAuthTTLSeconds   int `env:"FEEDBACK_AUTH_TTL_SECONDS" envDefault:"86400"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ProcessorInterval() time.Duration {
	return time.Duration(c.ProcessorIntervalSeconds) * time.Second
}

func (c *Config) FeedbackAuthTTL() time.Duration {
	return time.Duration(c.FeedbackAuthTTLSeconds) * time.Second
}

func (c *Config) Validate(isProduction bool) error {
	if c.APITokenHash != "" {
		if !strings.HasPrefix(c.APITokenHash, "$2a$") &&
			!strings.HasPrefix(c.APITokenHash, "$2b$") &&
			!strings.HasPrefix(c.APITokenHash, "$2y$") {
			return fmt.Errorf("API_TOKEN_HASH must be a bcrypt hash (generate with: go run scripts/hash-token.go <token>)")
		}
	}

	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("RPC_ENDPOINTS must configure at least one chain (format: chainId=url,chainId=url)")
	}

	for chainID := range c.AssociationRegistries {
		if _, ok := c.RPCEndpoints[chainID]; !ok {
			return fmt.Errorf("ASSOCIATION_REGISTRIES references chain %d with no RPC endpoint", chainID)
		}
	}

	if isProduction {
		if c.APITokenHash == "" {
			log.Warn().Msg("API_TOKEN_HASH is empty in production: HTTP surface is unauthenticated")
		}
		for chainID, url := range c.RPCEndpoints {
			if strings.HasPrefix(url, "http://") {
				log.Warn().Int64("chainId", chainID).Msg("RPC endpoint uses http:// in production: consider https://")
			}
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
