package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/pricing"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (MARKET_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (MARKET_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (MARKET_API_KEY_PEPPER)" flag:"api-key-pepper"`
	AdminAPIKey  string `usage:"API key registered for the admin user at startup" flag:"admin-api-key"`
	Pricing      PricingConfig
	Reviews      ReviewsConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// PricingConfig holds the order pricing constants as decimal strings.
type PricingConfig struct {
	TaxRate          string `default:"0.19" usage:"Tax rate applied to the items price"`
	FreeShippingOver string `default:"100000" usage:"Items price above which shipping is free" flag:"free-shipping-over"`
	ShippingFee      string `default:"10000" usage:"Flat shipping fee" flag:"shipping-fee"`
}

// Calculator parses the constants into a pricing configuration.
func (c PricingConfig) Calculator() (*pricing.Calculator, error) {
	var cfg pricing.Config
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"tax rate", c.TaxRate, &cfg.TaxRate},
		{"free shipping threshold", c.FreeShippingOver, &cfg.FreeShippingOver},
		{"shipping fee", c.ShippingFee, &cfg.ShippingFee},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", f.name)
		}
		if v.IsNegative() {
			return nil, errors.Errorf("%s must not be negative", f.name)
		}
		*f.dst = v
	}
	return pricing.NewCalculator(cfg), nil
}

// ReviewsConfig controls review moderation.
type ReviewsConfig struct {
	AutoApprove bool `default:"false" usage:"Publish reviews without moderation" flag:"reviews-auto-approve"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MARKET",
		Files:     []string{"config.yaml", "/etc/market/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set MARKET_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's MARKET_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
