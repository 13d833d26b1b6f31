package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/streetwear-market/internal/domain/pricing"
)

func TestPricingConfig_Calculator(t *testing.T) {
	calc, err := PricingConfig{TaxRate: "0.19", FreeShippingOver: "100000", ShippingFee: "10000"}.Calculator()
	require.NoError(t, err)

	totals := calc.Calculate([]pricing.Line{{Price: decimal.NewFromInt(50000), Quantity: 1}})
	assert.True(t, decimal.NewFromInt(9500).Equal(totals.TaxPrice))
	assert.True(t, decimal.NewFromInt(10000).Equal(totals.ShippingPrice))

	_, err = PricingConfig{TaxRate: "abc", FreeShippingOver: "1", ShippingFee: "1"}.Calculator()
	require.Error(t, err)
	_, err = PricingConfig{TaxRate: "0.19", FreeShippingOver: "1", ShippingFee: "-1"}.Calculator()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage:   StoragePostgres,
			RateLimit: RateLimitConfig{Max: 10, Window: 1},
		}
	}

	cfg := valid()
	require.Error(t, cfg.validate(), "postgres needs a database url")

	cfg.DatabaseURL = "postgres://localhost/market"
	require.NoError(t, cfg.validate())

	cfg = valid()
	cfg.Storage = StorageMemory
	require.NoError(t, cfg.validate())

	cfg.Storage = "redis"
	require.Error(t, cfg.validate())

	cfg = valid()
	cfg.Storage = StorageMemory
	cfg.RateLimit.Max = 0
	require.Error(t, cfg.validate())
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/market")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/market", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
