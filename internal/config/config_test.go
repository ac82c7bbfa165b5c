package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner     = "0x742d35cc6634c0532925a3b844bc9e7595f2bd18"
	testRecipient = "0x8ba1f109551bd432803012645ac136ddd64dba72"
)

func validConfig() *Config {
	return &Config{
		Env:                  DefaultEnv,
		LogLevel:             DefaultLogLevel,
		LogFormat:            DefaultLogFormat,
		ContractOwner:        testOwner,
		FeeRecipient:         testRecipient,
		FeeBps:               200,
		MinEscrowAmount:      1,
		DefaultTimeoutPeriod: 2016,
		EscrowsEnabled:       true,
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CONTRACT_OWNER", testOwner)
	t.Setenv("FEE_RECIPIENT", testRecipient)
	t.Setenv("FEE_BPS", "150")
	t.Setenv("MIN_ESCROW_AMOUNT", "1000")
	t.Setenv("DEFAULT_TIMEOUT_PERIOD", "100")
	t.Setenv("ESCROWS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testOwner, cfg.ContractOwner)
	assert.Equal(t, int64(150), cfg.FeeBps)
	assert.Equal(t, int64(1000), cfg.MinEscrowAmount)
	assert.Equal(t, int64(100), cfg.DefaultTimeoutPeriod)
	assert.False(t, cfg.EscrowsEnabled)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONTRACT_OWNER", testOwner)
	t.Setenv("FEE_RECIPIENT", testRecipient)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(200), cfg.FeeBps)
	assert.Equal(t, int64(DefaultTimeoutPeriod), cfg.DefaultTimeoutPeriod)
	assert.True(t, cfg.EscrowsEnabled)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_NormalizesPrincipals(t *testing.T) {
	t.Setenv("CONTRACT_OWNER", "0x742D35CC6634C0532925A3B844BC9E7595F2BD18")
	t.Setenv("FEE_RECIPIENT", testRecipient)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testOwner, cfg.ContractOwner)
}

func TestEscrowParams(t *testing.T) {
	cfg := validConfig()
	cfg.EscrowsEnabled = false

	p := cfg.EscrowParams()
	assert.Equal(t, testOwner, p.Owner)
	assert.Equal(t, testRecipient, p.FeeRecipient)
	assert.Equal(t, int64(200), p.FeeBps)
	assert.Equal(t, int64(1), p.MinEscrowAmount)
	assert.Equal(t, int64(2016), p.DefaultTimeoutPeriod)
	assert.False(t, p.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing owner", func(c *Config) { c.ContractOwner = "" }, "CONTRACT_OWNER"},
		{"bad owner", func(c *Config) { c.ContractOwner = "nope" }, "CONTRACT_OWNER"},
		{"missing recipient", func(c *Config) { c.FeeRecipient = "" }, "FEE_RECIPIENT"},
		{"negative fee", func(c *Config) { c.FeeBps = -1 }, "FEE_BPS"},
		{"fee above divisor", func(c *Config) { c.FeeBps = 10_001 }, "FEE_BPS"},
		{"zero min amount", func(c *Config) { c.MinEscrowAmount = 0 }, "MIN_ESCROW_AMOUNT"},
		{"zero timeout", func(c *Config) { c.DefaultTimeoutPeriod = 0 }, "DEFAULT_TIMEOUT_PERIOD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
