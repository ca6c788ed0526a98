package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Configuration struct {
	BindAddress string `toml:"bind_address" env:"BIND_ADDRESS"`
	LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
	Env         string `toml:"env" env:"APP_ENV"`
	// db
	DbHost string `toml:"db_host" env:"DB_HOST"`
	DbPort int    `toml:"db_port" env:"DB_PORT"`
	DbName string `toml:"db_name" env:"DB_NAME"`
	DbUser string `toml:"db_user" env:"DB_USER"`
	DbPass string `toml:"db_pass" env:"DB_PASS"`
	// telegram
	BotToken       string        `toml:"bot_token" env:"BOT_TOKEN"`
	AuthMaxAge     time.Duration `toml:"auth_max_age" env:"AUTH_MAX_AGE"`
	AllowedOrigins []string      `toml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	// ton
	DonationWallet string        `toml:"donation_wallet" env:"DONATION_WALLET"`
	TonApiURL      string        `toml:"ton_api_url" env:"TON_API_URL"`
	TonApiKey      string        `toml:"ton_api_key" env:"TON_API_KEY"`
	IndexerTimeout time.Duration `toml:"indexer_timeout" env:"INDEXER_TIMEOUT"`
	MinDonation    string        `toml:"min_donation" env:"MIN_DONATION"`
	MaxDonation    string        `toml:"max_donation" env:"MAX_DONATION"`
}

func NewConfiguration() *Configuration {
	return &Configuration{
		BindAddress:    ":8081",
		LogLevel:       "debug",
		Env:            EnvProduction,
		DbHost:         "localhost",
		DbPort:         5432,
		DbName:         "roulette",
		DbUser:         "username",
		DbPass:         "password",
		AuthMaxAge:     24 * time.Hour,
		AllowedOrigins: []string{"*"},
		TonApiURL:      "https://tonapi.io/v2/blockchain",
		IndexerTimeout: 10 * time.Second,
		MinDonation:    "0.01",
		MaxDonation:    "1000",
	}
}

// ApplyEnv overrides fields with any matching environment variables.
func (c *Configuration) ApplyEnv() error {
	return env.Parse(c)
}

func (c *Configuration) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

func (c *Configuration) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

func (c *Configuration) DonationsEnabled() bool {
	return strings.TrimSpace(c.DonationWallet) != ""
}

// Validate rejects configurations that cannot run safely. Only an explicit
// development env may start without a bot token.
func (c *Configuration) Validate() error {
	if !c.IsDevelopment() && strings.TrimSpace(c.BotToken) == "" {
		return fmt.Errorf("bot_token is required in %q env", c.Env)
	}
	if c.IsProduction() && !c.DonationsEnabled() {
		return errors.New("donation_wallet is required in production")
	}
	if c.IndexerTimeout <= 0 {
		return errors.New("indexer_timeout must be positive")
	}

	minV, ok := new(big.Rat).SetString(c.MinDonation)
	if !ok || minV.Sign() <= 0 {
		return fmt.Errorf("min_donation %q is not a positive decimal", c.MinDonation)
	}
	maxV, ok := new(big.Rat).SetString(c.MaxDonation)
	if !ok {
		return fmt.Errorf("max_donation %q is not a decimal", c.MaxDonation)
	}
	if minV.Cmp(maxV) > 0 {
		return errors.New("min_donation must not exceed max_donation")
	}
	return nil
}
