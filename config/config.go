package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// MpesaConfig holds the Daraja gateway credentials
type MpesaConfig struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	Shortcode      string `yaml:"shortcode"`
	Passkey        string `yaml:"passkey"`
	CallbackURL    string `yaml:"callback_url"`
	Environment    string `yaml:"environment"` // "sandbox" or "production"
	AccountType    string `yaml:"account_type"` // "paybill" or "till"
}

// Config holds all application configuration.
// Monetary amounts are in cents.
type Config struct {
	// Database configuration
	DatabaseURL string `yaml:"database_url"`

	// HTTP listen address for the payment callback endpoint
	ListenAddr string `yaml:"listen_addr"`

	// Wallet configuration
	DemoRefillAmount int64 `yaml:"demo_refill_amount"`

	// Game configuration
	CrashHouseEdge     float64       `yaml:"crash_house_edge"`
	CrashGrowthRate    float64       `yaml:"crash_growth_rate"` // exponent per second
	CrashIntermission  time.Duration `yaml:"crash_intermission"`
	TradingPayoutRate  float64       `yaml:"trading_payout_rate"`
	TradingSettleDelay time.Duration `yaml:"trading_settle_delay"`
	TradingTickEvery   time.Duration `yaml:"trading_tick_every"`

	// Ledger sync configuration
	LedgerWorkers int `yaml:"ledger_workers"`

	// Payment gateway
	Mpesa MpesaConfig `yaml:"mpesa"`

	// Environment: "development", "production" or "test"
	Environment string `yaml:"environment"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables, optionally layered
// over a YAML file named by CONFIG_FILE.
func load() (*Config, error) {
	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(config)

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr:         ":8080",
		DemoRefillAmount:   10_000_000, // 100,000 KES
		CrashHouseEdge:     0.99,
		CrashGrowthRate:    0.065,
		CrashIntermission:  5 * time.Second,
		TradingPayoutRate:  0.86,
		TradingSettleDelay: 30 * time.Second,
		TradingTickEvery:   100 * time.Millisecond,
		LedgerWorkers:      4,
	}
}

func applyEnv(config *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.DatabaseURL = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		config.ListenAddr = v
	}
	if v := os.Getenv("DEMO_REFILL_AMOUNT"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.DemoRefillAmount = parsed
		}
	}
	if v := os.Getenv("LEDGER_WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			config.LedgerWorkers = parsed
		}
	}

	// Gateway credentials come from the environment only
	if v := os.Getenv("MPESA_CONSUMER_KEY"); v != "" {
		config.Mpesa.ConsumerKey = v
	}
	if v := os.Getenv("MPESA_CONSUMER_SECRET"); v != "" {
		config.Mpesa.ConsumerSecret = v
	}
	if v := os.Getenv("MPESA_SHORTCODE"); v != "" {
		config.Mpesa.Shortcode = v
	}
	if v := os.Getenv("MPESA_PASSKEY"); v != "" {
		config.Mpesa.Passkey = v
	}
	if v := os.Getenv("MPESA_CALLBACK_URL"); v != "" {
		config.Mpesa.CallbackURL = v
	}
	if v := os.Getenv("MPESA_ENVIRONMENT"); v != "" {
		config.Mpesa.Environment = v
	}
	if v := os.Getenv("MPESA_ACCOUNT_TYPE"); v != "" {
		config.Mpesa.AccountType = v
	}
}
