package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"loyaltycast/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Wallet notification gateway
	GatewayURL        string  `env:"WALLET_GATEWAY_URL"`
	GatewayAPIKey     string  `env:"WALLET_GATEWAY_API_KEY"`
	GatewayRatePerSec float64 `env:"WALLET_GATEWAY_RATE_PER_SEC" envDefault:"20"`

	// Dispatch tuning
	BatchSize   int           `env:"DISPATCH_BATCH_SIZE" envDefault:"50"`
	BatchDelay  time.Duration `env:"DISPATCH_BATCH_DELAY" envDefault:"200ms"`
	SendTimeout time.Duration `env:"DISPATCH_SEND_TIMEOUT" envDefault:"10s"`

	// Birthday job
	BirthdayCron            string `env:"BIRTHDAY_CRON" envDefault:"0 9 * * *"`
	BirthdayTimezone        string `env:"BIRTHDAY_TIMEZONE" envDefault:"UTC"`
	BirthdayScheduleEnabled bool   `env:"BIRTHDAY_SCHEDULE_ENABLED" envDefault:"true"`
	BirthdayMaxDetails      int    `env:"BIRTHDAY_MAX_DETAILS" envDefault:"500"`

	// Optional infrastructure, empty means disabled
	NATSServers string `env:"NATS_SERVERS"`
	RedisURL    string `env:"REDIS_URL"`

	SegmentEstimateTTL time.Duration `env:"SEGMENT_ESTIMATE_TTL" envDefault:"5m"`

	// Ops endpoint (/metrics, /healthz)
	OpsAddr string `env:"OPS_ADDR" envDefault:":9090"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Set replaces the global configuration instance. Intended for tests.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// NewTestConfig returns a configuration with defaults suitable for tests
func NewTestConfig() *Config {
	return &Config{
		GatewayRatePerSec:       0,
		BatchSize:               50,
		BatchDelay:              200 * time.Millisecond,
		SendTimeout:             2 * time.Second,
		BirthdayCron:            "0 9 * * *",
		BirthdayTimezone:        "UTC",
		BirthdayScheduleEnabled: false,
		BirthdayMaxDetails:      500,
		SegmentEstimateTTL:      time.Minute,
		OpsAddr:                 ":0",
		LogLevel:                "debug",
		Environment:             "test",
	}
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Location returns the timezone the birthday job evaluates dates in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BirthdayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("DISPATCH_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("DISPATCH_BATCH_DELAY must not be negative")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("DISPATCH_SEND_TIMEOUT must be positive")
	}
	if c.BirthdayMaxDetails < 1 {
		return fmt.Errorf("BIRTHDAY_MAX_DETAILS must be at least 1, got %d", c.BirthdayMaxDetails)
	}
	if _, err := time.LoadLocation(c.BirthdayTimezone); err != nil {
		return fmt.Errorf("invalid BIRTHDAY_TIMEZONE %q: %w", c.BirthdayTimezone, err)
	}

	if c.Environment != "test" {
		// Validate required configuration
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.GatewayURL == "" {
			return fmt.Errorf("WALLET_GATEWAY_URL is required")
		}
	}

	return nil
}
