package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Server    ServerConfig    `yaml:"server"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Webhooks  WebhookConfig   `yaml:"webhooks"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

type RabbitMQConfig struct {
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	User      string          `yaml:"user"`
	Password  string          `yaml:"password"`
	Reconnect ReconnectPolicy `yaml:"reconnect"`
}

// ReconnectPolicy is an exponential backoff for dialing the broker.
type ReconnectPolicy struct {
	InitialDelayMs int `yaml:"initial_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms"`
	// MaxAttempts of 0 keeps dialing until shutdown.
	MaxAttempts int `yaml:"max_attempts"`
}

type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	MenuCacheTTLSec int    `yaml:"menu_cache_ttl_seconds"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	CustomersTopic string   `yaml:"customers_topic"`
	OrdersTopic    string   `yaml:"orders_topic"`
	Enabled        bool     `yaml:"enabled"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSec int `yaml:"write_timeout_seconds"`
}

// PricingConfig holds the money constants. Amounts are decimal strings so that
// no binary float rounding reaches the calculator.
type PricingConfig struct {
	TaxRate     string `yaml:"tax_rate"`
	DeliveryFee string `yaml:"delivery_fee"`
	// PriceLunch turns on per-attendee lunch pricing from the menu.
	PriceLunch bool `yaml:"price_lunch"`
}

type WebhookConfig struct {
	PaymentSecret  string `yaml:"payment_secret"`
	DeliverySecret string `yaml:"delivery_secret"`
}

type RateLimitConfig struct {
	Requests  int `yaml:"requests"`
	WindowSec int `yaml:"window_seconds"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used for any value the file leaves out.
func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{Host: "localhost", Port: 5432, User: "catering", Database: "catering", SSLMode: "disable"},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost", Port: 5672, User: "guest", Password: "guest",
			Reconnect: ReconnectPolicy{InitialDelayMs: 500, MaxDelayMs: 30000, MaxAttempts: 10},
		},
		Redis:     RedisConfig{Addr: "localhost:6379", MenuCacheTTLSec: 300},
		Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}, CustomersTopic: "crm.customers", OrdersTopic: "crm.orders"},
		Server:    ServerConfig{Port: 3000, ReadTimeoutSec: 15, WriteTimeoutSec: 15},
		Pricing:   PricingConfig{TaxRate: "0.08", DeliveryFee: "15.00"},
		RateLimit: RateLimitConfig{Requests: 120, WindowSec: 60},
		Log:       LogConfig{Level: "info"},
	}
}

func (c *Config) Validate() error {
	rate, err := c.TaxRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("pricing.tax_rate must be in [0, 1)")
	}
	fee, err := c.DeliveryFee()
	if err != nil {
		return err
	}
	if fee.IsNegative() {
		return errors.New("pricing.delivery_fee must not be negative")
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.WindowSec < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if r := c.RabbitMQ.Reconnect; r.InitialDelayMs <= 0 || r.MaxDelayMs < r.InitialDelayMs || r.MaxAttempts < 0 {
		return errors.New("rabbitmq.reconnect needs initial_delay_ms > 0, max_delay_ms >= initial_delay_ms and max_attempts >= 0")
	}
	return nil
}

func (c *Config) TaxRate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Pricing.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing.tax_rate: %w", err)
	}
	return d, nil
}

func (c *Config) DeliveryFee() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Pricing.DeliveryFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing.delivery_fee: %w", err)
	}
	return d, nil
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Password, r.Host, r.Port)
}
