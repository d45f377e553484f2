package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	envconfig "github.com/clinicore/billing-engine/pkg/config"
	"github.com/clinicore/billing-engine/pkg/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Log       logger.Config   `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Redis     RedisConfig     `yaml:"redis"`
	Mail      MailConfig      `yaml:"mail"`
	Worker    WorkerConfig    `yaml:"worker"`
}

func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/billing.yaml"
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv(envconfig.FromEnv("billing"))
	return cfg, nil
}

// Parse decodes YAML config and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "billing-engine"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Providers.Default == "" {
		c.Providers.Default = "mercadopago"
	}
	if c.Providers.RequestTimeout == 0 {
		c.Providers.RequestTimeout = 10 * time.Second
	}
	if c.Providers.MercadoPago.BaseURL == "" {
		c.Providers.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	if c.Providers.PagSeguro.BaseURL == "" {
		c.Providers.PagSeguro.BaseURL = "https://api.pagseguro.com"
	}
	if c.Auth.AdminRole == "" {
		c.Auth.AdminRole = "admin"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "billing.subscription.events"
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 30 * time.Second
	}
	if c.Worker.Interval == 0 {
		c.Worker.Interval = time.Hour
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 100
	}
}

// applyEnv overrides secrets from BILLING_* environment variables.
func (c *Config) applyEnv(env envconfig.Config) {
	override := func(key string, target *string) {
		if env.IsSet(key) {
			*target = env.GetString(key)
		}
	}

	override("database.password", &c.Database.Password)
	override("auth.jwt_secret", &c.Auth.JWTSecret)
	override("service.encryption_key", &c.Service.EncryptionKey)
	override("mercadopago.access_token", &c.Providers.MercadoPago.AccessToken)
	override("mercadopago.public_key", &c.Providers.MercadoPago.PublicKey)
	override("mercadopago.webhook_secret", &c.Providers.MercadoPago.WebhookSecret)
	override("pagseguro.token", &c.Providers.PagSeguro.Token)
	override("pagseguro.webhook_secret", &c.Providers.PagSeguro.WebhookSecret)
	override("redis.password", &c.Redis.Password)
	override("mail.password", &c.Mail.Password)
}
