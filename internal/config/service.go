package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// EncryptionKey is a 64 char hex AES-256 key for customer tax ids.
	EncryptionKey string `yaml:"encryption_key"`
	// SeedPlans upserts the default plan catalog at startup.
	SeedPlans bool `yaml:"seed_plans"`
}

type ProvidersConfig struct {
	Default        string            `yaml:"default"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	MercadoPago    MercadoPagoConfig `yaml:"mercadopago"`
	PagSeguro      PagSeguroConfig   `yaml:"pagseguro"`
}

type MercadoPagoConfig struct {
	BaseURL       string `yaml:"base_url"`
	AccessToken   string `yaml:"access_token"`
	PublicKey     string `yaml:"public_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BackURL       string `yaml:"back_url"`
}

type PagSeguroConfig struct {
	BaseURL       string `yaml:"base_url"`
	Token         string `yaml:"token"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	// LockTTL bounds how long a crashed replica can hold a webhook lock.
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}
