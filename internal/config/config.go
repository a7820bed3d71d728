package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the config loader.
const (
	EnvConfigPath      = "CONFIG_PATH"
	EnvDBConnection    = "DB_CONNECTION"
	EnvJWTSecret       = "JWT_SECRET"
	EnvJWTExpiry       = "JWT_EXPIRY"
	EnvGatewayKeyID    = "GATEWAY_KEY_ID"
	EnvGatewaySecret   = "GATEWAY_KEY_SECRET"
	EnvSMSAPIKey       = "SMS_API_KEY"
	EnvUploadsAPIKey   = "UPLOADS_API_KEY"
	EnvRedisAddr       = "RATE_LIMIT_REDIS_ADDR"
	EnvRedisPassword   = "RATE_LIMIT_REDIS_PASSWORD"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// GatewayConfig holds payment-gateway credentials.
type GatewayConfig struct {
	KeyID     string `yaml:"key-id"`
	KeySecret string `yaml:"key-secret"`
}

// SMSConfig holds SMS provider credentials.
type SMSConfig struct {
	APIKey   string `yaml:"api-key"`
	SenderID string `yaml:"sender-id"`
}

// UploadsConfig holds image host credentials.
type UploadsConfig struct {
	APIKey string `yaml:"api-key"`
}

// RedisConfig holds optional Redis settings for rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings. Expiry is a
	// duration string like "720h".
	type fileConfig struct {
		JWT struct {
			Secret string `yaml:"secret"`
			Expiry string `yaml:"expiry"`
		} `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result.Secret = cfg.JWT.Secret
			if expiry, errParse := time.ParseDuration(strings.TrimSpace(cfg.JWT.Expiry)); errParse == nil && expiry > 0 {
				result.Expiry = expiry
			}
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// LoadGatewayConfig loads payment-gateway credentials from the YAML config file.
func LoadGatewayConfig(configPath string) (GatewayConfig, error) {
	// fileConfig maps the YAML fields needed for gateway settings.
	type fileConfig struct {
		Gateway GatewayConfig `yaml:"gateway"`
	}

	var result GatewayConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Gateway
		}
	}

	if keyID := strings.TrimSpace(os.Getenv(EnvGatewayKeyID)); keyID != "" {
		result.KeyID = keyID
	}
	if secret := strings.TrimSpace(os.Getenv(EnvGatewaySecret)); secret != "" {
		result.KeySecret = secret
	}
	return result, nil
}

// LoadSMSConfig loads SMS provider settings from the YAML config file.
func LoadSMSConfig(configPath string) (SMSConfig, error) {
	// fileConfig maps the YAML fields needed for SMS settings.
	type fileConfig struct {
		SMS SMSConfig `yaml:"sms"`
	}

	var result SMSConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.SMS
		}
	}

	if apiKey := strings.TrimSpace(os.Getenv(EnvSMSAPIKey)); apiKey != "" {
		result.APIKey = apiKey
	}
	return result, nil
}

// LoadUploadsConfig loads image host settings from the YAML config file.
func LoadUploadsConfig(configPath string) (UploadsConfig, error) {
	// fileConfig maps the YAML fields needed for upload settings.
	type fileConfig struct {
		Uploads UploadsConfig `yaml:"uploads"`
	}

	var result UploadsConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Uploads
		}
	}

	if apiKey := strings.TrimSpace(os.Getenv(EnvUploadsAPIKey)); apiKey != "" {
		result.APIKey = apiKey
	}
	return result, nil
}

// LoadRedisConfig loads optional Redis settings from the YAML config file.
func LoadRedisConfig(configPath string) (RedisConfig, error) {
	// fileConfig maps the YAML fields needed for Redis settings.
	type fileConfig struct {
		Redis RedisConfig `yaml:"redis"`
	}

	var result RedisConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Redis
		}
	}

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.Addr = addr
	}
	if password := strings.TrimSpace(os.Getenv(EnvRedisPassword)); password != "" {
		result.Password = password
	}
	return result, nil
}
