package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mtandao-wifi/hotspot-portal/internal/mpesa"
	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the portal. Environment values
// override the YAML config file.
const (
	EnvConfigPath          = "CONFIG_PATH"
	EnvDBConnection        = "DB_CONNECTION"
	EnvJWTSecret           = "JWT_SECRET"
	EnvJWTExpiry           = "JWT_EXPIRY"
	EnvMpesaConsumerKey    = "MPESA_CONSUMER_KEY"
	EnvMpesaConsumerSecret = "MPESA_CONSUMER_SECRET"
	EnvMpesaPasskey        = "MPESA_PASSKEY"
	EnvMpesaShortCode      = "MPESA_SHORTCODE"
	EnvMpesaBaseURL        = "MPESA_BASE_URL"
	EnvMpesaCallbackURL    = "MPESA_CALLBACK_URL"
	EnvAdminUsername       = "ADMIN_USERNAME"
	EnvAdminPassword       = "ADMIN_PASSWORD"
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
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// VoucherConfig holds voucher lifecycle settings.
type VoucherConfig struct {
	// DefaultValidity applies when neither the issuance request nor the
	// plan supplies a validity window.
	DefaultValidity time.Duration `yaml:"default-validity"`
	// SweepInterval controls how often the expiry sweeper runs.
	SweepInterval time.Duration `yaml:"sweep-interval"`
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
const defaultJWTExpiry = 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
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

// LoadMpesaConfig loads gateway settings from the YAML config file with
// environment overrides.
func LoadMpesaConfig(configPath string) (mpesa.Config, error) {
	// fileConfig maps the YAML fields needed for gateway settings.
	type fileConfig struct {
		Mpesa mpesa.Config `yaml:"mpesa"`
	}

	var result mpesa.Config
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Mpesa
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvMpesaConsumerKey)); v != "" {
		result.ConsumerKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMpesaConsumerSecret)); v != "" {
		result.ConsumerSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMpesaPasskey)); v != "" {
		result.Passkey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMpesaShortCode)); v != "" {
		result.ShortCode = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMpesaBaseURL)); v != "" {
		result.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMpesaCallbackURL)); v != "" {
		result.CallbackURL = v
	}
	return result, nil
}

// Voucher lifecycle defaults.
const (
	defaultVoucherValidity = 30 * 24 * time.Hour
	defaultSweepInterval   = time.Minute
)

// LoadVoucherConfig loads voucher lifecycle settings from the YAML config
// file, applying defaults for missing values.
func LoadVoucherConfig(configPath string) (VoucherConfig, error) {
	// fileConfig maps the YAML fields needed for voucher settings.
	type fileConfig struct {
		Voucher VoucherConfig `yaml:"voucher"`
	}

	result := VoucherConfig{
		DefaultValidity: defaultVoucherValidity,
		SweepInterval:   defaultSweepInterval,
	}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if cfg.Voucher.DefaultValidity > 0 {
				result.DefaultValidity = cfg.Voucher.DefaultValidity
			}
			if cfg.Voucher.SweepInterval > 0 {
				result.SweepInterval = cfg.Voucher.SweepInterval
			}
		}
	}
	return result, nil
}
