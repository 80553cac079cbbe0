// Package config handles loading and validation of service configuration.
// Supports both development (env vars or a config file) and production
// (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/markup"
	"cart-drawer/internal/reconcile"
	"cart-drawer/internal/storage"
)

// Adapter types.
const (
	AdapterShopify = "shopify"
	AdapterMemory  = "memory" // In-process demo cart, no storefront
)

// Config holds all service configuration.
// Environment determines whether the store section loads from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	StoreID    string

	AdapterType string

	// SettingsFromMarkup reads drawer settings from the storefront page at
	// startup when no protection line is configured.
	SettingsFromMarkup bool

	Store   StoreConfig
	Storage StorageConfig
}

// StoreConfig contains store-specific drawer settings.
// In production, this is loaded from Secret Manager as JSON.
type StoreConfig struct {
	StoreURL   string `json:"store_url" yaml:"store_url"`
	PagePath   string `json:"page_path,omitempty" yaml:"page_path"`
	FragmentID string `json:"fragment_id,omitempty" yaml:"fragment_id"`

	ProtectionLineItemID       int64 `json:"protection_line_item_id,omitempty" yaml:"protection_line_item_id"`
	ProtectionEnabledByDefault bool  `json:"protection_enabled_default,omitempty" yaml:"protection_enabled_default"`

	ProgressBarEnabled bool              `json:"progress_bar_enabled,omitempty" yaml:"progress_bar_enabled"`
	Thresholds         []ThresholdConfig `json:"discount_thresholds,omitempty" yaml:"discount_thresholds"`
	ExcludedProductIDs []int64           `json:"excluded_product_ids,omitempty" yaml:"excluded_product_ids"`
	CurrencySymbol     string            `json:"currency_symbol,omitempty" yaml:"currency_symbol"`
	ReservationMinutes int               `json:"reservation_minutes,omitempty" yaml:"reservation_minutes"`

	// TLSFingerprint sends storefront requests with a browser TLS fingerprint.
	TLSFingerprint bool `json:"tls_fingerprint,omitempty" yaml:"tls_fingerprint"`
}

// ThresholdConfig is one discount progress bar step.
type ThresholdConfig struct {
	Value         int64  `json:"value" yaml:"value"` // Minor units
	Type          string `json:"type" yaml:"type"`   // "gift" or "free-shipping"
	GiftProductID int64  `json:"gift_product_id,omitempty" yaml:"gift_product_id"`
}

// StorageConfig selects the override store.
type StorageConfig struct {
	Driver     string `json:"driver" yaml:"driver"` // "memory", "redis" or "sqlite"
	RedisAddr  string `json:"redis_addr,omitempty" yaml:"redis_addr"`
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path"`
}

// Load reads configuration from file, environment, or Secret Manager.
// A .env file in the working directory is applied first without overriding
// variables already set.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are invalid.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	// If CONFIG_FILE is set, load everything from the file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		StoreID:     os.Getenv("STORE_ID"),
		AdapterType: envOrDefault("ADAPTER_TYPE", AdapterShopify),
		Storage: StorageConfig{
			Driver:     envOrDefault("STORAGE_DRIVER", "memory"),
			RedisAddr:  os.Getenv("REDIS_ADDR"),
			SQLitePath: os.Getenv("SQLITE_PATH"),
		},
	}

	var err error
	if cfg.SettingsFromMarkup, err = envBool("SETTINGS_FROM_MARKUP"); err != nil {
		return nil, err
	}

	// Load store config based on environment
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StoreID == "" {
			return nil, fmt.Errorf("STORE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig matches the CONFIG_FILE layout, JSON or YAML.
type fileConfig struct {
	Port               string        `json:"port" yaml:"port"`
	Environment        string        `json:"environment" yaml:"environment"`
	LogLevel           string        `json:"log_level" yaml:"log_level"`
	AdapterType        string        `json:"adapter_type" yaml:"adapter_type"`
	StoreID            string        `json:"store_id" yaml:"store_id"`
	SettingsFromMarkup bool          `json:"settings_from_markup" yaml:"settings_from_markup"`
	Store              StoreConfig   `json:"store" yaml:"store"`
	Storage            StorageConfig `json:"storage" yaml:"storage"`
}

// loadFromFile reads all configuration from a JSON or YAML file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:               withDefault(fc.Port, "8080"),
		Environment:        withDefault(fc.Environment, "development"),
		LogLevel:           withDefault(fc.LogLevel, "info"),
		AdapterType:        withDefault(fc.AdapterType, AdapterShopify),
		StoreID:            fc.StoreID,
		SettingsFromMarkup: fc.SettingsFromMarkup,
		Store:              fc.Store,
		Storage:            fc.Storage,
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches the store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads the store config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		StoreURL:       os.Getenv("STORE_URL"),
		PagePath:       os.Getenv("STORE_PAGE_PATH"),
		FragmentID:     os.Getenv("DRAWER_FRAGMENT_ID"),
		CurrencySymbol: os.Getenv("CURRENCY_SYMBOL"),
	}

	var err error
	if c.Store.ProtectionLineItemID, err = envInt64("PROTECTION_LINE_ITEM_ID"); err != nil {
		return err
	}
	if c.Store.ProtectionEnabledByDefault, err = envBool("PROTECTION_ENABLED_DEFAULT"); err != nil {
		return err
	}
	if c.Store.ProgressBarEnabled, err = envBool("PROGRESS_BAR_ENABLED"); err != nil {
		return err
	}
	if c.Store.TLSFingerprint, err = envBool("TLS_FINGERPRINT"); err != nil {
		return err
	}
	minutes, err := envInt64("RESERVATION_MINUTES")
	if err != nil {
		return err
	}
	c.Store.ReservationMinutes = int(minutes)

	// Parse thresholds JSON if provided
	if thresholdsJSON := os.Getenv("DISCOUNT_THRESHOLDS"); thresholdsJSON != "" {
		if err := json.Unmarshal([]byte(thresholdsJSON), &c.Store.Thresholds); err != nil {
			return fmt.Errorf("parsing DISCOUNT_THRESHOLDS JSON: %w", err)
		}
	}

	if ids := os.Getenv("EXCLUDED_PRODUCT_IDS"); ids != "" {
		for _, field := range strings.Split(ids, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return fmt.Errorf("parsing EXCLUDED_PRODUCT_IDS: %w", err)
			}
			c.Store.ExcludedProductIDs = append(c.Store.ExcludedProductIDs, id)
		}
	}

	return nil
}

// applyDefaults fills unset store and storage fields.
// The currency symbol stays empty so page markup can still supply it.
func (c *Config) applyDefaults() {
	c.Store.PagePath = withDefault(c.Store.PagePath, "/")
	c.Store.FragmentID = withDefault(c.Store.FragmentID, markup.DefaultFragmentID)
	if c.Store.ExcludedProductIDs == nil {
		c.Store.ExcludedProductIDs = append([]int64(nil), reconcile.DefaultExcludedProductIDs...)
	}
	c.Storage.Driver = withDefault(c.Storage.Driver, "memory")
}

// validate checks that all configuration fields are usable.
func (c *Config) validate() error {
	switch c.AdapterType {
	case AdapterShopify:
		if c.Store.StoreURL == "" {
			return fmt.Errorf("store_url is required")
		}
		// Validate store URL is well-formed
		u, err := url.Parse(c.Store.StoreURL)
		if err != nil {
			return fmt.Errorf("invalid store_url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid store_url: %q is not an absolute http(s) URL", c.Store.StoreURL)
		}
	case AdapterMemory:
	default:
		return fmt.Errorf("unknown adapter_type %q (shopify or memory)", c.AdapterType)
	}

	if err := reconcile.ValidateThresholds(c.thresholds()); err != nil {
		return fmt.Errorf("discount_thresholds: %w", err)
	}

	if c.Store.ReservationMinutes < 0 {
		return fmt.Errorf("reservation_minutes must not be negative")
	}

	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis storage driver")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	return nil
}

func (c *Config) thresholds() []reconcile.Threshold {
	thresholds := make([]reconcile.Threshold, len(c.Store.Thresholds))
	for i, t := range c.Store.Thresholds {
		kind := reconcile.KindFreeShipping
		if t.Type == string(reconcile.KindGift) {
			kind = reconcile.KindGift
		}
		thresholds[i] = reconcile.Threshold{Value: t.Value, Kind: kind, GiftProductID: t.GiftProductID}
	}
	return thresholds
}

// BuildDrawerSettings converts the store config into the drawer's settings.
func (c *Config) BuildDrawerSettings() drawer.Settings {
	thresholds := c.thresholds()

	return drawer.Settings{
		Protection: reconcile.ProtectionConfig{
			LineItemID:       c.Store.ProtectionLineItemID,
			EnabledByDefault: c.Store.ProtectionEnabledByDefault,
		},
		Thresholds:         thresholds,
		ProgressBarEnabled: c.Store.ProgressBarEnabled,
		ExcludedProductIDs: c.Store.ExcludedProductIDs,
		CurrencySymbol:     c.Store.CurrencySymbol,
		PagePath:           c.Store.PagePath,
		FragmentID:         c.Store.FragmentID,
		ReservationMinutes: c.Store.ReservationMinutes,
	}
}

// StorageOptions returns the options for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:     c.Storage.Driver,
		RedisAddr:  c.Storage.RedisAddr,
		SQLitePath: c.Storage.SQLitePath,
	}
}

// NeedsMarkupSettings reports whether drawer settings should be read from
// the storefront page at startup.
func (c *Config) NeedsMarkupSettings() bool {
	return c.SettingsFromMarkup && c.Store.ProtectionLineItemID == 0
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envBool parses a boolean environment variable; unset is false.
func envBool(key string) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

// envInt64 parses an integer environment variable; unset is 0.
func envInt64(key string) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
