package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ir-stock-service/src/models"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig loads the YAML file, applies .env and environment overrides, then
// validates the result. Credentials are not required here.
func NewConfig(configPath string) (*Config, error) {
	// 1. Optional .env next to the working directory
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// 2. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 3. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	config.resolvePaths(filepath.Dir(configPath))

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 3001
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "https://api.massive.com"
	}
	if c.MarketData.CacheTTLSeconds == 0 {
		c.MarketData.CacheTTLSeconds = 5
	}
	if c.MarketData.BroadcastIntervalSeconds == 0 {
		c.MarketData.BroadcastIntervalSeconds = 5
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "America/New_York"
	}
	if c.Calendar.ExchangeMIC == "" {
		c.Calendar.ExchangeMIC = "xnys"
	}
	if c.Cron.Timezone == "" {
		c.Cron.Timezone = c.Calendar.Timezone
	}
	if c.Mailchimp.PageSize == 0 {
		c.Mailchimp.PageSize = 1000
	}
	if c.Strapi.PageSize == 0 {
		c.Strapi.PageSize = 100
	}
	if c.Alerts.SMTPPort == 0 {
		c.Alerts.SMTPPort = 587
	}
}

// -----------------------------------------------------------------------------

type lookupFunc func(key string) (string, bool)

// applyEnv overrides YAML values with any environment variables that are set.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %q", key, v)
		}
		*dst = b
		return nil
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %q", key, v)
		}
		*dst = n
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("MASSIVE_API_KEY", &c.MarketData.APIKey)
	str("CRON_TIMEZONE", &c.Cron.Timezone)
	str("CRON_API_KEY", &c.Cron.APIKey)
	str("MAILCHIMP_API_KEY", &c.Mailchimp.APIKey)
	str("MAILCHIMP_SERVER_PREFIX", &c.Mailchimp.ServerPrefix)
	str("MAILCHIMP_LIST_ID", &c.Mailchimp.ListID)
	str("STRAPI_API_URL", &c.Strapi.APIURL)
	str("STRAPI_API_TOKEN", &c.Strapi.APIToken)
	str("ADMIN_EMAIL", &c.Alerts.AdminEmail)
	str("SMTP_HOST", &c.Alerts.SMTPHost)
	str("SMTP_USERNAME", &c.Alerts.SMTPUsername)
	str("SMTP_PASSWORD", &c.Alerts.SMTPPassword)
	str("SMTP_FROM", &c.Alerts.From)

	if err := boolean("CRON_ENABLED", &c.Cron.Enabled); err != nil {
		return err
	}
	if err := boolean("DRY_RUN", &c.Cron.DryRun); err != nil {
		return err
	}
	if err := boolean("ADMIN_ALERT_ON_ERROR", &c.Alerts.Enabled); err != nil {
		return err
	}
	if err := integer("API_PORT", &c.Port); err != nil {
		return err
	}
	return integer("SMTP_PORT", &c.Alerts.SMTPPort)
}

// resolvePaths makes a relative holidays file relative to the config directory.
func (c *Config) resolvePaths(baseDir string) {
	if c.Calendar.HolidaysFile != "" && !filepath.IsAbs(c.Calendar.HolidaysFile) {
		c.Calendar.HolidaysFile = filepath.Join(baseDir, c.Calendar.HolidaysFile)
	}
}

// -----------------------------------------------------------------------------

// Validate runs the struct tag rules and checks that the timezones resolve.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c.MConfig); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field '%s' failed rule '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("invalid calendar timezone '%s': %w", c.Calendar.Timezone, err)
	}
	if _, err := time.LoadLocation(c.Cron.Timezone); err != nil {
		return fmt.Errorf("invalid cron timezone '%s': %w", c.Cron.Timezone, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Location is the market timezone. Validate has already checked it resolves.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
