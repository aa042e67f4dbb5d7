package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds application settings (in-memory representation).
// User inputs that change at runtime live in flipper.Session; these are the
// startup values.
type Config struct {
	Port     int    `yaml:"port" default:"13380" validate:"gte=1,lte=65535"`
	LogLevel string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`

	Wiki struct {
		BaseURL     string        `yaml:"base_url" default:"https://prices.runescape.wiki/api/v1/osrs" validate:"required,url"`
		UserAgent   string        `yaml:"user_agent" default:"osrs-flip/1.0 (github.com/SyfSchydea/osrs-flip)" validate:"required"`
		Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
		Concurrency int           `yaml:"concurrency" default:"4" validate:"gte=1,lte=32"`
		MaxRetries  int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"500ms" validate:"gt=0"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"8s" validate:"gtefield=BackoffMin"`
	} `yaml:"wiki"`

	Flip struct {
		CashStack      string  `yaml:"cash_stack"`
		HoldingPeriod  string  `yaml:"holding_period" default:"4h"`
		PricePeriod    string  `yaml:"price_period" default:"1h" validate:"oneof=latest 5m 10m 30m 1h 6h 24h"`
		PageLimit      int     `yaml:"page_limit" default:"50" validate:"gte=1,lte=1000"`
		LookbackHours  float64 `yaml:"lookback_hours" default:"24" validate:"gt=0"`
		BuyLimitWindow float64 `yaml:"buy_limit_window_hours" default:"4" validate:"gt=0"`
	} `yaml:"flip"`

	Refresh struct {
		AutoRefresh bool          `yaml:"auto_refresh" default:"false"`
		Interval    time.Duration `yaml:"interval" default:"60s" validate:"gte=5s"`
	} `yaml:"refresh"`

	HistoryLimit int `yaml:"history_limit" default:"50" validate:"gte=1"`
}

var validate = validator.New()

// Default returns a Config with sensible defaults.
func Default() *Config {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FLIP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLIP_PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("FLIP_BASE_URL"); v != "" {
		c.Wiki.BaseURL = v
	}
	if v := os.Getenv("FLIP_USER_AGENT"); v != "" {
		c.Wiki.UserAgent = v
	}
	if v := os.Getenv("FLIP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks field bounds.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return err
}
