package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PriceProphet/internal/logger"
	"PriceProphet/internal/prophet"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo moex rest mock"`
		BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey   string        `yaml:"api_key"`
		Timeout  time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
		Lookback time.Duration `yaml:"lookback" default:"8760h" validate:"gte=24h"`
	} `yaml:"data_source"`
	Forecast struct {
		Horizon int             `yaml:"horizon" default:"5" validate:"gte=1,lte=365"`
		Model   prophet.Options `yaml:"model"`
	} `yaml:"forecast"`
	Pipeline struct {
		Concurrency int `yaml:"concurrency" default:"1" validate:"gte=1,lte=64"`
	} `yaml:"pipeline"`
	Watchlist []string `yaml:"watchlist" validate:"dive,required"`
	Schedule  struct {
		BatchCron string `yaml:"batch_cron" default:"0 30 22 * * 1-5"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/price_prophet.db"`
	} `yaml:"database"`
	Metrics struct {
		PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
		Job            string `yaml:"job" default:"price_prophet" validate:"required"`
	} `yaml:"metrics"`
	Log   logger.Config `yaml:"log"`
	Proxy string        `yaml:"proxy" validate:"omitempty,url"`
}

var validate = validator.New()

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	// Defaults first so an explicit false or zero in YAML survives.
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	cfg.Forecast.Model = prophet.DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Watchlist = normalizeSymbols(cfg.Watchlist)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variable overrides
func (c *Config) applyEnv() error {
	str := map[string]*string{
		"DATA_PROVIDER":      &c.DataSource.Provider,
		"DATA_BASE_URL":      &c.DataSource.BaseURL,
		"DATA_API_KEY":       &c.DataSource.APIKey,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"CRON_BATCH":         &c.Schedule.BatchCron,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"PUSHGATEWAY_URL":    &c.Metrics.PushgatewayURL,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"HTTPS_PROXY":        &c.Proxy,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("FORECAST_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FORECAST_HORIZON: %w", err)
		}
		c.Forecast.Horizon = n
	}
	if v := os.Getenv("PIPELINE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PIPELINE_CONCURRENCY: %w", err)
		}
		c.Pipeline.Concurrency = n
	}
	if v := os.Getenv("DATA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DATA_TIMEOUT: %w", err)
		}
		c.DataSource.Timeout = d
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Watchlist = strings.Split(v, ",")
	}
	return nil
}

// Validate checks field constraints for every command.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DataSource.Provider == "rest" && c.DataSource.BaseURL == "" {
		return fmt.Errorf("invalid config: data_source.base_url is required for the rest provider")
	}
	return nil
}

// ValidateServe checks the additional fields the daemon needs.
func (c *Config) ValidateServe() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must not be empty")
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
