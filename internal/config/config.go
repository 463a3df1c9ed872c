// Package config loads engine configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Schedule struct {
		WeeklyCron string `yaml:"weekly_cron"`
		DailyCron  string `yaml:"daily_cron"`
		Timezone   string `yaml:"timezone"`
		// Parallelism bounds how many accounts a scheduled run processes at once.
		Parallelism int `yaml:"parallelism" validate:"gte=1"`
	} `yaml:"schedule"`
	Database struct {
		Driver       string `yaml:"driver" validate:"oneof=sqlite memory"`
		SQLitePath   string `yaml:"sqlite_path"`
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" validate:"gte=0"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`
	HTTP struct {
		Addr string `yaml:"addr" validate:"required"`
	} `yaml:"http"`
	Logging struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=json console"`
	} `yaml:"logging"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	SkipTrace struct {
		BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey    string        `yaml:"api_key"`
		Timeout   time.Duration `yaml:"timeout"`
		BatchSize int           `yaml:"batch_size" validate:"gte=0"`
	} `yaml:"skip_trace"`
	Collector struct {
		BaseURL string `yaml:"base_url" validate:"omitempty,url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"collector"`
	Defaults    Defaults        `yaml:"defaults"`
	SignalsFile string          `yaml:"signals_file"`
	Signals     []model.Signal  `yaml:"signals"`
	Accounts    []AccountConfig `yaml:"accounts" validate:"dive"`
	Proxy       string          `yaml:"proxy"`
}

// Defaults are the system-wide engine settings accounts fall back to.
type Defaults struct {
	Cadence         model.Cadence `yaml:"cadence"`
	CooldownMonths  int           `yaml:"cooldown_months" validate:"gte=1"`
	ScoreFloor      float64       `yaml:"score_floor" validate:"gte=0"`
	SkipTraceRate   string        `yaml:"skip_trace_rate" validate:"required,numeric"`
	FreshnessMonths int           `yaml:"freshness_months" validate:"gte=1"`
	WeeklyCapacity  int           `yaml:"weekly_capacity" validate:"gte=1"`
	LockWait        time.Duration `yaml:"lock_wait"`
}

// Rate returns the parsed system skip-trace rate.
func (d Defaults) Rate() decimal.Decimal {
	r, err := decimal.NewFromString(d.SkipTraceRate)
	if err != nil {
		return decimal.Zero
	}
	return r
}

// AccountConfig seeds an account from the config file.
type AccountConfig struct {
	model.Account `yaml:",inline"`
	SkipTraceRate string `yaml:"skip_trace_rate" validate:"omitempty,numeric"`
}

// ToAccount resolves the partner rate into the account.
func (a AccountConfig) ToAccount() model.Account {
	acct := a.Account
	if a.SkipTraceRate != "" {
		if r, err := decimal.NewFromString(a.SkipTraceRate); err == nil {
			acct.SkipTraceRate = &r
		}
	}
	return acct
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	loadEnvFile(path)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// loadEnvFile loads the first .env found next to the config file or in the
// working directory. Existing environment variables win.
func loadEnvFile(configPath string) {
	for _, p := range []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func applyEnv(cfg *Config) {
	str := map[string]*string{
		"SQLITE_PATH":        &cfg.Database.SQLitePath,
		"STORE_DRIVER":       &cfg.Database.Driver,
		"REDIS_ADDR":         &cfg.Redis.Addr,
		"REDIS_PASSWORD":     &cfg.Redis.Password,
		"HTTP_ADDR":          &cfg.HTTP.Addr,
		"TELEGRAM_BOT_TOKEN": &cfg.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &cfg.Telegram.ChatID,
		"SKIPTRACE_BASE_URL": &cfg.SkipTrace.BaseURL,
		"SKIPTRACE_API_KEY":  &cfg.SkipTrace.APIKey,
		"COLLECTOR_BASE_URL": &cfg.Collector.BaseURL,
		"COLLECTOR_API_KEY":  &cfg.Collector.APIKey,
		"CRON_WEEKLY":        &cfg.Schedule.WeeklyCron,
		"CRON_DAILY":         &cfg.Schedule.DailyCron,
		"LOG_LEVEL":          &cfg.Logging.Level,
		"LOG_FORMAT":         &cfg.Logging.Format,
		"HTTPS_PROXY":        &cfg.Proxy,
		"SKIPTRACE_RATE":     &cfg.Defaults.SkipTraceRate,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("WEEKLY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.WeeklyCapacity = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Schedule.WeeklyCron == "" {
		cfg.Schedule.WeeklyCron = "0 0 8 * * 1"
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 0 6 * * *"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.Schedule.Parallelism == 0 {
		cfg.Schedule.Parallelism = 4
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/firstpulse.db"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.SkipTrace.Timeout == 0 {
		cfg.SkipTrace.Timeout = 30 * time.Second
	}
	if cfg.SkipTrace.BatchSize == 0 {
		cfg.SkipTrace.BatchSize = 250
	}

	d := &cfg.Defaults
	if d.Cadence.Blitz == (model.LaneCadence{}) {
		d.Cadence.Blitz = model.LaneCadence{DaysBetween: 14, MaxTouches: 12}
	}
	if d.Cadence.Chase == (model.LaneCadence{}) {
		d.Cadence.Chase = model.LaneCadence{DaysBetween: 30, MaxTouches: 18}
	}
	if d.Cadence.Nurture == (model.LaneCadence{}) {
		d.Cadence.Nurture = model.LaneCadence{DaysBetween: 45, MaxTouches: 10}
	}
	if d.CooldownMonths == 0 {
		d.CooldownMonths = 6
	}
	if d.ScoreFloor == 0 {
		d.ScoreFloor = 0.10
	}
	if d.SkipTraceRate == "" {
		d.SkipTraceRate = "0.06"
	}
	if d.FreshnessMonths == 0 {
		d.FreshnessMonths = 6
	}
	if d.WeeklyCapacity == 0 {
		d.WeeklyCapacity = 100
	}
	if d.LockWait == 0 {
		d.LockWait = 10 * time.Second
	}
}

// Validate checks struct constraints, cron expressions and the timezone.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s fails %q validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("validate config: %w", err)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.WeeklyCron); err != nil {
		return fmt.Errorf("schedule.weekly_cron: %w", err)
	}
	if _, err := parser.Parse(c.Schedule.DailyCron); err != nil {
		return fmt.Errorf("schedule.daily_cron: %w", err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if c.Database.Driver == "sqlite" && c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for _, a := range c.Accounts {
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("accounts: duplicate id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
