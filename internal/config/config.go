package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
)

type Config struct {
	Port                int           `yaml:"port"`
	RoundDuration       time.Duration `yaml:"round_duration"`
	DefaultPurchase     int           `yaml:"default_purchase"`
	DefaultBalance      int           `yaml:"default_balance"`
	OwnerBalance        int           `yaml:"owner_balance"`
	OwnerID             string        `yaml:"owner_id"`
	RolloverOnEmptyDraw bool          `yaml:"rollover_on_empty_draw"`
	EmptyDrawStatus     int           `yaml:"empty_draw_status"`
	AutoDraw            bool          `yaml:"auto_draw"`
	StaticDir           string        `yaml:"static_dir"`
	CORSOrigins         []string      `yaml:"cors_origins"`
	LogLevel            string        `yaml:"log_level"`
	Env                 string        `yaml:"env"`
}

func Default() Config {
	lc := ledger.DefaultConfig()
	return Config{
		Port:                3000,
		RoundDuration:       lc.RoundDuration,
		DefaultPurchase:     lc.DefaultPurchase,
		DefaultBalance:      lc.DefaultBalance,
		OwnerBalance:        lc.OwnerBalance,
		OwnerID:             string(lc.OwnerID),
		RolloverOnEmptyDraw: lc.RolloverOnEmpty,
		EmptyDrawStatus:     http.StatusOK,
		CORSOrigins:         []string{"*"},
		LogLevel:            "info",
		Env:                 "production",
	}
}

// Load layers defaults, the optional YAML file at path, then environment
// variables, and validates the result.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	var errs error
	setInt := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("invalid %s %q", key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("invalid %s %q", key, v))
				return
			}
			*dst = b
		}
	}
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("PORT", &cfg.Port)
	setInt("DEFAULT_PURCHASE", &cfg.DefaultPurchase)
	setInt("DEFAULT_BALANCE", &cfg.DefaultBalance)
	setInt("OWNER_BALANCE", &cfg.OwnerBalance)
	setInt("EMPTY_DRAW_STATUS", &cfg.EmptyDrawStatus)
	setBool("ROLLOVER_ON_EMPTY_DRAW", &cfg.RolloverOnEmptyDraw)
	setBool("AUTO_DRAW", &cfg.AutoDraw)
	setString("OWNER_ID", &cfg.OwnerID)
	setString("STATIC_DIR", &cfg.StaticDir)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("APP_ENV", &cfg.Env)

	if v := getenv("ROUND_DURATION"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid ROUND_DURATION %q", v))
		} else {
			cfg.RoundDuration = d
		}
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	return errs
}

// parseDuration takes a Go duration ("90s") or a bare integer in ms.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func (c Config) Validate() error {
	var errs error
	if c.Port < 1 || c.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RoundDuration < time.Millisecond {
		errs = multierr.Append(errs, errors.New("round duration must be at least 1ms"))
	}
	if c.DefaultPurchase <= 0 {
		errs = multierr.Append(errs, errors.New("default purchase must be positive"))
	}
	if c.DefaultBalance < 0 || c.OwnerBalance < 0 {
		errs = multierr.Append(errs, errors.New("starting balances cannot be negative"))
	}
	if c.OwnerID == "" {
		errs = multierr.Append(errs, errors.New("owner id is required"))
	}
	if c.EmptyDrawStatus != http.StatusOK && c.EmptyDrawStatus != http.StatusBadRequest {
		errs = multierr.Append(errs, fmt.Errorf("empty draw status must be 200 or 400, got %d", c.EmptyDrawStatus))
	}
	return errs
}

func (c Config) Ledger() ledger.Config {
	return ledger.Config{
		RoundDuration:   c.RoundDuration,
		DefaultPurchase: c.DefaultPurchase,
		DefaultBalance:  c.DefaultBalance,
		OwnerBalance:    c.OwnerBalance,
		OwnerID:         ledger.UserID(c.OwnerID),
		RolloverOnEmpty: c.RolloverOnEmptyDraw,
	}
}

func (c Config) Development() bool { return c.Env == "development" }

func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }
