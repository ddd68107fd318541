package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

type Config struct {
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	LogPretty      bool          `mapstructure:"log_pretty"`
	DatabaseURL    string        `mapstructure:"database_url"`
	RevealDelay    time.Duration `mapstructure:"reveal_delay"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	CategoriesFile string        `mapstructure:"categories_file"`
}

// SetDefaults registers every key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("database_url", "")
	v.SetDefault("reveal_delay", internal.RevealDelay)
	v.SetDefault("sweep_interval", internal.SweepInterval)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("categories_file", "")
}

// Load reads a .env file when present, then resolves every setting from
// flags bound to v, the environment or the defaults.
func Load(v *viper.Viper) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitOrigins accepts both a list and a single comma separated value.
func splitOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RevealDelay < 0 {
		return fmt.Errorf("reveal delay must not be negative")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit and burst must be positive")
	}
	return nil
}
