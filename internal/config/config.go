// Package config loads server settings from an optional TOML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/handsomefox/reelshelf/internal/env"
	"github.com/handsomefox/reelshelf/internal/paging"
)

const (
	defaultPort      = "8080"
	defaultDBPath    = "/app/data/reelshelf.db"
	defaultImageBase = "https://image.tmdb.org/t/p/w342"
)

type Config struct {
	Env           env.Environment `toml:"env"`
	Port          string          `toml:"port"`
	DBPath        string          `toml:"db_path"`
	PageSize      int             `toml:"page_size"`
	ViewCacheSize int             `toml:"view_cache_size"`
	CORSOrigins   []string        `toml:"cors_origins"`
	TMDB          TMDBConfig      `toml:"tmdb"`
	Log           LogConfig       `toml:"log"`
}

type TMDBConfig struct {
	APIKey    string  `toml:"api_key"`
	ReadToken string  `toml:"read_token"`
	ImageBase string  `toml:"image_base"`
	Rate      float64 `toml:"rate"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func Default() Config {
	return Config{
		Env:           env.Local,
		Port:          defaultPort,
		DBPath:        defaultDBPath,
		PageSize:      paging.DefaultPageSize,
		ViewCacheSize: 1024,
		TMDB: TMDBConfig{
			ImageBase: defaultImageBase,
			Rate:      20,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load starts from Default, applies the TOML file at path when path is not
// empty, then applies environment overrides read through getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Port, "PORT")
	set(&cfg.DBPath, "DB_PATH")
	set(&cfg.TMDB.APIKey, "TMDB_API_KEY")
	set(&cfg.TMDB.ReadToken, "TMDB_API_READ_TOKEN")
	set(&cfg.TMDB.ImageBase, "TMDB_IMAGE_BASE")
	set(&cfg.Log.Level, "LOG_LEVEL")
	set(&cfg.Log.File, "LOG_FILE")

	if v := getenv(env.Key); v != "" {
		cfg.Env = env.Parse(v)
	} else {
		cfg.Env = env.Parse(string(cfg.Env))
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("PAGE_SIZE: %w", err)
		}
		cfg.PageSize = n
	}
	if v := getenv("TMDB_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("TMDB_RATE: %w", err)
		}
		cfg.TMDB.Rate = r
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.TMDB.APIKey) == "" && strings.TrimSpace(c.TMDB.ReadToken) == "" {
		errs = append(errs, errors.New("TMDB_API_KEY is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %d", c.PageSize))
	}
	if c.ViewCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("view cache size must be positive, got %d", c.ViewCacheSize))
	}
	if c.TMDB.Rate <= 0 {
		errs = append(errs, fmt.Errorf("tmdb rate must be positive, got %v", c.TMDB.Rate))
	}
	return errors.Join(errs...)
}

func (c *Config) Addr() string { return ":" + c.Port }

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
