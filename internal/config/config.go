// Package config provides configuration loading for ghostview.
// Supports YAML files, .env files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for ghostview.
type Config struct {
	Engine        EngineConfig        `yaml:"engine"`
	Render        RenderConfig        `yaml:"render"`
	Paths         PathsConfig         `yaml:"paths"`
	Cache         CacheConfig         `yaml:"cache"`
	History       HistoryConfig       `yaml:"history"`
	Server        ServerConfig        `yaml:"server"`
	Print         PrintConfig         `yaml:"print"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// EngineConfig controls how the native library is located and fed.
type EngineConfig struct {
	LibraryPath    string `yaml:"library_path"` // empty means search the default names
	ReadBufferSize int    `yaml:"read_buffer_size"`
}

// RenderConfig holds resolution and viewing defaults.
type RenderConfig struct {
	Resolution int     `yaml:"resolution"` // dpi for exported output
	Zoom       float64 `yaml:"zoom"`
	ZoomMin    float64 `yaml:"zoom_min"`
	ZoomMax    float64 `yaml:"zoom_max"`
	ThumbZoom  float64 `yaml:"thumb_zoom"`
	ThumbWidth int     `yaml:"thumb_width"` // pixels; thumbnails are scaled to this width
	Antialias  bool    `yaml:"antialias"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	TempDir string `yaml:"temp_dir"`
}

// CacheConfig holds render cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// HistoryConfig holds job history store settings.
type HistoryConfig struct {
	Driver   string         `yaml:"driver"` // none, sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// PrintConfig holds print spooler settings.
type PrintConfig struct {
	Command string `yaml:"command"`
	Printer string `yaml:"printer"`
	Device  string `yaml:"device"` // intermediate device for spooled pages
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file, then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// A missing .env is normal
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with defaults matching the desktop viewer.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ReadBufferSize: 32 * 1024,
		},
		Render: RenderConfig{
			Resolution: 300,
			Zoom:       1.0,
			ZoomMin:    0.25,
			ZoomMax:    4.0,
			ThumbZoom:  0.1,
			ThumbWidth: 96,
			Antialias:  true,
		},
		Paths: PathsConfig{
			TempDir: os.TempDir(),
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 512,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		History: HistoryConfig{
			Driver: "none",
			SQLite: SQLiteConfig{
				Path:         "ghostview.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8086,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   256 << 20,
		},
		Print: PrintConfig{
			Command: "lp",
			Device:  "pdfwrite",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Engine.ReadBufferSize < 1 {
		return fmt.Errorf("read_buffer_size must be positive: %d", c.Engine.ReadBufferSize)
	}

	if c.Render.Resolution < 1 {
		return fmt.Errorf("invalid resolution: %d", c.Render.Resolution)
	}

	if c.Render.ZoomMin <= 0 || c.Render.ZoomMin > c.Render.ZoomMax {
		return fmt.Errorf("invalid zoom bounds: %v..%v", c.Render.ZoomMin, c.Render.ZoomMax)
	}

	if c.Render.Zoom < c.Render.ZoomMin || c.Render.Zoom > c.Render.ZoomMax {
		return fmt.Errorf("zoom %v outside %v..%v", c.Render.Zoom, c.Render.ZoomMin, c.Render.ZoomMax)
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	switch c.History.Driver {
	case "none", "sqlite":
	case "postgres":
		if c.History.Postgres.DSN == "" {
			return fmt.Errorf("postgres history requires a dsn")
		}
	default:
		return fmt.Errorf("invalid history driver: %s", c.History.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// HistoryDSN returns the connection string for the configured history driver.
func (c *Config) HistoryDSN() string {
	if c.History.Driver == "postgres" {
		return c.History.Postgres.DSN
	}
	return c.History.SQLite.Path
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GS_LIBRARY"); v != "" {
		cfg.Engine.LibraryPath = v
	}

	if v := os.Getenv("GHOSTVIEW_TEMP_DIR"); v != "" {
		cfg.Paths.TempDir = v
	}

	if v := os.Getenv("GHOSTVIEW_RESOLUTION"); v != "" {
		if res, err := strconv.Atoi(v); err == nil {
			cfg.Render.Resolution = res
		}
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.History.Driver = "sqlite"
			cfg.History.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.History.Driver = "postgres"
			cfg.History.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("PRINTER"); v != "" {
		cfg.Print.Printer = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
