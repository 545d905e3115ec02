package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application settings
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Sheet   SheetConfig   `mapstructure:"sheet"`
	Render  RenderConfig  `mapstructure:"render"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	StaticDir    string        `mapstructure:"static_dir"` // served under /app when set
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig selects and configures the roster backend
type StorageConfig struct {
	Driver   string      `mapstructure:"driver"` // "file" or "redis"
	FilePath string      `mapstructure:"file_path"`
	SeedDemo bool        `mapstructure:"seed_demo"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SheetConfig attendance sheet template settings
type SheetConfig struct {
	TemplatePath string `mapstructure:"template_path"` // empty uses the embedded template
	LogoPath     string `mapstructure:"logo_path"`
	StrictChecks bool   `mapstructure:"strict_checks"`
}

// RenderConfig headless browser settings
type RenderConfig struct {
	PoolSize      int           `mapstructure:"pool_size"` // 0 launches one browser per render
	Timeout       time.Duration `mapstructure:"timeout"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout"`
	Headless      bool          `mapstructure:"headless"`
	Args          []string      `mapstructure:"args"`
}

// LogConfig logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from file and environment.
// Precedence: environment > config file > defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.file_path", "students.json")
	v.SetDefault("storage.seed_demo", false)
	v.SetDefault("storage.redis.addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)

	v.SetDefault("sheet.template_path", "")
	v.SetDefault("sheet.logo_path", "public/logo.png")
	v.SetDefault("sheet.strict_checks", false)

	v.SetDefault("render.pool_size", 2)
	v.SetDefault("render.timeout", "60s")
	v.SetDefault("render.launch_timeout", "30s")
	v.SetDefault("render.headless", true)
	v.SetDefault("render.args", []string{"--allow-file-access-from-files", "--no-sandbox"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail late
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	switch c.Storage.Driver {
	case "file":
		if c.Storage.FilePath == "" {
			return fmt.Errorf("invalid config: storage.file_path is required for the file driver")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("invalid config: storage.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Render.PoolSize < 0 {
		return fmt.Errorf("invalid config: render.pool_size cannot be negative")
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("invalid config: render.timeout must be positive")
	}
	if c.Render.LaunchTimeout <= 0 {
		return fmt.Errorf("invalid config: render.launch_timeout must be positive")
	}
	return nil
}
