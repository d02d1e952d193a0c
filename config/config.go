package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the aggregation service.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Region     RegionConfig     `mapstructure:"region"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// AuthConfig contains the OAuth2 client-credentials settings for
// token-protected sources (TDX).
type AuthConfig struct {
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	SafetyMargin time.Duration `mapstructure:"safety_margin"`
}

// Normalize applies defaults for unset auth values.
func (a AuthConfig) Normalize() AuthConfig {
	if a.TokenURL == "" {
		a.TokenURL = "https://tdx.transportdata.tw/auth/realms/TDXConnect/protocol/openid-connect/token"
	}
	if a.SafetyMargin <= 0 {
		a.SafetyMargin = 60 * time.Second
	}
	return a
}

// SourcesConfig contains per-feed endpoints and shared fetch settings.
type SourcesConfig struct {
	Fetch    FetchConfig   `mapstructure:"fetch"`
	TDX      SourceConfig  `mapstructure:"tdx"`
	Freeway  SourceConfig  `mapstructure:"freeway"`
	THB      SourceConfig  `mapstructure:"thb"`
	Priority []string      `mapstructure:"priority"`
	Deadline time.Duration `mapstructure:"deadline"`
}

// SourceConfig describes one external open-data feed.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Enabled bool   `mapstructure:"enabled"`
}

// FetchConfig contains shared HTTP fetch settings.
type FetchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	Backoff time.Duration `mapstructure:"backoff"`
}

// Normalize applies defaults for unset fetch values.
func (f FetchConfig) Normalize() FetchConfig {
	if f.Timeout <= 0 {
		f.Timeout = 15 * time.Second
	}
	if f.Retries < 0 {
		f.Retries = 0
	}
	if f.Backoff <= 0 {
		f.Backoff = 300 * time.Millisecond
	}
	return f
}

// Normalize applies defaults for unset source values.
func (s SourcesConfig) Normalize() SourcesConfig {
	s.Fetch = s.Fetch.Normalize()
	if s.TDX.BaseURL == "" {
		s.TDX.BaseURL = "https://tdx.transportdata.tw/api/basic/v2/Road/Traffic/CCTV"
	}
	if s.Freeway.BaseURL == "" {
		s.Freeway.BaseURL = "https://tisvcloud.freeway.gov.tw/history/motc20/CCTV.json"
	}
	if s.THB.BaseURL == "" {
		s.THB.BaseURL = "https://thbapp.thb.gov.tw/opendata/cctv/CCTV.xml"
	}
	if len(s.Priority) == 0 {
		s.Priority = []string{"tdx", "freeway", "thb"}
	}
	if s.Deadline <= 0 {
		s.Deadline = 20 * time.Second
	}
	return s
}

// PaginationConfig contains page-session settings.
type PaginationConfig struct {
	PageSize int           `mapstructure:"page_size"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Normalize applies defaults for unset pagination values.
func (p PaginationConfig) Normalize() PaginationConfig {
	if p.PageSize <= 0 {
		p.PageSize = 10
	}
	if p.TTL <= 0 {
		p.TTL = 300 * time.Second
	}
	return p
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RegionConfig extends the compiled-in region tables from configuration.
// Keywords maps a parent region (e.g. "新北") to sub-region search terms;
// Boxes appends bounding boxes checked before the built-in table.
type RegionConfig struct {
	Keywords map[string][]string `mapstructure:"keywords"`
	Boxes    []BoxConfig         `mapstructure:"boxes"`
}

// BoxConfig is one configured county bounding box.
type BoxConfig struct {
	County string  `mapstructure:"county"`
	MinLat float64 `mapstructure:"min_lat"`
	MaxLat float64 `mapstructure:"max_lat"`
	MinLon float64 `mapstructure:"min_lon"`
	MaxLon float64 `mapstructure:"max_lon"`
}

// StorageConfig selects the page-session backend.
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // memory | redis
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory":
		return nil
	case "redis":
		if strings.TrimSpace(s.Redis.Host) == "" {
			return fmt.Errorf("storage.redis.host required when backend is redis")
		}
		if strings.TrimSpace(s.Redis.Port) == "" {
			return fmt.Errorf("storage.redis.port required when backend is redis")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend must be memory or redis, got %q", s.Backend)
	}
}

// LoadConfig loads config from file, falling back to defaults when no
// config file is present. Environment variables with the ROADWATCH_
// prefix override file values.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("sources.tdx.enabled", true)
	viper.SetDefault("sources.freeway.enabled", true)
	viper.SetDefault("sources.thb.enabled", true)
	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("ROADWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No named file: run on defaults unless the found file is broken.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	config.Auth = config.Auth.Normalize()
	config.Sources = config.Sources.Normalize()
	config.Pagination = config.Pagination.Normalize()

	if err := config.Storage.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
