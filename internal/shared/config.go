package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from the config file.
const (
	EnvAPIKey     = "YOUTUBE_API_KEY"
	EnvBinaryPath = "TUNEFLOW_YTDLP_PATH"
	EnvPort       = "TUNEFLOW_PORT"
)

// MaxSearchResults is the most tracks a search returns.
const MaxSearchResults = 10

// Config represents the application configuration loaded from a TOML file.
//
// It is built once at startup and passed to each component; nothing reads the environment afterwards.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	YouTube   YouTubeConfig   `toml:"youtube"`
	Extractor ExtractorConfig `toml:"extractor"`
	Retry     RetryConfig     `toml:"retry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	LogLevel          string   `toml:"log_level"`
	LogFile           string   `toml:"log_file"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// YouTubeConfig contains YouTube Data API settings.
type YouTubeConfig struct {
	APIKey     string `toml:"api_key"`
	APIURL     string `toml:"api_url"`
	MaxResults int    `toml:"max_results"`
}

// ExtractorConfig describes how the extraction executable is invoked.
type ExtractorConfig struct {
	Binary            string        `toml:"binary"`
	SourceURL         string        `toml:"source_url"`
	StreamFormat      string        `toml:"stream_format"`
	StreamContentType string        `toml:"stream_content_type"`
	AudioFormat       string        `toml:"audio_format"`
	TempDir           string        `toml:"temp_dir"`
	MaxConcurrent     int           `toml:"max_concurrent"`
	StderrLimit       int           `toml:"stderr_limit"`
	KillGrace         time.Duration `toml:"kill_grace"`
}

// RetryConfig contains backoff settings for rate-limited upstream calls.
type RetryConfig struct {
	MaxAttempts   int           `toml:"max_attempts"`
	BaseDelay     time.Duration `toml:"base_delay"`
	InfoBaseDelay time.Duration `toml:"info_base_delay"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Resolve loads the config file at path when it exists (falling back to defaults), then
// loads envFile into the process environment and applies overrides from it.
func Resolve(path, envFile string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config values with the environment variables reported by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIKey); ok && strings.TrimSpace(v) != "" {
		c.YouTube.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBinaryPath); ok && strings.TrimSpace(v) != "" {
		c.Extractor.Binary = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port", ErrInvalidConfig, EnvPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate reports configuration that would make the gateway unusable.
func (c *Config) Validate() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredentials, EnvAPIKey)
	}
	if c.Extractor.Binary == "" {
		return fmt.Errorf("%w: extractor.binary is empty", ErrInvalidConfig)
	}
	if !strings.Contains(c.Extractor.SourceURL, "%s") {
		return fmt.Errorf("%w: extractor.source_url must contain %%s", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry.max_attempts must be positive", ErrInvalidConfig)
	}
	if c.YouTube.MaxResults < 0 || c.YouTube.MaxResults > MaxSearchResults {
		return fmt.Errorf("%w: youtube.max_results must be between 0 and %d", ErrInvalidConfig, MaxSearchResults)
	}
	if c.Extractor.MaxConcurrent < 0 {
		return fmt.Errorf("%w: extractor.max_concurrent must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
