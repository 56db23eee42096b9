package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration of the server.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Spotify    SpotifyConfig    `mapstructure:"spotify"`
	ElevenLabs ElevenLabsConfig `mapstructure:"eleven_labs"`
	Mongo      MongoConfig      `mapstructure:"mongodb"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Retry      RetryConfig      `mapstructure:"retry"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	BodyLimit       string        `mapstructure:"body_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	TempDir         string        `mapstructure:"temp_dir"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type SpotifyConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	TokenURL     string        `mapstructure:"token_url"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	Market       string        `mapstructure:"market"`
	SafetyMargin time.Duration `mapstructure:"safety_margin"`
}

// Enabled reports whether track lookups can be made.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

type ElevenLabsConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	APIBaseURL   string  `mapstructure:"api_base_url"`
	VoiceID      string  `mapstructure:"voice_id"`
	ModelID      string  `mapstructure:"model_id"`
	OutputFormat string  `mapstructure:"output_format"`
	ChunkSize    int     `mapstructure:"chunk_size"`
	Stability    float64 `mapstructure:"stability"`
	Clarity      float64 `mapstructure:"clarity"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	TrackTTL time.Duration `mapstructure:"track_ttl"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Jitter       float64       `mapstructure:"jitter"`
}

// Options customises where configuration is read from.
type Options struct {
	EnvFile    string
	ConfigFile string
}

// Load reads .env, an optional config file and the environment, in that
// order of increasing precedence.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// short names kept from earlier deployments
	_ = v.BindEnv("server.port", "PORT", "SERVER_PORT")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET", "AUTH_JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and the settings that depend on each other.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port == "" {
		problems = append(problems, "server.port is required")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.InitialDelay <= 0 {
		problems = append(problems, "retry.initial_delay must be positive")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		problems = append(problems, fmt.Sprintf("retry.jitter must be in [0, 1), got %g", c.Retry.Jitter))
	}
	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		problems = append(problems, "spotify.client_id and spotify.client_secret must be set together")
	}
	if c.Mongo.URI != "" && c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwt_secret is required when accounts are enabled")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		problems = append(problems, fmt.Sprintf("auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.body_limit", "20M")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.temp_dir", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")

	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("spotify.api_base_url", "https://api.spotify.com/v1")
	v.SetDefault("spotify.market", "")
	v.SetDefault("spotify.safety_margin", "60s")

	v.SetDefault("eleven_labs.api_key", "")
	v.SetDefault("eleven_labs.api_base_url", "")
	v.SetDefault("eleven_labs.voice_id", "")
	v.SetDefault("eleven_labs.model_id", "")
	v.SetDefault("eleven_labs.output_format", "")
	v.SetDefault("eleven_labs.chunk_size", 0)
	v.SetDefault("eleven_labs.stability", 0.0)
	v.SetDefault("eleven_labs.clarity", 0.0)

	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "aiverse")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.track_ttl", "24h")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.cookie_name", "auth-token")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.jitter", 0.0)
}
