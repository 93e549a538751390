// Package config provides configuration management for the extraction engine.
// Values are read from a YAML config file and environment variables through
// Viper; every getter falls back to a hardcoded default so a missing or
// broken config source never fails an extraction request.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

// Interface defines the interface for configuration management.
type Interface interface {
	// GetServerConfig returns the HTTP server configuration.
	GetServerConfig() *ServerConfig
	// GetDatabaseConfig returns the Postgres configuration.
	GetDatabaseConfig() *DatabaseConfig
	// GetRedisConfig returns the Redis configuration.
	GetRedisConfig() *RedisConfig
	// GetLoggerConfig returns the logger configuration.
	GetLoggerConfig() *logger.Config
	// GetPlatformConfig returns per-platform tunables with defaults applied.
	GetPlatformConfig(platform string) *PlatformConfig
	// GetPoolConfig returns credential pool thresholds.
	GetPoolConfig() *PoolConfig
	// GetRotatorConfig returns header rotator tunables.
	GetRotatorConfig() *RotatorConfig
	// GetCookieKey returns the AES key for cookie ciphertext, or empty.
	GetCookieKey() string
	// GetYtDlpConfig returns the yt-dlp subprocess configuration.
	GetYtDlpConfig() *YtDlpConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PlatformConfig holds per-platform extraction tunables. The response-text
// marker lists drive the login-redirect and checkpoint heuristics; platform
// response text drifts over time so they are config, not constants.
type PlatformConfig struct {
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ResolveTimeout    time.Duration `mapstructure:"resolve_timeout"`
	MaxRedirects      int           `mapstructure:"max_redirects"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	LoginMarkers      []string      `mapstructure:"login_markers"`
	CheckpointMarkers []string      `mapstructure:"checkpoint_markers"`
	AgeMarkers        []string      `mapstructure:"age_markers"`
	PrivateMarkers    []string      `mapstructure:"private_markers"`
}

// PoolConfig holds credential pool health thresholds.
type PoolConfig struct {
	ErrorsToCooldown  int           `mapstructure:"errors_to_cooldown"`
	ErrorsToExpire    int           `mapstructure:"errors_to_expire"`
	RedirectsToExpire int           `mapstructure:"redirects_to_expire"`
	CooldownDuration  time.Duration `mapstructure:"cooldown_duration"`
}

// RotatorConfig holds header rotator tunables.
type RotatorConfig struct {
	ReuseWindow     time.Duration `mapstructure:"reuse_window"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// YtDlpConfig holds the yt-dlp subprocess configuration.
type YtDlpConfig struct {
	ScriptPath string        `mapstructure:"script_path"`
	Python     string        `mapstructure:"python"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Default values applied when the config source is silent.
const (
	DefaultServerAddress  = ":8080"
	DefaultServerTimeout  = 30 * time.Second
	DefaultIdleTimeout    = 60 * time.Second
	DefaultRequestTimeout = 20 * time.Second
	DefaultResolveTimeout = 10 * time.Second
	DefaultMaxRedirects   = 5
	DefaultCacheTTL       = 72 * time.Hour

	DefaultErrorsToCooldown  = 5
	DefaultErrorsToExpire    = 10
	DefaultRedirectsToExpire = 2
	DefaultCooldownDuration  = time.Minute

	DefaultReuseWindow     = 3 * time.Second
	DefaultRefreshInterval = 5 * time.Minute

	DefaultYtDlpScript  = "scripts/ytdlp-extract.py"
	DefaultYtDlpPython  = "python3"
	DefaultYtDlpTimeout = 60 * time.Second
)

// Per-platform cache TTL defaults. Story content is ephemeral; everything
// else keeps the multi-day default.
var defaultCacheTTLs = map[string]time.Duration{
	domain.PlatformInstagram: 72 * time.Hour,
	domain.PlatformFacebook:  72 * time.Hour,
	domain.PlatformTikTok:    7 * 24 * time.Hour,
	domain.PlatformTwitter:   7 * 24 * time.Hour,
	domain.PlatformWeibo:     24 * time.Hour,
	domain.PlatformYouTube:   12 * time.Hour,
}

// Default response-text markers, overridable per platform in config.
var (
	defaultLoginMarkers      = []string{"/login", "login.php", "loginform", "log in to continue"}
	defaultCheckpointMarkers = []string{"/checkpoint", "checkpoint_required", "confirm your identity"}
	defaultAgeMarkers        = []string{"age-restricted", "age_gated", "viewer discretion"}
	defaultPrivateMarkers    = []string{"this content isn't available", "private account", "isprivate\":true"}
)

// Ensure Config implements Interface.
var _ Interface = (*Config)(nil)

// Config reads configuration through Viper at call time.
type Config struct {
	v *viper.Viper
}

// New creates a Config bound to the global Viper instance. InitializeViper
// should have been called first; if not, every getter still returns defaults.
func New() *Config {
	return &Config{v: viper.GetViper()}
}

// NewWith creates a Config bound to a specific Viper instance (tests).
func NewWith(v *viper.Viper) *Config {
	return &Config{v: v}
}

// GetServerConfig returns the HTTP server configuration.
func (c *Config) GetServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Address:      DefaultServerAddress,
		ReadTimeout:  DefaultServerTimeout,
		WriteTimeout: DefaultServerTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	c.unmarshalKey("server", cfg)
	return cfg
}

// GetDatabaseConfig returns the Postgres configuration.
func (c *Config) GetDatabaseConfig() *DatabaseConfig {
	cfg := &DatabaseConfig{
		Host:    "localhost",
		Port:    "5432",
		User:    "socialgrab",
		DBName:  "socialgrab",
		SSLMode: "disable",
	}
	c.unmarshalKey("database", cfg)
	return cfg
}

// GetRedisConfig returns the Redis configuration.
func (c *Config) GetRedisConfig() *RedisConfig {
	cfg := &RedisConfig{Addr: "localhost:6379"}
	c.unmarshalKey("redis", cfg)
	return cfg
}

// GetLoggerConfig returns the logger configuration.
func (c *Config) GetLoggerConfig() *logger.Config {
	cfg := &logger.Config{Level: "info", Encoding: "console"}
	if c.v != nil {
		if lvl := c.v.GetString("logger.level"); lvl != "" {
			cfg.Level = lvl
		}
		if enc := c.v.GetString("logger.encoding"); enc != "" {
			cfg.Encoding = enc
		}
		cfg.Development = c.v.GetBool("logger.development")
	}
	return cfg
}

// GetPlatformConfig returns per-platform tunables with defaults applied.
func (c *Config) GetPlatformConfig(platform string) *PlatformConfig {
	cfg := &PlatformConfig{
		RequestTimeout:    DefaultRequestTimeout,
		ResolveTimeout:    DefaultResolveTimeout,
		MaxRedirects:      DefaultMaxRedirects,
		CacheTTL:          DefaultCacheTTL,
		LoginMarkers:      defaultLoginMarkers,
		CheckpointMarkers: defaultCheckpointMarkers,
		AgeMarkers:        defaultAgeMarkers,
		PrivateMarkers:    defaultPrivateMarkers,
	}
	if ttl, ok := defaultCacheTTLs[platform]; ok {
		cfg.CacheTTL = ttl
	}
	c.unmarshalKey("platforms."+platform, cfg)
	return cfg
}

// GetPoolConfig returns credential pool thresholds.
func (c *Config) GetPoolConfig() *PoolConfig {
	cfg := &PoolConfig{
		ErrorsToCooldown:  DefaultErrorsToCooldown,
		ErrorsToExpire:    DefaultErrorsToExpire,
		RedirectsToExpire: DefaultRedirectsToExpire,
		CooldownDuration:  DefaultCooldownDuration,
	}
	c.unmarshalKey("pool", cfg)
	return cfg
}

// GetRotatorConfig returns header rotator tunables.
func (c *Config) GetRotatorConfig() *RotatorConfig {
	cfg := &RotatorConfig{
		ReuseWindow:     DefaultReuseWindow,
		RefreshInterval: DefaultRefreshInterval,
	}
	c.unmarshalKey("rotator", cfg)
	return cfg
}

// GetCookieKey returns the AES key for cookie ciphertext, or empty.
func (c *Config) GetCookieKey() string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString("pool.cookie_key")
}

// GetYtDlpConfig returns the yt-dlp subprocess configuration.
func (c *Config) GetYtDlpConfig() *YtDlpConfig {
	cfg := &YtDlpConfig{
		ScriptPath: DefaultYtDlpScript,
		Python:     DefaultYtDlpPython,
		Timeout:    DefaultYtDlpTimeout,
	}
	c.unmarshalKey("ytdlp", cfg)
	return cfg
}

// unmarshalKey decodes a config subtree into out, leaving defaults intact on
// any failure. Viper's default decoder already handles duration strings.
func (c *Config) unmarshalKey(key string, out any) {
	if c.v == nil || !c.v.IsSet(key) {
		return
	}
	_ = c.v.UnmarshalKey(key, out)
}
