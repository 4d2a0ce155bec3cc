// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxLevel is the highest level the site lists.
const MaxLevel = 50

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Export  ExportConfig  `mapstructure:"export"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig locates the play-data pages and carries the caller's session.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	GamePath      string `mapstructure:"game_path"`
	SessionCookie string `mapstructure:"session_cookie"`
	UserAgent     string `mapstructure:"user_agent"`
}

// CrawlConfig governs pacing and scope of a run.
type CrawlConfig struct {
	PageDelayMs   int  `mapstructure:"page_delay_ms"`
	DetailDelayMs int  `mapstructure:"detail_delay_ms"`
	MaxLevel      int  `mapstructure:"max_level"`
	Deep          bool `mapstructure:"deep"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ExportConfig selects where snapshots are written. DryRun keeps artifacts
// and run notices in memory; otherwise a non-empty GCSBucket takes precedence
// over Dir.
type ExportConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	DryRun    bool   `mapstructure:"dry_run"`
}

// NotifyConfig announces finished runs on a Pub/Sub topic. An empty Topic
// disables notifications.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Port        int `mapstructure:"port"`
	RunsPerHour int `mapstructure:"runs_per_hour"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POPN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://p.eagate.573.jp")
	v.SetDefault("site.game_path", "/game/popn/jamfizz")
	v.SetDefault("site.session_cookie", "")
	v.SetDefault("site.user_agent", "Mozilla/5.0 (compatible; popn-score-crawler/0.1)")
	v.SetDefault("crawl.page_delay_ms", 400)
	v.SetDefault("crawl.detail_delay_ms", 300)
	v.SetDefault("crawl.max_level", MaxLevel)
	v.SetDefault("crawl.deep", false)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.prefix", "")
	v.SetDefault("export.dry_run", false)
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.runs_per_hour", 6)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL")
	}
	if !strings.HasPrefix(c.Site.GamePath, "/") {
		return fmt.Errorf("site.game_path must start with /")
	}
	if c.Crawl.PageDelayMs < 0 || c.Crawl.DetailDelayMs < 0 {
		return fmt.Errorf("crawl.page_delay_ms and crawl.detail_delay_ms must be >= 0")
	}
	if c.Crawl.MaxLevel < 1 || c.Crawl.MaxLevel > MaxLevel {
		return fmt.Errorf("crawl.max_level must be between 1 and %d", MaxLevel)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RunsPerHour < 0 {
		return fmt.Errorf("server.runs_per_hour must be >= 0")
	}
	if c.Notify.Topic != "" && c.Notify.ProjectID == "" {
		return fmt.Errorf("notify.project_id must be set when notify.topic is set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// PageDelay is the pause before every list or status request after the first.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Crawl.PageDelayMs) * time.Millisecond
}

// DetailDelay is the pause before every detail page request.
func (c Config) DetailDelay() time.Duration {
	return time.Duration(c.Crawl.DetailDelayMs) * time.Millisecond
}

// RequestTimeout bounds a single HTTP request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
