package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/inkpress-dev/inkpress/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "inkpress.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = "localhost:8080"

	// DefaultDataDir is the default directory for local state (database,
	// media files, blob scratch space).
	DefaultDataDir = "data"

	// DefaultSessionTTL is the default admin session lifetime.
	DefaultSessionTTL = 24 * time.Hour
)

// Config represents the complete inkpress.json configuration.
type Config struct {
	// Name is the site name, shown in page titles.
	Name string `json:"name,omitempty"`

	// Addr is the listen address (host:port).
	Addr string `json:"addr,omitempty"`

	// BaseURL is the externally visible base URL of the site.
	BaseURL string `json:"baseUrl,omitempty"`

	// DataDir is the directory for local state.
	DataDir string `json:"dataDir,omitempty"`

	// Database contains database configuration.
	Database DatabaseConfig `json:"database,omitempty"`

	// Media contains media storage configuration.
	Media MediaConfig `json:"media,omitempty"`

	// Session contains admin session configuration.
	Session SessionConfig `json:"session,omitempty"`

	// Analytics contains page-view analytics configuration.
	Analytics AnalyticsConfig `json:"analytics,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is honored
	// when resolving client IPs.
	TrustedProxies []string `json:"trustedProxies,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DatabaseConfig contains SQLite database configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file path. Relative paths are resolved
	// against DataDir.
	Path string `json:"path,omitempty"`
}

// MediaConfig contains media storage configuration.
type MediaConfig struct {
	// Backend selects the storage backend: "disk" or "s3".
	Backend string `json:"backend,omitempty"`

	// Dir is the local media directory (disk backend). Relative paths are
	// resolved against DataDir.
	Dir string `json:"dir,omitempty"`

	// Bucket is the S3 bucket name (s3 backend).
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 key prefix (s3 backend).
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region (s3 backend).
	Region string `json:"region,omitempty"`

	// MaxUploadBytes is the maximum accepted upload size. Default 10MB.
	MaxUploadBytes int64 `json:"maxUploadBytes,omitempty"`
}

// SessionConfig contains admin session configuration.
type SessionConfig struct {
	// TTL is the session lifetime (e.g. "24h").
	TTL string `json:"ttl,omitempty"`

	// CookieName is the session cookie name.
	CookieName string `json:"cookieName,omitempty"`
}

// AnalyticsConfig contains page-view analytics configuration.
type AnalyticsConfig struct {
	// RetentionDays is how long raw page views are kept. 0 keeps forever.
	RetentionDays int `json:"retentionDays,omitempty"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "json" or "text".
	Format string `json:"format,omitempty"`
}

// New returns a Config with built-in defaults applied.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Find locates inkpress.json by searching dir and its parents.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.New("E500").Wrap(err)
	}
	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E500").
				WithSuggestion("Run 'inkpress init' to create a project or create inkpress.json manually")
		}
		dir = parent
	}
}

// Load reads the configuration from path, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E500").
				WithDetail("No " + ConfigFileName + " found at " + path)
		}
		return nil, errors.New("E501").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E501").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E501").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E501").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string { return c.configPath }

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// DatabasePath returns the resolved SQLite database path.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Database.Path)
}

// MediaDir returns the resolved local media directory.
func (c *Config) MediaDir() string {
	return c.resolve(c.Media.Dir)
}

// ScratchDir returns the directory for blob registry scratch files.
func (c *Config) ScratchDir() string {
	return filepath.Join(c.resolve(""), "scratch")
}

// SessionTTL returns the parsed session lifetime.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil || d <= 0 {
		return DefaultSessionTTL
	}
	return d
}

// resolve resolves rel against the data dir (itself resolved against the
// config file's directory when relative).
func (c *Config) resolve(rel string) string {
	dataDir := c.DataDir
	if !filepath.IsAbs(dataDir) && c.Dir() != "" {
		dataDir = filepath.Join(c.Dir(), dataDir)
	}
	if rel == "" {
		return dataDir
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(dataDir, rel)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "Inkpress"
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Database.Path == "" {
		c.Database.Path = "inkpress.db"
	}
	if c.Media.Backend == "" {
		c.Media.Backend = "disk"
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "media"
	}
	if c.Media.MaxUploadBytes == 0 {
		c.Media.MaxUploadBytes = 10 * 1024 * 1024
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "24h"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "inkpress_session"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// applyEnv applies INKPRESS_* environment overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("INKPRESS_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("INKPRESS_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("INKPRESS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("INKPRESS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("INKPRESS_MEDIA_BACKEND"); v != "" {
		c.Media.Backend = v
	}
	if v := os.Getenv("INKPRESS_MEDIA_BUCKET"); v != "" {
		c.Media.Bucket = v
	}
	if v := os.Getenv("INKPRESS_MEDIA_REGION"); v != "" {
		c.Media.Region = v
	}
	if v := os.Getenv("INKPRESS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("INKPRESS_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Media.MaxUploadBytes = n
		}
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Media.Backend {
	case "disk":
		// Dir is defaulted, nothing to check.
	case "s3":
		if c.Media.Bucket == "" {
			return errors.New("E502").
				WithDetail("media.backend is \"s3\" but media.bucket is empty")
		}
	default:
		return errors.New("E502").
			WithDetail("media.backend must be \"disk\" or \"s3\", got " + strconv.Quote(c.Media.Backend))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("E502").
			WithDetail("log.level must be one of debug, info, warn, error")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.New("E502").
			WithDetail("log.format must be \"json\" or \"text\"")
	}

	if c.Session.TTL != "" {
		if _, err := time.ParseDuration(c.Session.TTL); err != nil {
			return errors.New("E502").
				WithDetail("session.ttl is not a valid duration: " + c.Session.TTL)
		}
	}
	return nil
}
