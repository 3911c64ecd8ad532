package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Tracing exporter names.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
	TracingOTLP   = "otlp"
)

// Config holds every process-level setting. Google OAuth client credentials are
// deliberately absent: they live in the system_preferences table and are managed
// by an administrator at runtime.
type Config struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	BaseURL string `yaml:"base_url"`

	DB struct {
		Driver string `yaml:"driver"` // "sqlite" or "postgres"
		DSN    string `yaml:"dsn"`
	} `yaml:"db"`

	Session struct {
		Secret string        `yaml:"secret"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"session"`

	Drive struct {
		RootFolderName string `yaml:"root_folder_name"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"drive"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	Tracing struct {
		Exporter     string `yaml:"exporter"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"tracing"`
}

// Defaults returns a Config populated with built-in defaults only.
func Defaults() *Config {
	cfg := &Config{
		Host:           "127.0.0.1",
		Port:           "8080",
		BaseURL:        "http://localhost:8080",
		MetricsEnabled: true,
	}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = "unidrive.db"
	cfg.Session.TTL = 7 * 24 * time.Hour
	cfg.Drive.RootFolderName = "Unified Drive"
	cfg.Drive.MaxUploadBytes = 32 << 20
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Tracing.Exporter = TracingNone
	return cfg
}

// Load builds the configuration: defaults, then the optional YAML file named by
// UNIDRIVE_CONFIG, then environment variables (a .env file is loaded first when
// present). The result is validated.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("UNIDRIVE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("UNIDRIVE_HOST", c.Host)
	c.Port = getEnv("UNIDRIVE_PORT", c.Port)
	c.BaseURL = strings.TrimRight(getEnv("UNIDRIVE_BASE_URL", c.BaseURL), "/")
	c.DB.Driver = getEnv("UNIDRIVE_DB_DRIVER", c.DB.Driver)
	c.DB.DSN = getEnv("UNIDRIVE_DB_DSN", c.DB.DSN)
	c.Session.Secret = getEnv("UNIDRIVE_SESSION_SECRET", c.Session.Secret)
	c.Session.TTL = getEnvDuration("UNIDRIVE_SESSION_TTL", c.Session.TTL)
	c.Drive.RootFolderName = getEnv("UNIDRIVE_ROOT_FOLDER_NAME", c.Drive.RootFolderName)
	c.Drive.MaxUploadBytes = getEnvInt64("UNIDRIVE_MAX_UPLOAD_BYTES", c.Drive.MaxUploadBytes)
	c.Log.Level = getEnv("UNIDRIVE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("UNIDRIVE_LOG_FORMAT", c.Log.Format)
	c.MetricsEnabled = getEnvBool("UNIDRIVE_METRICS_ENABLED", c.MetricsEnabled)
	c.Tracing.Exporter = getEnv("UNIDRIVE_TRACING_EXPORTER", c.Tracing.Exporter)
	c.Tracing.OTLPEndpoint = getEnv("UNIDRIVE_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("UNIDRIVE_PORT must not be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("UNIDRIVE_BASE_URL must be an absolute http(s) URL (got %q)", c.BaseURL)
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("UNIDRIVE_DB_DSN is required")
	}
	if c.Session.Secret == "" {
		return errors.New("UNIDRIVE_SESSION_SECRET is required")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("UNIDRIVE_SESSION_SECRET must be at least 32 characters long (got %d)", len(c.Session.Secret))
	}
	if c.Session.TTL <= 0 {
		return errors.New("UNIDRIVE_SESSION_TTL must be positive")
	}
	if strings.TrimSpace(c.Drive.RootFolderName) == "" {
		return errors.New("UNIDRIVE_ROOT_FOLDER_NAME must not be empty")
	}
	if c.Drive.MaxUploadBytes <= 0 {
		return errors.New("UNIDRIVE_MAX_UPLOAD_BYTES must be positive")
	}
	switch c.Tracing.Exporter {
	case TracingNone, TracingStdout:
	case TracingOTLP:
		if c.Tracing.OTLPEndpoint == "" {
			return errors.New("UNIDRIVE_OTLP_ENDPOINT is required for the otlp tracing exporter")
		}
	default:
		return fmt.Errorf("unsupported tracing exporter: %s", c.Tracing.Exporter)
	}
	return nil
}

// ListenAddr is the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}

// OAuthRedirectURL is the fixed callback address registered with Google.
func (c *Config) OAuthRedirectURL() string {
	return c.BaseURL + "/api/google-oauth/callback"
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
