package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Store backends.
const (
	BackendRemote   = "remote"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
	BackendMemory   = "memory"
)

// Capture launch modes.
const (
	CaptureModeHTTP    = "http"
	CaptureModeProcess = "process"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	MariaDB  MariaDBConfig  `yaml:"mariadb"`
	Capture  CaptureConfig  `yaml:"capture"`
	Web      WebConfig      `yaml:"web"`
}

type StoreConfig struct {
	Backend string        `yaml:"backend"`
	URL     string        `yaml:"url"` // base URL of the remote directory service
	Timeout time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string `yaml:"dsn"` // e.g. registry:registry@tcp(mariadb:3306)/registry
}

type CaptureConfig struct {
	Mode           string        `yaml:"mode"`
	URL            string        `yaml:"url"`
	Method         string        `yaml:"method"`
	EnrollPath     string        `yaml:"enroll_path"`
	VerifyPath     string        `yaml:"verify_path"`
	EnrollCommand  []string      `yaml:"enroll_command"`
	VerifyCommand  []string      `yaml:"verify_command"`
	GuardDuration  time.Duration `yaml:"guard_duration"`
	TriggerTimeout time.Duration `yaml:"trigger_timeout"`
	RequireToken   bool          `yaml:"require_token"`
}

type WebConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"` // used to build the capture callback URLs

	AllowedOrigins []string `yaml:"allowed_origins"` // CORS origins besides localhost
}

// EnrollCallbackURL is where the capture process sends enrollment results.
func (w WebConfig) EnrollCallbackURL() string {
	return strings.TrimSuffix(w.PublicURL, "/") + "/signup"
}

// VerifyCallbackURL is where the capture process sends verification results.
func (w WebConfig) VerifyCallbackURL() string {
	return strings.TrimSuffix(w.PublicURL, "/") + "/login"
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration parses a positive Go duration ("15s", "1m"); invalid values keep the default.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envFields splits a command line on whitespace.
func envFields(key string, defaultVal []string) []string {
	if fields := strings.Fields(os.Getenv(key)); len(fields) > 0 {
		return fields
	}
	return defaultVal
}

// envList splits a comma-separated list, dropping empty items.
func envList(key string, defaultVal []string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// Defaults returns the configuration embedded in the binary.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load returns the embedded defaults overridden by environment variables.
func Load() *Config {
	d := Defaults()

	return &Config{
		Store: StoreConfig{
			Backend: strings.ToLower(envString("STORE_BACKEND", d.Store.Backend)),
			URL:     envString("STORE_URL", d.Store.URL),
			Timeout: envDuration("STORE_TIMEOUT", d.Store.Timeout),
		},
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", d.Database.URL),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		MariaDB: MariaDBConfig{
			DSN: envString("MARIADB_DSN", d.MariaDB.DSN),
		},
		Capture: CaptureConfig{
			Mode:           strings.ToLower(envString("CAPTURE_MODE", d.Capture.Mode)),
			URL:            envString("CAPTURE_URL", d.Capture.URL),
			Method:         strings.ToUpper(envString("CAPTURE_METHOD", d.Capture.Method)),
			EnrollPath:     envString("CAPTURE_ENROLL_PATH", d.Capture.EnrollPath),
			VerifyPath:     envString("CAPTURE_VERIFY_PATH", d.Capture.VerifyPath),
			EnrollCommand:  envFields("CAPTURE_ENROLL_COMMAND", d.Capture.EnrollCommand),
			VerifyCommand:  envFields("CAPTURE_VERIFY_COMMAND", d.Capture.VerifyCommand),
			GuardDuration:  envDuration("CAPTURE_GUARD_DURATION", d.Capture.GuardDuration),
			TriggerTimeout: envDuration("CAPTURE_TRIGGER_TIMEOUT", d.Capture.TriggerTimeout),
			RequireToken:   envBool("CAPTURE_REQUIRE_TOKEN", d.Capture.RequireToken),
		},
		Web: WebConfig{
			Host:      envString("WEB_HOST", d.Web.Host),
			Port:      envInt("WEB_PORT", d.Web.Port),
			PublicURL: envString("WEB_PUBLIC_URL", d.Web.PublicURL),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
	}
}

// Validate checks the values that select an implementation.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendRemote:
		if c.Store.URL == "" {
			return fmt.Errorf("STORE_URL is required for the %s backend", BackendRemote)
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendMariaDB:
		if c.MariaDB.DSN == "" {
			return fmt.Errorf("MARIADB_DSN is required for the %s backend", BackendMariaDB)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Capture.Mode {
	case CaptureModeHTTP:
		if c.Capture.URL == "" {
			return fmt.Errorf("CAPTURE_URL is required in %s mode", CaptureModeHTTP)
		}
	case CaptureModeProcess:
		if len(c.Capture.EnrollCommand) == 0 || len(c.Capture.VerifyCommand) == 0 {
			return fmt.Errorf("CAPTURE_ENROLL_COMMAND and CAPTURE_VERIFY_COMMAND are required in %s mode", CaptureModeProcess)
		}
	default:
		return fmt.Errorf("unknown capture mode %q", c.Capture.Mode)
	}
	return nil
}
