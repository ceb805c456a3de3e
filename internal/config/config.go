// Package config loads the server configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional YAML
// file, a .env file, the process environment. Command line flags are applied
// on top by the commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/maruel/buyandsell/internal/logging"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength is the minimum accepted JWT secret length in bytes.
const MinJWTSecretLength = 32

// Config is the server configuration. Env tags carry no defaults so that an
// unset variable keeps the value from a lower layer. Non-string fields are
// strict: a value that does not parse is an error.
type Config struct {
	Port int    `yaml:"port" env:"PORT,strict"`
	Host string `yaml:"host" env:"HOST"`

	// Salt is mixed into every password hash.
	Salt string `yaml:"salt" env:"SALT"`

	JWTSecret string        `yaml:"jwtSecret" env:"JWT_SECRET"`
	JWTTTL    time.Duration `yaml:"jwtTTL" env:"JWT_TTL,strict"`

	// DataDir/DBName holds the JSONL tables.
	DataDir string `yaml:"dataDir" env:"DATA_DIR"`
	DBName  string `yaml:"dbName" env:"DB_NAME"`

	UploadDirectory string `yaml:"uploadDirectory" env:"UPLOAD_DIRECTORY"`
	LogLevel        string `yaml:"logLevel" env:"LOG_LEVEL"`

	// ExportSchedule is a cron spec; empty disables scheduled exports.
	ExportSchedule  string `yaml:"exportSchedule" env:"EXPORT_SCHEDULE"`
	ExportDirectory string `yaml:"exportDirectory" env:"EXPORT_DIRECTORY"`

	// AuthRatePerMin limits login and registration per client IP; 0 disables.
	AuthRatePerMin      int   `yaml:"authRatePerMin" env:"AUTH_RATE_PER_MIN,strict"`
	MaxRequestBodyBytes int64 `yaml:"maxRequestBodyBytes" env:"MAX_REQUEST_BODY_BYTES,strict"`

	// TrustedProxies is a comma separated list of CIDRs or addresses whose
	// X-Forwarded-For and X-Real-IP headers are believed. Empty trusts none.
	TrustedProxies string `yaml:"trustedProxies" env:"TRUSTED_PROXIES"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Port:                4055,
		Host:                "localhost",
		JWTTTL:              24 * time.Hour,
		DataDir:             "./data",
		DBName:              "buy-and-sell",
		LogLevel:            "info",
		ExportDirectory:     "./exports",
		AuthRatePerMin:      5,
		MaxRequestBodyBytes: 10 << 20,
	}
}

// LoadOptions selects the optional files read by Load.
type LoadOptions struct {
	// ConfigFile is a YAML file. Empty falls back to $CONFIG_FILE, then none.
	ConfigFile string
	// EnvFile is a dotenv file. Empty means ".env" if it exists.
	EnvFile string
}

// Load builds the configuration from defaults, files and environment. It
// does not validate the result.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()
	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := loadDotEnv(opts.EnvFile); err != nil {
		return nil, err
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: operator supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadDotEnv populates the environment from path without overriding variables
// already set.
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("PORT: %d is not a valid TCP port", c.Port)
	case len(c.JWTSecret) < MinJWTSecretLength:
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	case c.JWTTTL <= 0:
		return errors.New("JWT_TTL must be positive")
	case c.AuthRatePerMin < 0:
		return errors.New("AUTH_RATE_PER_MIN must not be negative")
	case c.MaxRequestBodyBytes <= 0:
		return errors.New("MAX_REQUEST_BODY_BYTES must be positive")
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	for _, p := range c.TrustedProxyList() {
		if _, err := netip.ParsePrefix(p); err != nil {
			if _, err2 := netip.ParseAddr(p); err2 != nil {
				return fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.ExportSchedule != "" {
		if _, err := cron.ParseStandard(c.ExportSchedule); err != nil {
			return fmt.Errorf("EXPORT_SCHEDULE: %w", err)
		}
	}
	return nil
}

// ValidateStorage checks only the fields needed to open the database, for
// tools that do not serve HTTP.
func (c *Config) ValidateStorage() error {
	switch {
	case c.Salt == "":
		return errors.New("SALT is required")
	case c.DataDir == "":
		return errors.New("DATA_DIR is required")
	case c.DBName == "":
		return errors.New("DB_NAME is required")
	case c.UploadDirectory == "":
		return errors.New("UPLOAD_DIRECTORY is required")
	}
	return nil
}

// TrustedProxyList splits TrustedProxies.
func (c *Config) TrustedProxyList() []string {
	var out []string
	for p := range strings.SplitSeq(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
