package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	c := Default()
	c.Salt = "salt"
	c.JWTSecret = strings.Repeat("s", MinJWTSecretLength)
	c.UploadDirectory = "/tmp/uploads"
	return c
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Port != 4055 || c.DBName != "buy-and-sell" || c.JWTTTL != 24*time.Hour {
		t.Errorf("unexpected defaults %+v", c)
	}
	if got := c.Addr(); got != "localhost:4055" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"salt", func(c *Config) { c.Salt = "" }, "SALT"},
		{"jwt secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"jwt ttl", func(c *Config) { c.JWTTTL = 0 }, "JWT_TTL"},
		{"upload dir", func(c *Config) { c.UploadDirectory = "" }, "UPLOAD_DIRECTORY"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"schedule", func(c *Config) { c.ExportSchedule = "every tuesday" }, "EXPORT_SCHEDULE"},
		{"rate", func(c *Config) { c.AuthRatePerMin = -1 }, "AUTH_RATE_PER_MIN"},
		{"body", func(c *Config) { c.MaxRequestBodyBytes = 0 }, "MAX_REQUEST_BODY_BYTES"},
		{"proxies", func(c *Config) { c.TrustedProxies = "10.0.0.0/8, proxy.local" }, "TRUSTED_PROXIES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestTrustedProxyList(t *testing.T) {
	c := validConfig()
	c.TrustedProxies = " 10.0.0.0/8,, 192.0.2.1 ,"
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	got := c.TrustedProxyList()
	if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.0.2.1" {
		t.Errorf("TrustedProxyList() = %q", got)
	}
}

func TestValidateStorage(t *testing.T) {
	c := validConfig()
	c.JWTSecret = ""
	c.Port = 0
	if err := c.ValidateStorage(); err != nil {
		t.Errorf("ValidateStorage() = %v, server fields must not matter", err)
	}
	c.DBName = ""
	if err := c.ValidateStorage(); err == nil || !strings.Contains(err.Error(), "DB_NAME") {
		t.Errorf("ValidateStorage() = %v, want DB_NAME", err)
	}
}

func TestLoadLayers(t *testing.T) {
	yamlPath := writeFile(t, "config.yaml", "port: 5000\nsalt: from-yaml\njwtTTL: 2h\ndbName: yaml-db\n")
	for _, k := range []string{"CONFIG_FILE", "SALT", "DB_NAME", "JWT_TTL", "HOST"} {
		t.Setenv(k, "")
	}
	t.Setenv("PORT", "6000")
	t.Setenv("UPLOAD_DIRECTORY", "/srv/uploads")

	c, err := Load(LoadOptions{ConfigFile: yamlPath, EnvFile: writeFile(t, "empty.env", "")})
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != 6000 {
		t.Errorf("env must override yaml: Port = %d", c.Port)
	}
	if c.Salt != "from-yaml" || c.DBName != "yaml-db" || c.JWTTTL != 2*time.Hour {
		t.Errorf("yaml not applied: %+v", c)
	}
	if c.UploadDirectory != "/srv/uploads" {
		t.Errorf("UploadDirectory = %q", c.UploadDirectory)
	}
	if c.Host != "localhost" {
		t.Errorf("default lost: Host = %q", c.Host)
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "EXPORT_DIRECTORY"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s set in the environment", key)
	}
	t.Setenv("SALT", "from-env")
	envPath := writeFile(t, "test.env", key+"=/from/dotenv\nSALT=from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	c, err := Load(LoadOptions{EnvFile: envPath})
	if err != nil {
		t.Fatal(err)
	}
	if c.ExportDirectory != "/from/dotenv" {
		t.Errorf("ExportDirectory = %q", c.ExportDirectory)
	}
	if c.Salt != "from-env" {
		t.Errorf("dotenv must not override the environment: Salt = %q", c.Salt)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	if _, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing config file")
	}
	bad := writeFile(t, "bad.yaml", "unknownField: 1\n")
	if _, err := Load(LoadOptions{ConfigFile: bad}); err == nil {
		t.Error("expected error for unknown yaml field")
	}
	if _, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "missing.env")}); err == nil {
		t.Error("expected error for missing env file")
	}
	t.Setenv("PORT", "not-a-number")
	if _, err := Load(LoadOptions{EnvFile: writeFile(t, "e.env", "")}); err == nil {
		t.Error("expected error for malformed PORT")
	}
}

func TestLoadMalformedEnv(t *testing.T) {
	for _, tt := range []struct{ name, value string }{
		{"PORT", "not-a-number"},
		{"JWT_TTL", "forever"},
		{"AUTH_RATE_PER_MIN", "lots"},
		{"MAX_REQUEST_BODY_BYTES", "1e6x"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(tt.name, tt.value)
			c, err := Load(LoadOptions{EnvFile: writeFile(t, "e.env", "")})
			if err == nil {
				t.Errorf("%s=%q: got %+v, want error", tt.name, tt.value, c)
			}
		})
	}
}
