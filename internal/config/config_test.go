package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "helporbit",
				Password: "secret",
				Name:     "helporbit",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=helporbit password=secret dbname=helporbit sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "db.internal",
				Port:    5433,
				User:    "support",
				Name:    "tickets",
				SSLMode: "disable",
			},
			want: "host=db.internal port=5433 user=support password= dbname=tickets sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ServerConfig.GetAddress / AppConfig.MaxAttachmentBytes
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
		{"localhost", ServerConfig{Host: "localhost", Port: 3001}, "localhost:3001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaxAttachmentBytes(t *testing.T) {
	cfg := AppConfig{MaxAttachmentSizeMB: 25}
	if got := cfg.MaxAttachmentBytes(); got != 25*1024*1024 {
		t.Errorf("MaxAttachmentBytes() = %d, want %d", got, 25*1024*1024)
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func validConfig() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, GinMode: "release"},
		App: AppConfig{
			URL:                 "http://localhost:3000",
			InvitationTTL:       48 * time.Hour,
			PasswordResetTTL:    time.Hour,
			VerificationTTL:     24 * time.Hour,
			MaxAttachmentSizeMB: 25,
		},
		Database: DatabaseConfig{Host: "localhost", Name: "helporbit", User: "helporbit"},
		Storage:  StorageConfig{DefaultBackend: "local", Local: LocalStorageConfig{BasePath: "./storage"}},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad gin mode", func(c *Config) { c.Server.GinMode = "loud" }, "gin_mode"},
		{"missing app url", func(c *Config) { c.App.URL = "" }, "app.url"},
		{"zero invitation ttl", func(c *Config) { c.App.InvitationTTL = 0 }, "invitation_ttl"},
		{"zero reset ttl", func(c *Config) { c.App.PasswordResetTTL = 0 }, "password_reset_ttl"},
		{"zero attachment size", func(c *Config) { c.App.MaxAttachmentSizeMB = 0 }, "max_attachment_size_mb"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing db name", func(c *Config) { c.Database.Name = "" }, "database.name"},
		{"missing db user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"negative audit retention", func(c *Config) { c.Audit.RetentionDays = -1 }, "audit.retention_days"},
		{"maintenance without interval", func(c *Config) { c.Maintenance.Enabled = true }, "maintenance.interval"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }, "redis.addr"},
		{"unknown backend", func(c *Config) { c.Storage.DefaultBackend = "ftp" }, "invalid storage backend"},
		{"s3 missing bucket", func(c *Config) {
			c.Storage.DefaultBackend = "s3"
			c.Storage.S3.Region = "eu-west-1"
		}, "storage.s3.bucket"},
		{"s3 missing region", func(c *Config) {
			c.Storage.DefaultBackend = "s3"
			c.Storage.S3.Bucket = "attachments"
		}, "storage.s3.region"},
		{"azure incomplete", func(c *Config) {
			c.Storage.DefaultBackend = "azure"
			c.Storage.Azure.AccountName = "acct"
		}, "storage.azure"},
		{"gcs missing bucket", func(c *Config) { c.Storage.DefaultBackend = "gcs" }, "storage.gcs.bucket"},
		{"local missing path", func(c *Config) { c.Storage.Local.BasePath = "" }, "storage.local.base_path"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid logging format"},
		{"pretty format accepted", func(c *Config) { c.Logging.Format = "pretty" }, ""},
		{"smtp without host", func(c *Config) {
			c.Notifications.Enabled = true
			c.Notifications.SMTP.From = "a@b.c"
		}, "notifications.smtp.host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_DefaultsApplied(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.App.InvitationTTL != 48*time.Hour {
		t.Errorf("App.InvitationTTL = %v, want 48h", cfg.App.InvitationTTL)
	}
	if cfg.Storage.DefaultBackend != "local" {
		t.Errorf("Storage.DefaultBackend = %q, want local", cfg.Storage.DefaultBackend)
	}
	if cfg.Redis.Channel != "helporbit:revalidate" {
		t.Errorf("Redis.Channel = %q", cfg.Redis.Channel)
	}
	if cfg.Audit.RetentionDays != 365 || cfg.Maintenance.Interval != time.Hour {
		t.Errorf("retention = %d days every %v, want 365 days every 1h", cfg.Audit.RetentionDays, cfg.Maintenance.Interval)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want empty without a file", cfg.ConfigFile)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
app:
  url: "https://support.acme.test"
  invitation_ttl: "72h"
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
logging:
  level: "debug"
  format: "pretty"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.App.URL != "https://support.acme.test" {
		t.Errorf("App.URL = %q", cfg.App.URL)
	}
	if cfg.App.InvitationTTL != 72*time.Hour {
		t.Errorf("App.InvitationTTL = %v, want 72h", cfg.App.InvitationTTL)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("Database.Name = %q, want testdb", cfg.Database.Name)
	}
	if cfg.Logging.Format != "pretty" {
		t.Errorf("Logging.Format = %q, want pretty", cfg.Logging.Format)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, "database:\n  name: fromfile\n")
	t.Setenv("HO_DATABASE_NAME", "fromenv")
	t.Setenv("HO_REDIS_ENABLED", "true")
	t.Setenv("HO_REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Name != "fromenv" {
		t.Errorf("Database.Name = %q, want fromenv", cfg.Database.Name)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
}

func TestLoad_ExpandsSecrets(t *testing.T) {
	t.Setenv("CONFIG_TEST_DB_PASSWORD", "s3cret")
	path := writeTempConfig(t, "database:\n  password: \"${CONFIG_TEST_DB_PASSWORD}\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("Database.Password = %q, want s3cret", cfg.Database.Password)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: chatty\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("Load() error = %v, want invalid configuration", err)
	}
}

func TestWatch_NoFileIsNoop(t *testing.T) {
	t.Chdir(t.TempDir())
	called := false
	if err := Watch("", func(*Config) { called = true }); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	if called {
		t.Error("onChange should not be called without a config file")
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal("WriteFile:", err)
	}
	return path
}
