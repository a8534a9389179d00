package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfigYAML = `
debug: true
siteName: IAM Portal
listenAddr: ":8080"
allowOrigins:
  - https://portal.example.com
seedDemoData: true
demoPassword: demo-password-123
mysql:
  dsn: user:pass@tcp(localhost:3306)/iamportal?parseTime=true
  maxOpenConns: 10
redis:
  url: redis://localhost:6379
session:
  sessionMaxAge: 12h
  cookieSecure: true
mail:
  backend: smtp
  from: noreply@example.com
  smtp:
    host: mail.example.com
    port: 587
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.Debug || cfg.SiteName != "IAM Portal" || cfg.ListenAddr != ":8080" {
		t.Errorf("top level fields wrong: %+v", cfg)
	}
	if len(cfg.AllowOrigins) != 1 || cfg.AllowOrigins[0] != "https://portal.example.com" {
		t.Errorf("allowOrigins = %v", cfg.AllowOrigins)
	}
	if cfg.MySQL.MaxOpenConns != 10 {
		t.Errorf("mysql.maxOpenConns = %d", cfg.MySQL.MaxOpenConns)
	}
	if cfg.Session.SessionMaxAge != 12*time.Hour {
		t.Errorf("session.sessionMaxAge = %v", cfg.Session.SessionMaxAge)
	}
	if !cfg.Session.CookieSecure {
		t.Errorf("session.cookieSecure not set")
	}
	if cfg.Mail.Backend != "smtp" || cfg.Mail.SMTP.Port != 587 {
		t.Errorf("mail config wrong: %+v", cfg.Mail)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t, "debug: false\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("listenAddr default = %q", cfg.ListenAddr)
	}
	if cfg.Session.CookieName != DefaultCookieName {
		t.Errorf("cookieName default = %q", cfg.Session.CookieName)
	}
	if cfg.Session.SessionMaxAge != DefaultCookieMaxAge {
		t.Errorf("sessionMaxAge default = %v", cfg.Session.SessionMaxAge)
	}
	if cfg.SiteName != DefaultSiteName {
		t.Errorf("siteName default = %q", cfg.SiteName)
	}
	if cfg.EmailDomain != DefaultEmailDomain {
		t.Errorf("emailDomain default = %q", cfg.EmailDomain)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
