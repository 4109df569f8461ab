package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadServerConfigAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
storagePath: /var/leo/data
credentials:
  username: alice
  password: secret
`)

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 9443 || cfg.ProtocolVersion != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Capabilities) != len(defaultCapabilities) {
		t.Fatalf("expected default capabilities, got %v", cfg.Capabilities)
	}
}

func TestLoadServerConfigRejectsMissingCredentials(t *testing.T) {
	path := writeTempConfig(t, `
storagePath: /var/leo/data
`)

	if _, err := LoadServerConfig(path); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestLoadServerConfigEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `
host: 127.0.0.1
port: 1111
storagePath: /var/leo/data
credentials:
  username: alice
  password: secret
`)

	t.Setenv("LEO_HOST", "10.0.0.5")
	t.Setenv("LEO_PORT", "2222")
	t.Setenv("LEO_USER", "bob")
	t.Setenv("LEO_PASS", "hunter2")
	t.Setenv("LEO_STORAGE", "/tmp/other")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Host != "10.0.0.5" || cfg.Port != 2222 || cfg.StoragePath != "/tmp/other" {
		t.Fatalf("env overlay did not apply: %+v", cfg)
	}
	if cfg.Credentials.Username != "bob" || cfg.Credentials.Password != "hunter2" {
		t.Fatalf("env overlay did not apply to credentials: %+v", cfg.Credentials)
	}
}

func TestLoadServerConfigWithoutFileUsesEnvOnly(t *testing.T) {
	t.Setenv("LEO_STORAGE", "/tmp/store")
	t.Setenv("LEO_USER", "alice")
	t.Setenv("LEO_PASS", "secret")

	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.StoragePath != "/tmp/store" || cfg.Credentials.Username != "alice" {
		t.Fatalf("unexpected config from env only: %+v", cfg)
	}
}

func TestLoadClientConfigDefaultsTimeout(t *testing.T) {
	t.Setenv("LEO_HOST", "")
	path := writeTempConfig(t, `
host: 127.0.0.1
username: alice
password: secret
`)

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.Port != 9443 || cfg.TimeoutMs != 15000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadClientConfigEnvOverridesTimeout(t *testing.T) {
	path := writeTempConfig(t, `
host: 127.0.0.1
username: alice
password: secret
`)
	t.Setenv("LEO_TIMEOUT_MS", "5000")

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.TimeoutMs != 5000 {
		t.Fatalf("TimeoutMs = %d, want 5000", cfg.TimeoutMs)
	}
}

func TestLoadClientConfigRejectsMissingHost(t *testing.T) {
	path := writeTempConfig(t, `
username: alice
password: secret
`)

	if _, err := LoadClientConfig(path); err == nil {
		t.Fatal("expected error for missing host")
	}
}
