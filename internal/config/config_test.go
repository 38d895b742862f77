package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "server:\n  host: 127.0.0.1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Server.HTTPPort = %d, want default 8080", cfg.Server.HTTPPort)
	}
	if cfg.Tools.Execution.MaxIterations != 12 {
		t.Errorf("Tools.Execution.MaxIterations = %d, want default 12", cfg.Tools.Execution.MaxIterations)
	}
	if cfg.Memory.CompactionCadence != 6*time.Hour {
		t.Errorf("Memory.CompactionCadence = %v, want default 6h", cfg.Memory.CompactionCadence)
	}
	if cfg.Settings.BotName != "stark" {
		t.Errorf("Settings.BotName = %q, want default stark", cfg.Settings.BotName)
	}
	if cfg.Settings.RequireConfirmation == nil || !*cfg.Settings.RequireConfirmation {
		t.Errorf("Settings.RequireConfirmation = %v, want default true", cfg.Settings.RequireConfirmation)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("STARK_TEST_DB_URL", "postgres://example/db")
	path := writeTempConfig(t, "database:\n  url: \"${STARK_TEST_DB_URL}\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgres://example/db" {
		t.Errorf("Database.URL = %q, want expanded value", cfg.Database.URL)
	}
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("STARK_HTTP_PORT", "9999")
	t.Setenv("STARK_SECRET_KEY", "from-env-not-from-file-at-least-32-chars")
	path := writeTempConfig(t, "server:\n  http_port: 1234\nauth:\n  secret_key: from-file\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Errorf("Server.HTTPPort = %d, want env override 9999", cfg.Server.HTTPPort)
	}
	if cfg.Auth.SecretKey != "from-env-not-from-file-at-least-32-chars" {
		t.Errorf("Auth.SecretKey = %q, want env override", cfg.Auth.SecretKey)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "server:\n  bogus_field: true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() with an unknown field should error")
	}
}

func TestLoadRejectsShortSecretKey(t *testing.T) {
	path := writeTempConfig(t, "auth:\n  secret_key: too-short\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() with a < 32 char secret_key should error")
	}
}

func TestLoadRequiresDiscordTokenWhenEnabled(t *testing.T) {
	path := writeTempConfig(t, "channels:\n  discord:\n    enabled: true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() with discord enabled and no bot_token should error")
	}
}

func TestLoadRequiresSlackTokensWhenEnabled(t *testing.T) {
	path := writeTempConfig(t, "channels:\n  slack:\n    enabled: true\n    bot_token: xoxb-fake\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() with slack enabled and no app_token should error")
	}
}
