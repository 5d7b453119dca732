package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("PARLEY_TEST_KEY", "sk-secret")

	path := writeConfig(t, `{
		"server": {"port": 8080, "log_level": "debug"},
		"providers": [
			{"id": "openai", "type": "openai", "api_key": "${PARLEY_TEST_KEY}"}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].APIKey != "sk-secret" {
		t.Errorf("api key not substituted: %+v", cfg.Providers)
	}
}

func TestLoadUsesDefaultWhenEnvUnset(t *testing.T) {
	os.Unsetenv("PARLEY_UNSET_VAR")

	path := writeConfig(t, `{
		"database": {
			"redis": {"url": "${PARLEY_UNSET_VAR:redis://localhost:6379}"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Database.Redis.URL; got != "redis://localhost:6379" {
		t.Errorf("redis url = %q, want default", got)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("PARLEY_REDIS_URL", "redis://prod:6379")

	path := writeConfig(t, `{
		"database": {
			"redis": {"url": "${PARLEY_REDIS_URL:redis://localhost:6379}"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Database.Redis.URL; got != "redis://prod:6379" {
		t.Errorf("redis url = %q, want env value", got)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("OPENAI_ENDPOINT", "")
	t.Setenv("ANTHROPIC_ENDPOINT", "")

	cfg, err := Load("../../configs/parley.json")
	if err != nil {
		t.Fatalf("Load example config: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Providers))
	}
	for _, p := range cfg.Providers {
		// The chat clients append /chat/completions and /messages to the
		// endpoint, so the defaults must carry the /v1 path segment.
		if !strings.HasSuffix(p.Endpoint, "/v1") {
			t.Errorf("provider %s endpoint %q missing /v1 suffix", p.ID, p.Endpoint)
		}
	}
	if cfg.Database.Postgres.DSN == "" {
		t.Error("postgres dsn default missing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
