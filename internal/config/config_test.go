package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "room.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSubstituteEnvPlain(t *testing.T) {
	t.Setenv("ROOM_TEST_VAR", "value")
	if got := substituteEnv("${ROOM_TEST_VAR}"); got != "value" {
		t.Errorf("got %q", got)
	}
	if got := substituteEnv("${ROOM_TEST_UNSET:fallback}"); got != "fallback" {
		t.Errorf("got %q", got)
	}
	if got := substituteEnv("${ROOM_TEST_UNSET}"); got != "" {
		t.Errorf("unset without default = %q, want empty", got)
	}
}

func TestSubstituteEnvNestedFallback(t *testing.T) {
	t.Setenv("ROOM_TEST_PRIMARY", "")
	t.Setenv("ROOM_TEST_SECONDARY", "second-key")
	if got := substituteEnv("${ROOM_TEST_PRIMARY:${ROOM_TEST_SECONDARY}}"); got != "second-key" {
		t.Errorf("nested fallback = %q, want secondary value", got)
	}
}

func TestSubstituteEnvNestedPrecedence(t *testing.T) {
	t.Setenv("ROOM_TEST_PRIMARY", "first-key")
	t.Setenv("ROOM_TEST_SECONDARY", "second-key")
	if got := substituteEnv("${ROOM_TEST_PRIMARY:${ROOM_TEST_SECONDARY}}"); got != "first-key" {
		t.Errorf("nested fallback = %q, want primary value", got)
	}
}

func TestSubstituteEnvBothUnset(t *testing.T) {
	if got := substituteEnv("${ROOM_TEST_UNSET_A:${ROOM_TEST_UNSET_B}}"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestLoadResolvesProviderKeyChain(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 8080},
		"providers": [{
			"id": "gemini-main",
			"type": "gemini",
			"api_key": "${AI_INTEGRATIONS_GEMINI_API_KEY:${GOOGLE_API_KEY}}"
		}],
		"database": {"postgres": {"dsn": "${ROOM_TEST_DSN:postgres://localhost/room}"}}
	}`)

	t.Setenv("AI_INTEGRATIONS_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "direct-key")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers[0].APIKey != "direct-key" {
		t.Errorf("api key = %q, want direct key fallback", cfg.Providers[0].APIKey)
	}
	if cfg.Database.Postgres.DSN != "postgres://localhost/room" {
		t.Errorf("dsn = %q", cfg.Database.Postgres.DSN)
	}

	t.Setenv("AI_INTEGRATIONS_GEMINI_API_KEY", "integration-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers[0].APIKey != "integration-key" {
		t.Errorf("api key = %q, integration key must win", cfg.Providers[0].APIKey)
	}
}
