package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, v := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY",
		"DEEPSEEK_API_KEY", "ROUTEKEEPER_BOT_TOKEN", "ROUTEKEEPER_CHAT_ID",
		"ROUTEKEEPER_BOT_API", "ROUTEKEEPER_DOC"} {
		t.Setenv(v, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantDir := filepath.Join(home, ".routekeeper")
	if cfg.ConfigDir != wantDir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, wantDir)
	}
	if cfg.DocumentPath != filepath.Join(wantDir, "routing.md") {
		t.Errorf("DocumentPath = %q", cfg.DocumentPath)
	}
	if cfg.BotAPIBase != "https://api.telegram.org" {
		t.Errorf("BotAPIBase = %q", cfg.BotAPIBase)
	}
	if cfg.Tables == nil || len(cfg.Tables.Phrases) == 0 {
		t.Error("default tables not loaded")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".routekeeper")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	fileYAML := `
api_keys:
  anthropic: file-key
paths:
  document: /from/file.md
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(fileYAML), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("ROUTEKEEPER_DOC", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-key" {
		t.Errorf("AnthropicAPIKey = %q, want env override", cfg.AnthropicAPIKey)
	}
	if cfg.DocumentPath != "/from/file.md" {
		t.Errorf("DocumentPath = %q, want file value", cfg.DocumentPath)
	}

	t.Setenv("ROUTEKEEPER_DOC", "/from/env.md")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DocumentPath != "/from/env.md" {
		t.Errorf("DocumentPath = %q, want env override", cfg.DocumentPath)
	}
}

func TestHasAdapter(t *testing.T) {
	cfg := &Config{AnthropicAPIKey: "k"}
	if !cfg.HasAdapter("anthropic") {
		t.Error("anthropic adapter should be available")
	}
	for _, name := range []string{"openai", "google", "deepseek", "unknown"} {
		if cfg.HasAdapter(name) {
			t.Errorf("%s adapter should be unavailable", name)
		}
	}
}
