package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Setenv("HOME", t.TempDir())
	defer os.Unsetenv("HOME")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.LogLevel != DefaultServerLogLevel {
		t.Errorf("log level: got %q, want %q", cfg.Server.LogLevel, DefaultServerLogLevel)
	}
	if cfg.Classifier.Provider != "anthropic" {
		t.Errorf("classifier provider: got %q, want anthropic", cfg.Classifier.Provider)
	}
	if cfg.Validation.StaleDays != 90 {
		t.Errorf("stale days: got %d, want 90", cfg.Validation.StaleDays)
	}
	if cfg.Validation.DuplicateSimilarity != 0.6 {
		t.Errorf("duplicate similarity: got %v, want 0.6", cfg.Validation.DuplicateSimilarity)
	}
	if cfg.Conversation.TTL != DefaultConversationTTL {
		t.Errorf("conversation ttl: got %q, want %q", cfg.Conversation.TTL, DefaultConversationTTL)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("HOME", dir)
	defer os.Unsetenv("HOME")

	cfgDir := filepath.Join(dir, ".sahabot")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := []byte("server:\n  log_level: debug\nvalidation:\n  stale_days: 120\n")
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level from file: got %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Validation.StaleDays != 120 {
		t.Errorf("stale days from file: got %d, want 120", cfg.Validation.StaleDays)
	}
	// Untouched keys keep their defaults.
	if cfg.Adapters.Slack.Port != DefaultSlackPort {
		t.Errorf("slack port: got %d, want %d", cfg.Adapters.Slack.Port, DefaultSlackPort)
	}
}

func TestClassifierAPIKeyFromEnv(t *testing.T) {
	os.Setenv("HOME", t.TempDir())
	os.Setenv("ANTHROPIC_API_KEY", "sk-test")
	defer func() {
		os.Unsetenv("HOME")
		os.Unsetenv("ANTHROPIC_API_KEY")
	}()

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Classifier.APIKey != "sk-test" {
		t.Errorf("api key: got %q, want sk-test", cfg.Classifier.APIKey)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "1h")
	if err != nil || d != time.Hour {
		t.Errorf("empty value should fall back: got %v, %v", d, err)
	}

	d, err = DurationOrDefault("90s", "1h")
	if err != nil || d != 90*time.Second {
		t.Errorf("explicit value: got %v, %v", d, err)
	}

	if _, err = DurationOrDefault("", ""); err == nil {
		t.Error("both empty should error")
	}

	if _, err = DurationOrDefault("not-a-duration", "1h"); err == nil {
		t.Error("invalid value should error")
	}
}
