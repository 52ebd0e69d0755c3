package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Agent.DebounceSeconds != 6 {
		t.Errorf("DebounceSeconds = %v, want 6", cfg.Agent.DebounceSeconds)
	}
	if cfg.Channel.Provider != "cloudapi" {
		t.Errorf("Provider = %q, want cloudapi", cfg.Channel.Provider)
	}
}

func TestLoadParsesJSON5(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		// porta do servidor
		server: { port: 9090 },
		agent: { debounce_seconds: 3.5, max_iterations: 5 },
		openai: { model: "gpt-4o" },
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Agent.DebounceSeconds != 3.5 {
		t.Errorf("DebounceSeconds = %v, want 3.5", cfg.Agent.DebounceSeconds)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", cfg.Agent.MaxIterations)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", cfg.OpenAI.Model)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ADPILOT_PORT", "7000")
	t.Setenv("ADPILOT_MODEL", "gpt-4.1-mini")

	path := writeConfig(t, t.TempDir(), `{ server: { port: 9090 } }`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want env override 7000", cfg.Server.Port)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4.1-mini" {
		t.Errorf("Model = %q", cfg.OpenAI.Model)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.WhatsApp.PhoneNumberID = "123"
	cfg.WhatsApp.AccessToken = "token"
	cfg.OpenAI.APIKey = "sk"
	cfg.Facebook.AccessToken = "fb"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	cfg.Facebook.AccessToken = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing facebook token")
	}

	cfg.Channel.Provider = "irc"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown channel provider")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{ agent: { max_iterations: 5 } }`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got *Config
	err := Watch(ctx, path, func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		got = cfg
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`{ agent: { max_iterations: 7 } }`), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		ok := got != nil && got.Agent.MaxIterations == 7
		mu.Unlock()
		if ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("config not reloaded after file change")
}
