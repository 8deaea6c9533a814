package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	work := t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
	return home
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)

	globalDir := filepath.Join(home, ".vlab")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}
	globalCfg := `{"provider": {"model": "global-model", "max_tokens": 2048}}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalCfg), 0o644); err != nil {
		t.Fatal(err)
	}
	projectCfg := `{"provider": {"model": "project-model"}, "meeting": {"max_turns": 6}}`
	if err := os.WriteFile("vlab.config.json", []byte(projectCfg), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "project-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	// 项目配置没写的键沿用全局 / Keys the project file omits keep global values
	if cfg.Provider.MaxTokens != 2048 {
		t.Fatalf("max_tokens=%d", cfg.Provider.MaxTokens)
	}
	if cfg.Meeting.MaxTurns != 6 {
		t.Fatalf("max_turns=%d", cfg.Meeting.MaxTurns)
	}
	if cfg.Provider.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("base_url=%q", cfg.Provider.BaseURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "gpt-4o" || cfg.Provider.TimeoutMS != 120000 {
		t.Fatalf("provider defaults: %+v", cfg.Provider)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Fatalf("backend=%q", cfg.Storage.Backend)
	}
	if cfg.Meeting.MaxTurns != 10 {
		t.Fatalf("max_turns=%d", cfg.Meeting.MaxTurns)
	}
	if !filepath.IsAbs(cfg.Storage.BaseDir) {
		t.Fatalf("base_dir not absolute: %q", cfg.Storage.BaseDir)
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("VLAB_MODEL", "env-model")
	t.Setenv("VLAB_MAX_TURNS", "4")
	t.Setenv("VLAB_API_KEY", "vlab-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "env-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Meeting.MaxTurns != 4 {
		t.Fatalf("max_turns=%d", cfg.Meeting.MaxTurns)
	}
	if cfg.Provider.APIKey != "vlab-key" {
		t.Fatalf("api_key=%q", cfg.Provider.APIKey)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	isolate(t)
	t.Setenv("VLAB_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "openai-key" {
		t.Fatalf("api_key=%q", cfg.Provider.APIKey)
	}
}

func TestInvalidMaxTurnsEnv(t *testing.T) {
	isolate(t)
	t.Setenv("VLAB_MAX_TURNS", "zero")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric VLAB_MAX_TURNS")
	}
	t.Setenv("VLAB_MAX_TURNS", "-3")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for negative VLAB_MAX_TURNS")
	}
}

func TestUnknownBackend(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("vlab.config.json", []byte(`{"storage": {"backend": "redis"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestExplicitConfigPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.json")
	if err := os.WriteFile(path, []byte(`{"storage": {"backend": "json"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "json" {
		t.Fatalf("backend=%q", cfg.Storage.Backend)
	}
}
