package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.GitLab.URL != "https://gitlab.com" {
		t.Errorf("Expected default gitlab url, got %q", cfg.GitLab.URL)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Expected 24h token ttl, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.AI.Provider != "openai" {
		t.Errorf("Expected openai provider, got %q", cfg.AI.Provider)
	}
	if len(cfg.AI.ReviewRules) == 0 {
		t.Error("Expected the built-in review rules")
	}
	if cfg.Review.PollInterval != 0 {
		t.Errorf("Expected the poller to be disabled, got %v", cfg.Review.PollInterval)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergelens.yaml")
	content := `
server:
  port: 9000
gitlab:
  url: https://gitlab.example.com
  token: glpat-test
ai:
  provider: ollama
  base_url: http://localhost:11434
  model: qwen2.5-coder
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000 from file, got %d", cfg.Server.Port)
	}
	if cfg.GitLab.URL != "https://gitlab.example.com" {
		t.Errorf("Expected gitlab url from file, got %q", cfg.GitLab.URL)
	}
	if cfg.AI.Provider != "ollama" {
		t.Errorf("Expected ollama from file, got %q", cfg.AI.Provider)
	}
	// Untouched keys keep their defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host, got %q", cfg.Server.Host)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergelens.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MERGELENS_SERVER_PORT", "9100")
	t.Setenv("MERGELENS_GITLAB_TOKEN", "glpat-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Expected env to win over the file, got %d", cfg.Server.Port)
	}
	if cfg.GitLab.Token != "glpat-env" {
		t.Errorf("Expected token from env, got %q", cfg.GitLab.Token)
	}
}

func TestLoad_ProviderModelDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergelens.yaml")
	content := `
ai:
  provider: ollama
  base_url: http://localhost:11434
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.AI.Model != "qwen2.5-coder" {
		t.Errorf("Expected the ollama model default, got %q", cfg.AI.Model)
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel("openai"); got != "gpt-4o-mini" {
		t.Errorf("Expected gpt-4o-mini for openai, got %q", got)
	}
	if got := DefaultModel("ollama"); got != "qwen2.5-coder" {
		t.Errorf("Expected qwen2.5-coder for ollama, got %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/mergelens.yaml"); err == nil {
		t.Error("Expected an error for an explicit missing file")
	}
}

func validConfig() *Config {
	cfg, _ := Load("")
	cfg.Database.URL = "postgres://localhost/mergelens"
	cfg.Auth.JWTSecret = "secret"
	cfg.AI.APIKey = "sk-test"
	return cfg
}

func TestValidate(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "  " }},
		{"openai without api key", func(c *Config) { c.AI.APIKey = "" }},
		{"ollama without base url", func(c *Config) {
			c.AI.Provider = "ollama"
			c.AI.BaseURL = ""
		}},
		{"unknown provider", func(c *Config) { c.AI.Provider = "bard" }},
		{"poller without token", func(c *Config) {
			c.Review.PollInterval = time.Minute
			c.GitLab.Token = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergelens.yaml")

	if err := Init(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// The sample must itself be loadable
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected the sample config to load, got: %v", err)
	}
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Errorf("Expected sample model, got %q", cfg.AI.Model)
	}

	if err := Init(path); err == nil {
		t.Error("Expected an error when the file already exists")
	}
}
