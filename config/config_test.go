package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfigWithRoot(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfigWithRoot(root)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.DataCacheDir != filepath.Join(root, "data", "cache") {
		t.Fatalf("unexpected cache dir %s", cfg.DataCacheDir)
	}
	if cfg.RiskFreeRate != 0.04 || cfg.LookbackYears != 5 {
		t.Fatalf("unexpected analytics defaults: %+v", cfg)
	}
	want := []string{"gemini-2.0-flash", "gemini-1.5-pro"}
	if got := cfg.Models(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Models() = %v, want %v", got, want)
	}
}

func TestModelsDeduplicates(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.SecondaryModel = cfg.PrimaryModel
	if got := cfg.Models(); len(got) != 1 {
		t.Fatalf("expected one model, got %v", got)
	}
	cfg.PrimaryModel, cfg.SecondaryModel = "", ""
	if got := cfg.Models(); len(got) != 0 {
		t.Fatalf("expected no models, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.LLMProvider = "llama" }},
		{"temperature", func(c *Config) { c.LLMTemperature = 3 }},
		{"timeout", func(c *Config) { c.LLMTimeout = 0 }},
		{"var confidence", func(c *Config) { c.VaRConfidence = 1 }},
		{"lookback", func(c *Config) { c.LookbackYears = 0 }},
		{"parallel", func(c *Config) { c.MaxParallel = 0 }},
		{"log level", func(c *Config) { c.LogLevel = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfigWithRoot(t.TempDir())
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "deepseek")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("RISK_FREE_RATE", "0.05")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()

	if cfg.LLMAPIKey() != "sk-test" {
		t.Fatalf("expected deepseek key, got %q", cfg.LLMAPIKey())
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.LLMTimeout)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"a:9092", "b:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.RiskFreeRate != 0.05 {
		t.Fatalf("unexpected risk free rate %v", cfg.RiskFreeRate)
	}
}
