package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.NReflect != DefaultNReflect {
		t.Errorf("NReflect = %d, want %d", cfg.NReflect, DefaultNReflect)
	}
	if cfg.ThresholdAuto != DefaultThresholdAuto {
		t.Errorf("ThresholdAuto = %v, want %v", cfg.ThresholdAuto, DefaultThresholdAuto)
	}
	if cfg.ThresholdSuggest != DefaultThresholdSuggest {
		t.Errorf("ThresholdSuggest = %v, want %v", cfg.ThresholdSuggest, DefaultThresholdSuggest)
	}
	if cfg.AIRequestTimeout != 30*time.Second {
		t.Errorf("AIRequestTimeout = %v, want 30s", cfg.AIRequestTimeout)
	}
	if cfg.InstanceIDStrategy != InstanceStrategyCompound {
		t.Errorf("InstanceIDStrategy = %q, want compound", cfg.InstanceIDStrategy)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "50")
	t.Setenv("THRESHOLD_AUTO", "0.75")
	t.Setenv("INSTANCE_ID_STRATEGY", "last_numeric")
	t.Setenv("AI_CACHE_TTL", "1h")

	cfg := LoadConfig()
	if cfg.BatchSize != 50 {
		t.Errorf("BATCH_SIZE override ignored: %d", cfg.BatchSize)
	}
	if cfg.ThresholdAuto != 0.75 {
		t.Errorf("THRESHOLD_AUTO override ignored: %v", cfg.ThresholdAuto)
	}
	if cfg.InstanceIDStrategy != InstanceStrategyLastNumeric {
		t.Errorf("INSTANCE_ID_STRATEGY override ignored: %q", cfg.InstanceIDStrategy)
	}
	if cfg.AICacheTTL != time.Hour {
		t.Errorf("AI_CACHE_TTL override ignored: %v", cfg.AICacheTTL)
	}
}

func TestValidateConfig(t *testing.T) {
	good := LoadConfig()
	if err := ValidateConfig(good); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	mutate := func(fn func(*Config)) *Config {
		c := *LoadConfig()
		fn(&c)
		return &c
	}
	cases := []struct {
		name string
		cfg  *Config
	}{
		{"zero batch", mutate(func(c *Config) { c.BatchSize = 0 })},
		{"negative reflect", mutate(func(c *Config) { c.NReflect = -1 })},
		{"auto above 1", mutate(func(c *Config) { c.ThresholdAuto = 1.5 })},
		{"suggest above auto", mutate(func(c *Config) { c.ThresholdSuggest = 0.9 })},
		{"bad strategy", mutate(func(c *Config) { c.InstanceIDStrategy = "middle" })},
		{"bad port", mutate(func(c *Config) { c.Port = "http" })},
		{"no cors", mutate(func(c *Config) { c.CORSOrigins = nil })},
		{"zero parallel", mutate(func(c *Config) { c.AIParallelCalls = 0 })},
	}
	for _, tc := range cases {
		if err := ValidateConfig(tc.cfg); err == nil {
			t.Errorf("%s: validation passed, want error", tc.name)
		}
	}
}
