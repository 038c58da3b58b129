package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NEO4J_URI", "neo4j://graph:7687")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	reg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Similarity.Standard != 0.7 {
		t.Fatalf("Similarity.Standard: want=0.7 got=%v", reg.Similarity.Standard)
	}
	if reg.Similarity.Mood != 0.8 {
		t.Fatalf("Similarity.Mood: want=0.8 got=%v", reg.Similarity.Mood)
	}
	if reg.Graph.MaxPoolSize != 50 {
		t.Fatalf("Graph.MaxPoolSize: want=50 got=%d", reg.Graph.MaxPoolSize)
	}
	if reg.Limits.CacheTTL != time.Hour {
		t.Fatalf("Limits.CacheTTL: want=1h got=%s", reg.Limits.CacheTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NEO4J_MAX_POOL_SIZE", "120")
	t.Setenv("SIMILARITY_STANDARD", "0.75")
	t.Setenv("RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("UNRELATED_SETTING", "ignored")

	reg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Graph.MaxPoolSize != 120 {
		t.Fatalf("Graph.MaxPoolSize: want=120 got=%d", reg.Graph.MaxPoolSize)
	}
	if reg.Similarity.Standard != 0.75 {
		t.Fatalf("Similarity.Standard: want=0.75 got=%v", reg.Similarity.Standard)
	}
	if reg.Retry.InitialDelay != 250*time.Millisecond {
		t.Fatalf("Retry.InitialDelay: want=250ms got=%s", reg.Retry.InitialDelay)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunegraph.yaml")
	body := []byte("graph:\n  uri: bolt://from-file:7687\nlimits:\n  top_k_similar: 25\n  cache_size: 64\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("CACHE_SIZE", "128")

	reg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Graph.URI != "bolt://from-file:7687" {
		t.Fatalf("Graph.URI: want=%q got=%q", "bolt://from-file:7687", reg.Graph.URI)
	}
	if reg.Limits.TopKSimilar != 25 {
		t.Fatalf("Limits.TopKSimilar: want=25 got=%d", reg.Limits.TopKSimilar)
	}
	if reg.Limits.CacheSize != 128 {
		t.Fatalf("Limits.CacheSize: env should win, want=128 got=%d", reg.Limits.CacheSize)
	}
}

func TestValidateRejectsPoolSizeOutOfBounds(t *testing.T) {
	for _, size := range []int{0, 5000} {
		reg := Defaults()
		reg.Graph.URI = "neo4j://graph:7687"
		reg.Graph.MaxPoolSize = size

		err := reg.Validate()
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("pool=%d: expected *ConfigError, got=%T (%v)", size, err, err)
		}
		if cfgErr.Field != "graph.max_pool_size" {
			t.Fatalf("pool=%d: field want=graph.max_pool_size got=%q", size, cfgErr.Field)
		}
	}
}

func TestValidateRejectsMissingGraphURI(t *testing.T) {
	reg := Defaults()
	err := reg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "graph.uri" {
		t.Fatalf("expected graph.uri ConfigError, got=%v", err)
	}
}

func TestValidateRejectsUnorderedThresholds(t *testing.T) {
	reg := Defaults()
	reg.Graph.URI = "neo4j://graph:7687"
	reg.Similarity.Standard = 0.9
	reg.Similarity.HighConfidence = 0.8
	if err := reg.Validate(); err == nil {
		t.Fatalf("expected threshold ordering error")
	}
}

func TestValidateRejectsTagViolation(t *testing.T) {
	reg := Defaults()
	reg.Graph.URI = "neo4j://graph:7687"
	reg.Vector.Provider = "faiss"
	err := reg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got=%v", err)
	}
}

func TestValidateDimensionBounds(t *testing.T) {
	reg := Defaults()
	reg.Graph.URI = "neo4j://graph:7687"
	reg.Vector.Dimension = 0
	if err := reg.Validate(); err == nil {
		t.Fatalf("expected dimension error")
	}
	reg.Vector.Provider = "disabled"
	if err := reg.Validate(); err != nil {
		t.Fatalf("disabled provider should skip dimension check: %v", err)
	}
}
