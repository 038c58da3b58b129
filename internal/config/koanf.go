package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"tunegraph.yaml",
	"tunegraph.yml",
	"/etc/tunegraph/config.yaml",
}

// Load builds the registry from, in increasing precedence: built-in defaults,
// the first YAML file found, and mapped environment variables. The result is
// validated before it is returned.
func Load() (*Registry, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	reg := &Registry{}
	if err := k.Unmarshal("", reg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	// Graph store
	"neo4j_uri":                     "graph.uri",
	"neo4j_user":                    "graph.user",
	"neo4j_password":                "graph.password",
	"neo4j_database":                "graph.database",
	"neo4j_max_pool_size":           "graph.max_pool_size",
	"neo4j_acquisition_timeout":     "graph.acquisition_timeout",
	"neo4j_connect_timeout":         "graph.connect_timeout",
	"neo4j_max_connection_lifetime": "graph.max_connection_lifetime",

	// Vector index
	"vector_provider":      "vector.provider",
	"vector_namespace":     "vector.namespace",
	"vector_capacity":      "vector.capacity",
	"qdrant_url":           "vector.qdrant_url",
	"qdrant_collection":    "vector.qdrant_collection",
	"qdrant_vector_dim":    "vector.dimension",
	"pinecone_api_key":     "vector.pinecone_api_key",
	"pinecone_index_name":  "vector.pinecone_index",
	"pinecone_index_host":  "vector.pinecone_host",
	"pinecone_api_version": "vector.pinecone_api_version",

	// Redis cache tier
	"redis_addr":       "redis.addr",
	"redis_password":   "redis.password",
	"redis_db":         "redis.db",
	"redis_key_prefix": "redis.key_prefix",

	// Similarity thresholds
	"similarity_minimum":           "similarity.minimum",
	"similarity_standard":          "similarity.standard",
	"similarity_mood":              "similarity.mood",
	"similarity_high_confidence":   "similarity.high_confidence",
	"similarity_very_high":         "similarity.very_high_confidence",
	"similarity_genre_overlap_cap": "similarity.genre_overlap_cap",

	// Limits
	"top_k_similar":         "limits.top_k_similar",
	"top_k_recommendations": "limits.top_k_recommendations",
	"max_batch_concurrency": "limits.max_batch_concurrency",
	"cache_size":            "limits.cache_size",
	"cache_ttl":             "limits.cache_ttl",

	// Retry / timeouts
	"retry_max":                "retry.max_retries",
	"retry_initial_delay":      "retry.initial_delay",
	"retry_max_delay":          "retry.max_delay",
	"retry_backoff_multiplier": "retry.backoff_multiplier",
	"graph_timeout":            "retry.graph_timeout",
	"vector_timeout":           "retry.vector_timeout",
	"breaker_failures":         "retry.breaker_failures",
	"breaker_cooldown":         "retry.breaker_cooldown",

	// Health
	"health_latency_budget": "health.latency_budget",
	"health_check_timeout":  "health.check_timeout",
	"health_interval":       "health.interval",

	"http_addr":            "server.addr",
	"http_allowed_origins": "server.allowed_origins",
	"log_mode":             "log.mode",
	"log_level":            "log.level",
}

// envTransformFunc maps a raw environment variable name onto a registry key.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
