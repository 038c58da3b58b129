// Package config holds the process-wide configuration registry.
//
// The registry is loaded once at process start (defaults, then an optional
// YAML file, then environment variables) and validated before anything else
// is constructed. Sections are plain value types: components receive copies,
// so nothing downstream can mutate what another component sees. Behaviour that
// needs to differ per call is expressed through explicit option structs on the
// calling API, never by editing the registry.
package config

import "time"

type Registry struct {
	Similarity  SimilarityThresholds `koanf:"similarity"`
	Performance PerformanceTargets   `koanf:"performance"`
	Limits      Limits               `koanf:"limits"`
	Retry       RetryConfig          `koanf:"retry"`
	Vector      VectorConfig         `koanf:"vector"`
	Graph       GraphConfig          `koanf:"graph"`
	Redis       RedisConfig          `koanf:"redis"`
	Health      HealthConfig         `koanf:"health"`
	Server      ServerConfig         `koanf:"server"`
	Log         LogConfig            `koanf:"log"`
}

// SimilarityThresholds are all scores in [0,1].
type SimilarityThresholds struct {
	Minimum            float64 `koanf:"minimum" validate:"gte=0,lte=1"`
	Standard           float64 `koanf:"standard" validate:"gte=0,lte=1"`
	Mood               float64 `koanf:"mood" validate:"gte=0,lte=1"`
	HighConfidence     float64 `koanf:"high_confidence" validate:"gte=0,lte=1"`
	VeryHighConfidence float64 `koanf:"very_high_confidence" validate:"gte=0,lte=1"`
	GenreOverlapCap    int     `koanf:"genre_overlap_cap" validate:"gte=1,lte=50"`
}

type PerformanceTargets struct {
	SimilarityQueryBudget time.Duration `koanf:"similarity_query_budget" validate:"gt=0"`
	RecommendationBudget  time.Duration `koanf:"recommendation_budget" validate:"gt=0"`
	PerTrackBatchTime     time.Duration `koanf:"per_track_batch_time" validate:"gt=0"`
}

type Limits struct {
	TopKSimilar         int           `koanf:"top_k_similar" validate:"gte=1,lte=1000"`
	TopKRecommendations int           `koanf:"top_k_recommendations" validate:"gte=1,lte=1000"`
	MaxBatchConcurrency int           `koanf:"max_batch_concurrency" validate:"gte=1,lte=256"`
	CacheSize           int           `koanf:"cache_size" validate:"gte=1"`
	CacheTTL            time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

type RetryConfig struct {
	MaxRetries        int           `koanf:"max_retries" validate:"gte=0,lte=20"`
	InitialDelay      time.Duration `koanf:"initial_delay" validate:"gte=0"`
	MaxDelay          time.Duration `koanf:"max_delay" validate:"gte=0"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier" validate:"gte=1"`
	GraphTimeout      time.Duration `koanf:"graph_timeout" validate:"gt=0"`
	VectorTimeout     time.Duration `koanf:"vector_timeout" validate:"gt=0"`
	BreakerFailures   int           `koanf:"breaker_failures" validate:"gte=0"`
	BreakerCooldown   time.Duration `koanf:"breaker_cooldown" validate:"gte=0"`
}

type VectorConfig struct {
	Provider        string `koanf:"provider" validate:"oneof=qdrant pinecone disabled"`
	Dimension       int    `koanf:"dimension"`
	MinDimension    int    `koanf:"min_dimension" validate:"gte=1"`
	MaxDimension    int    `koanf:"max_dimension" validate:"gte=1"`
	Namespace       string `koanf:"namespace"`
	Capacity        int64  `koanf:"capacity" validate:"gte=0"`
	QdrantURL       string `koanf:"qdrant_url"`
	QdrantColl      string `koanf:"qdrant_collection"`
	PineconeAPIKey  string `koanf:"pinecone_api_key"`
	PineconeIndex   string `koanf:"pinecone_index"`
	PineconeHost    string `koanf:"pinecone_host"`
	PineconeVersion string `koanf:"pinecone_api_version"`
}

type GraphConfig struct {
	URI                   string        `koanf:"uri"`
	User                  string        `koanf:"user"`
	Password              string        `koanf:"password"`
	Database              string        `koanf:"database"`
	MaxPoolSize           int           `koanf:"max_pool_size"`
	MinPoolSize           int           `koanf:"min_pool_size" validate:"gte=1"`
	PoolCeiling           int           `koanf:"pool_ceiling" validate:"gte=1"`
	AcquisitionTimeout    time.Duration `koanf:"acquisition_timeout" validate:"gt=0"`
	ConnectTimeout        time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	MaxConnectionLifetime time.Duration `koanf:"max_connection_lifetime" validate:"gte=0"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db" validate:"gte=0"`
	KeyPrefix string `koanf:"key_prefix"`
}

type HealthConfig struct {
	LatencyBudget time.Duration `koanf:"latency_budget" validate:"gt=0"`
	CheckTimeout  time.Duration `koanf:"check_timeout" validate:"gt=0"`
	Interval      time.Duration `koanf:"interval" validate:"gt=0"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
	// AllowedOrigins enables CORS on the ops endpoints for browser
	// dashboards. Empty disables it.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LogConfig struct {
	Mode  string `koanf:"mode"`
	Level string `koanf:"level"`
}

// Defaults returns the built-in registry values. Every field is overridable
// through the YAML file or the environment.
func Defaults() Registry {
	return Registry{
		Similarity: SimilarityThresholds{
			Minimum:            0.5,
			Standard:           0.7,
			Mood:               0.8,
			HighConfidence:     0.85,
			VeryHighConfidence: 0.95,
			GenreOverlapCap:    3,
		},
		Performance: PerformanceTargets{
			SimilarityQueryBudget: 100 * time.Millisecond,
			RecommendationBudget:  500 * time.Millisecond,
			PerTrackBatchTime:     2 * time.Second,
		},
		Limits: Limits{
			TopKSimilar:         10,
			TopKRecommendations: 20,
			MaxBatchConcurrency: 5,
			CacheSize:           1000,
			CacheTTL:            time.Hour,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialDelay:      time.Second,
			MaxDelay:          10 * time.Second,
			BackoffMultiplier: 2,
			GraphTimeout:      30 * time.Second,
			VectorTimeout:     10 * time.Second,
			BreakerFailures:   5,
			BreakerCooldown:   30 * time.Second,
		},
		Vector: VectorConfig{
			Provider:        "qdrant",
			Dimension:       1536,
			MinDimension:    1,
			MaxDimension:    20000,
			Namespace:       "tracks",
			QdrantColl:      "tunegraph",
			PineconeVersion: "2025-10",
		},
		Graph: GraphConfig{
			User:                  "neo4j",
			MaxPoolSize:           50,
			MinPoolSize:           1,
			PoolCeiling:           1000,
			AcquisitionTimeout:    60 * time.Second,
			ConnectTimeout:        10 * time.Second,
			MaxConnectionLifetime: time.Hour,
		},
		Redis: RedisConfig{
			KeyPrefix: "tg:emb:",
		},
		Health: HealthConfig{
			LatencyBudget: 500 * time.Millisecond,
			CheckTimeout:  5 * time.Second,
			Interval:      30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}
