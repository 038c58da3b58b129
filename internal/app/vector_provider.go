package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"
	"time"

	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/platform/pinecone"
	"github.com/yungbote/tunegraph/internal/platform/qdrant"
	"github.com/yungbote/tunegraph/internal/vector"
)

const (
	VectorProviderQdrant   = "qdrant"
	VectorProviderPinecone = "pinecone"
	VectorProviderDisabled = "disabled"
)

var (
	newPineconeClient   = pinecone.NewClient
	newQdrantProvider   = openQdrant
	newPineconeProvider = openPinecone
)

func openQdrant(ctx context.Context, log *logger.Logger, cfg qdrant.Config) (vector.Provider, error) {
	s, err := qdrant.NewVectorStore(ctx, log, cfg, nil)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPinecone(ctx context.Context, log *logger.Logger, pc pinecone.Client, cfg pinecone.StoreConfig) (vector.Provider, error) {
	s, err := pinecone.NewVectorStore(ctx, log, pc, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider      VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL     VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL     VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl    VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector  VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorDimensionMismatch    VectorProviderBootstrapErrorCode = "dimension_mismatch"
	VectorProviderBootstrapErrorConnectFailed        VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed   VectorProviderBootstrapErrorCode = "provider_init_failed"
	VectorProviderBootstrapCodeDisabledMissingAPIKey VectorProviderBootstrapErrorCode = "disabled_missing_api_key"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorProvider returns (nil, nil) when vector search is disabled,
// either explicitly or because Pinecone has no API key.
func resolveVectorProvider(ctx context.Context, log *logger.Logger, cfg config.VectorConfig) (vector.Provider, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	log.Info("Selecting vector store provider", "provider", provider, "dimension", cfg.Dimension, "namespace", cfg.Namespace)

	var (
		p   vector.Provider
		err error
	)
	switch provider {
	case VectorProviderDisabled:
		log.Warn("vector provider disabled; vector-backed operations will fail fast")
		setActiveProvider(VectorProviderDisabled)
		return nil, nil

	case VectorProviderQdrant:
		p, err = newQdrantProvider(ctx, log, qdrant.ConfigFromRegistry(cfg))

	case VectorProviderPinecone:
		if strings.TrimSpace(cfg.PineconeAPIKey) == "" {
			log.Warn("pinecone api key not set; vector search disabled")
			observability.VectorProviderBootstrap.WithLabelValues(provider, "degraded", string(VectorProviderBootstrapCodeDisabledMissingAPIKey)).Inc()
			setActiveProvider(VectorProviderDisabled)
			return nil, nil
		}
		var pc pinecone.Client
		pc, err = newPineconeClient(log, pinecone.ClientConfig{
			APIKey:     strings.TrimSpace(cfg.PineconeAPIKey),
			APIVersion: strings.TrimSpace(cfg.PineconeVersion),
			Timeout:    30 * time.Second,
		})
		if err == nil {
			p, err = newPineconeProvider(ctx, log, pc, pinecone.StoreConfig{
				IndexName: strings.TrimSpace(cfg.PineconeIndex),
				IndexHost: strings.TrimSpace(cfg.PineconeHost),
				Dimension: cfg.Dimension,
			})
		}

	default:
		err = &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
	}

	if err != nil {
		classified := classifyVectorProviderBootstrapError(provider, err)
		code := vectorProviderBootstrapErrorCode(classified)
		observability.VectorProviderBootstrap.WithLabelValues(provider, "error", string(code)).Inc()
		log.Error("Vector store provider bootstrap failed", "provider", provider, "error_code", code, "error", classified)
		return nil, classified
	}
	observability.VectorProviderBootstrap.WithLabelValues(provider, "success", "none").Inc()
	setActiveProvider(provider)
	return p, nil
}

func setActiveProvider(active string) {
	for _, name := range []string{VectorProviderQdrant, VectorProviderPinecone, VectorProviderDisabled} {
		v := 0.0
		if name == active {
			v = 1
		}
		observability.VectorProviderActive.WithLabelValues(name).Set(v)
	}
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	var already *VectorProviderBootstrapError
	if errors.As(err, &already) {
		return err
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var dimErr *vector.DimensionMismatchError
	if errors.As(err, &dimErr) {
		return wrap(VectorProviderBootstrapErrorDimensionMismatch)
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		}
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorConnectFailed
}
