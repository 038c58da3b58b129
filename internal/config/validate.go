package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ConfigError struct {
	Field  string
	Value  string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid configuration"
	}
	if e.Value != "" {
		return fmt.Sprintf("invalid configuration %s=%q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

var graphSchemes = map[string]struct{}{
	"neo4j": {}, "neo4j+s": {}, "neo4j+ssc": {},
	"bolt": {}, "bolt+s": {}, "bolt+ssc": {},
}

// Validate runs the struct tag rules and the cross-field invariants.
func (r *Registry) Validate() error {
	if r == nil {
		return &ConfigError{Field: "registry", Reason: "nil"}
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Field:  fe.Namespace(),
				Value:  fmt.Sprint(fe.Value()),
				Reason: "failed rule " + fe.Tag(),
				Cause:  err,
			}
		}
		return &ConfigError{Field: "registry", Reason: err.Error(), Cause: err}
	}

	s := r.Similarity
	if !(s.Minimum <= s.Standard && s.Standard <= s.HighConfidence && s.HighConfidence <= s.VeryHighConfidence) {
		return &ConfigError{Field: "similarity", Reason: "thresholds must satisfy minimum <= standard <= high_confidence <= very_high_confidence"}
	}
	if s.Mood < s.Minimum {
		return &ConfigError{Field: "similarity.mood", Value: fmt.Sprint(s.Mood), Reason: "must not be below similarity.minimum"}
	}

	if r.Retry.MaxDelay < r.Retry.InitialDelay {
		return &ConfigError{Field: "retry.max_delay", Value: r.Retry.MaxDelay.String(), Reason: "must be >= retry.initial_delay"}
	}

	g := r.Graph
	if strings.TrimSpace(g.URI) == "" {
		return &ConfigError{Field: "graph.uri", Reason: "required (NEO4J_URI)"}
	}
	parsed, err := url.Parse(g.URI)
	if err != nil {
		return &ConfigError{Field: "graph.uri", Value: g.URI, Reason: "not a URL", Cause: err}
	}
	if _, ok := graphSchemes[strings.ToLower(parsed.Scheme)]; !ok || parsed.Host == "" {
		return &ConfigError{Field: "graph.uri", Value: g.URI, Reason: "expected neo4j:// or bolt:// URL with host"}
	}
	if g.MaxPoolSize < g.MinPoolSize || g.MaxPoolSize > g.PoolCeiling {
		return &ConfigError{
			Field:  "graph.max_pool_size",
			Value:  fmt.Sprint(g.MaxPoolSize),
			Reason: fmt.Sprintf("must be within [%d, %d]", g.MinPoolSize, g.PoolCeiling),
		}
	}

	v := r.Vector
	if v.MinDimension > v.MaxDimension {
		return &ConfigError{Field: "vector.min_dimension", Value: fmt.Sprint(v.MinDimension), Reason: "must be <= vector.max_dimension"}
	}
	if v.Provider != "disabled" && (v.Dimension < v.MinDimension || v.Dimension > v.MaxDimension) {
		return &ConfigError{
			Field:  "vector.dimension",
			Value:  fmt.Sprint(v.Dimension),
			Reason: fmt.Sprintf("must be within [%d, %d]", v.MinDimension, v.MaxDimension),
		}
	}
	return nil
}
