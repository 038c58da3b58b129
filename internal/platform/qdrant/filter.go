package qdrant

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Filters use the Mongo-style operator subset shared with Pinecone:
// $and $or $not at the top level, $eq $ne $in and the $gt/$gte/$lt/$lte
// range operators per field.
const (
	filterOpAnd = "$and"
	filterOpOr  = "$or"
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"
)

var rangeOps = map[string]string{
	"$gt":  "gt",
	"$gte": "gte",
	"$lt":  "lt",
	"$lte": "lte",
}

type translatedFilter struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (f translatedFilter) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.Should) > 0 {
		out["should"] = f.Should
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

func mergeTranslatedFilters(dst *translatedFilter, src translatedFilter) {
	dst.Must = append(dst.Must, src.Must...)
	dst.Should = append(dst.Should, src.Should...)
	dst.MustNot = append(dst.MustNot, src.MustNot...)
}

func filterErr(code OperationErrorCode, format string, args ...any) error {
	return opErr("filter_translate", code, fmt.Sprintf(format, args...), nil)
}

func translateFilterMap(filter map[string]any) (translatedFilter, error) {
	out := translatedFilter{}
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if !strings.HasPrefix(k, "$") {
			part, err := translateFieldFilter(k, value)
			if err != nil {
				return translatedFilter{}, err
			}
			mergeTranslatedFilters(&out, part)
			continue
		}

		switch strings.ToLower(k) {
		case filterOpAnd, filterOpOr:
			items, ok := toObjectSlice(value)
			if !ok {
				return translatedFilter{}, filterErr(OperationErrorValidation, "operator %s expects array of objects", k)
			}
			for _, item := range items {
				sub, err := translateFilterMap(item)
				if err != nil {
					return translatedFilter{}, err
				}
				if strings.EqualFold(k, filterOpAnd) {
					out.Must = append(out.Must, sub.asMap())
				} else {
					out.Should = append(out.Should, sub.asMap())
				}
			}
		case filterOpNot:
			item, ok := value.(map[string]any)
			if !ok {
				return translatedFilter{}, filterErr(OperationErrorValidation, "operator %s expects an object", filterOpNot)
			}
			sub, err := translateFilterMap(item)
			if err != nil {
				return translatedFilter{}, err
			}
			out.MustNot = append(out.MustNot, sub.asMap())
		default:
			return translatedFilter{}, filterErr(OperationErrorUnsupportedFilter, "unsupported top-level filter operator %q", k)
		}
	}
	return out, nil
}

func translateFieldFilter(field string, value any) (translatedFilter, error) {
	out := translatedFilter{}
	ops, isOps := value.(map[string]any)
	if !isOps {
		scalar, ok := toScalarValue(value)
		if !ok {
			return out, filterErr(OperationErrorValidation, "field %q expects scalar value or operator object", field)
		}
		out.Must = append(out.Must, qdrantMatchCondition(field, scalar))
		return out, nil
	}
	if len(ops) == 0 {
		return out, filterErr(OperationErrorValidation, "field %q has empty operator map", field)
	}

	rng := map[string]any{}
	for _, op := range sortedKeys(ops) {
		opVal := ops[op]
		name := strings.ToLower(strings.TrimSpace(op))
		if bound, ok := rangeOps[name]; ok {
			n, ok := toNumber(opVal)
			if !ok {
				return translatedFilter{}, filterErr(OperationErrorValidation, "operator %s for field %q expects a number", op, field)
			}
			rng[bound] = n
			continue
		}
		switch name {
		case filterOpEq, filterOpNe:
			scalar, ok := toScalarValue(opVal)
			if !ok {
				return translatedFilter{}, filterErr(OperationErrorValidation, "operator %s for field %q expects scalar value", op, field)
			}
			if name == filterOpEq {
				out.Must = append(out.Must, qdrantMatchCondition(field, scalar))
			} else {
				out.MustNot = append(out.MustNot, qdrantMatchCondition(field, scalar))
			}
		case filterOpIn:
			values, ok := toScalarSlice(opVal)
			if !ok {
				return translatedFilter{}, filterErr(OperationErrorValidation, "operator %s for field %q expects scalar array", filterOpIn, field)
			}
			if len(values) == 0 {
				return translatedFilter{}, filterErr(OperationErrorValidation, "operator %s for field %q cannot be empty", filterOpIn, field)
			}
			out.Must = append(out.Must, map[string]any{"key": field, "match": map[string]any{"any": values}})
		default:
			return translatedFilter{}, filterErr(OperationErrorUnsupportedFilter, "unsupported filter operator %q for field %q", op, field)
		}
	}
	if len(rng) > 0 {
		out.Must = append(out.Must, map[string]any{"key": field, "range": rng})
	}
	return out, nil
}

func qdrantMatchCondition(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toObjectSlice(value any) ([]map[string]any, bool) {
	switch typed := value.(type) {
	case []map[string]any:
		return typed, true
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, obj)
		}
		return out, true
	default:
		return nil, false
	}
}

func toScalarSlice(value any) ([]any, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		scalar, ok := toScalarValue(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out = append(out, scalar)
	}
	return out, true
}

func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool:
		return typed, true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	}
	if n, ok := toNumber(value); ok {
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return n, true
	}
	return nil, false
}

func toNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
