package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/szylko/treeport/faults"
)

// Normalize canonicalizes a payload value so that bodies decoded from
// different encodings (YAML envelope files, JSON remote responses) compare
// equal: integers become int64, floats float64, maps map[string]any with
// deterministic construction order, slices []any.
func Normalize(value Value) (Value, error) {
	return normalizeValue(value)
}

// NormalizeBody normalizes every field of a body in place-equivalent copy.
func NormalizeBody(body Body) (Body, error) {
	normalized, err := normalizeValue(map[string]any(CloneBody(body)))
	if err != nil {
		return nil, err
	}
	asMap, ok := normalized.(map[string]any)
	if !ok {
		return nil, faults.NewTypedError(faults.InternalError, "normalized body is not a map", nil)
	}
	return Body(asMap), nil
}

func normalizeValue(value any) (any, error) {
	switch typed := value.(type) {
	case nil, bool, string:
		return typed, nil
	case float32:
		return normalizeFloat(float64(typed))
	case float64:
		return normalizeFloat(typed)
	case int:
		return int64(typed), nil
	case int8:
		return int64(typed), nil
	case int16:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case uint:
		return normalizeUint(uint64(typed))
	case uint8:
		return normalizeUint(uint64(typed))
	case uint16:
		return normalizeUint(uint64(typed))
	case uint32:
		return normalizeUint(uint64(typed))
	case uint64:
		return normalizeUint(typed)
	case json.Number:
		return normalizeJSONNumber(typed)
	case []any:
		return normalizeSlice(typed)
	case map[string]any:
		return normalizeStringMap(typed)
	case Body:
		return normalizeStringMap(typed)
	}

	return nil, faults.NewTypedError(
		faults.ValidationError,
		fmt.Sprintf("unsupported payload type %T", value),
		nil,
	)
}

func normalizeFloat(value float64) (any, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, faults.NewTypedError(faults.ValidationError, "payload contains non-finite float", nil)
	}
	if value == math.Trunc(value) && math.Abs(value) < float64(math.MaxInt64) {
		return int64(value), nil
	}
	return value, nil
}

func normalizeUint(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, faults.NewTypedError(faults.ValidationError, "payload contains integer out of range", nil)
	}
	return int64(value), nil
}

func normalizeJSONNumber(value json.Number) (any, error) {
	if asInt, err := value.Int64(); err == nil {
		return asInt, nil
	}
	asFloat, err := value.Float64()
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "payload contains invalid number", err)
	}
	return normalizeFloat(asFloat)
}

func normalizeSlice(values []any) ([]any, error) {
	normalized := make([]any, len(values))
	for idx, item := range values {
		itemValue, err := normalizeValue(item)
		if err != nil {
			return nil, err
		}
		normalized[idx] = itemValue
	}
	return normalized, nil
}

func normalizeStringMap(values map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	normalized := make(map[string]any, len(values))
	for _, key := range keys {
		itemValue, err := normalizeValue(values[key])
		if err != nil {
			return nil, err
		}
		normalized[key] = itemValue
	}

	return normalized, nil
}
