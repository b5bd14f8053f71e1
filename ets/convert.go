package ets

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value coercion for alias/note type annotations
// ---------------------------------------------------------------------------

// Converter performs implicit conversions on behalf of a type name. A
// converter registered for a type is consulted when values are coerced
// toward that type.
type Converter interface {
	CanConvert(value any) bool
	Convert(value any) (any, error)
}

// CoerceValue converts v to the named scalar target type. Supported names
// are the Go scalar type names plus the declarative-document spellings.
// Loaders use it to type note values annotated in a types document.
func CoerceValue(v any, typeName string) (any, error) {
	return coerceValue(v, typeName)
}

func coerceValue(v any, typeName string) (any, error) {
	switch strings.ToLower(typeName) {
	case "", "any":
		return v, nil
	case "string":
		return stringify(v), nil
	case "int", "int64":
		return coerceInt(v)
	case "float", "float64", "double":
		return coerceFloat(v)
	case "bool", "boolean":
		return coerceBool(v)
	}
	return nil, fmt.Errorf("unsupported coercion type %q", typeName)
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func coerceInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to int", x)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot convert %T to int", v)
}

func coerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

func coerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(x)))
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to bool", x)
		}
		return b, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}
