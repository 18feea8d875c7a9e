package descriptor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/ghcard/internal/language"
)

// CoerceVariables checks vars against the declared parameters and returns
// the canonical variable set: defaults applied, values coerced to their
// declared types. Any mismatch is reported as a *ValidationError.
func (d *Descriptor) CoerceVariables(vars map[string]any) (map[string]any, error) {
	for name := range vars {
		if _, ok := d.Param(name); !ok {
			return nil, &ValidationError{Operation: d.Name, Variable: name, Reason: "is not declared"}
		}
	}
	coerced := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		val, ok := vars[p.Name]
		if !ok {
			if p.Default != nil {
				dv, err := p.Default.Value(nil)
				if err != nil {
					return nil, &ValidationError{Operation: d.Name, Variable: p.Name, Reason: "has an invalid default: " + err.Error()}
				}
				val = dv
			} else if p.Type.NonNull {
				return nil, &ValidationError{Operation: d.Name, Variable: p.Name, Reason: fmt.Sprintf("of required type %s was not provided", p.Type)}
			} else {
				continue
			}
		}
		cv, err := coerceValue(val, p.Type)
		if err != nil {
			return nil, &ValidationError{Operation: d.Name, Variable: p.Name, Reason: fmt.Sprintf("of type %s: %v", p.Type, err)}
		}
		coerced[p.Name] = cv
	}
	return coerced, nil
}

// coerceValue coerces a value to the specified GraphQL input type
func coerceValue(value any, t *language.Type) (any, error) {
	if value == nil {
		if t.NonNull {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return nil, nil
	}
	if t.Elem != nil {
		return coerceListValue(value, t.Elem)
	}
	switch t.NamedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	default:
		// custom scalars, enums and input objects pass through
		return value, nil
	}
}

func coerceListValue(value any, elem *language.Type) (any, error) {
	if slice, ok := value.([]any); ok {
		out := make([]any, len(slice))
		for i, item := range slice {
			cv, err := coerceValue(item, elem)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}
	// Single value becomes a list of one
	cv, err := coerceValue(value, elem)
	if err != nil {
		return nil, err
	}
	return []any{cv}, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return inInt32Range(int64(v), value)
	case int32:
		return int(v), nil
	case int64:
		return inInt32Range(v, value)
	case float64:
		if v == math.Trunc(v) {
			return inInt32Range(int64(v), value)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return inInt32Range(i, value)
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

func inInt32Range(i int64, orig any) (any, error) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		return nil, fmt.Errorf("%v overflows Int", orig)
	}
	return int(i), nil
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
