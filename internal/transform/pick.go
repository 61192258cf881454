package transform

import (
	"fmt"
	"strings"

	"github.com/keiri-audit/engine/internal/blockerr"
)

var truthyStrings = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true,
}

// Pick traverses a dotted path through nested maps and coerces the
// resolved value to the requested return type: "string", "number", or
// "boolean". Boolean coercion only recognizes a closed set of truthy
// string forms; everything else, including non-empty unrecognized
// strings, resolves to false.
func Pick(source map[string]any, path string, returnType string) (any, error) {
	value, ok := resolvePath(source, path)
	if !ok {
		return nil, nil
	}

	switch returnType {
	case "", "string":
		return fmt.Sprint(value), nil
	case "number":
		f, err := toFloat(value)
		if err != nil {
			return nil, blockerr.NewInputError("path", "a value coercible to number", value)
		}
		return f, nil
	case "boolean":
		return coerceBoolean(value), nil
	default:
		return nil, blockerr.NewInputError("return", "one of string, number, boolean", returnType)
	}
}

func resolvePath(source map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = source
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func coerceBoolean(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return truthyStrings[strings.ToLower(strings.TrimSpace(v))]
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
