package pipeline

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/oleiade/reflections"
)

// inlineFriendlyMarshalJSON marshals a struct to JSON using its yaml struct
// tags, honouring the ",inline" option that encoding/json has no equivalent
// for: inlined map fields are hoisted into the top-level object.
func inlineFriendlyMarshalJSON(q any) ([]byte, error) {
	fields, err := reflections.Fields(q)
	if err != nil {
		return nil, fmt.Errorf("listing fields of %T: %w", q, err)
	}

	out := make(map[string]any, len(fields))
	for _, name := range fields {
		tag, err := reflections.GetFieldTag(q, name, "yaml")
		if err != nil {
			return nil, fmt.Errorf("reading tag of %T.%s: %w", q, name, err)
		}

		tagName, opts, _ := strings.Cut(tag, ",")
		if tagName == "-" && !strings.Contains(opts, "inline") {
			continue
		}

		value, err := reflections.GetField(q, name)
		if err != nil {
			return nil, fmt.Errorf("reading field %T.%s: %w", q, name, err)
		}

		if strings.Contains(opts, "inline") {
			inlined, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("inline field %T.%s is %T, want map[string]any", q, name, value)
			}
			for k, v := range inlined {
				out[k] = v
			}
			continue
		}

		if strings.Contains(opts, "omitempty") && isEmptyValue(value) {
			continue
		}

		if tagName == "" {
			tagName = strings.ToLower(name)
		}
		out[tagName] = value
	}

	return json.Marshal(out)
}

// isEmptyValue mirrors the emptiness rules of encoding/json's omitempty.
func isEmptyValue(x any) bool {
	switch v := reflect.ValueOf(x); v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	case reflect.Invalid:
		// reflect.ValueOf(nil)
		return true
	default:
		return false
	}
}
