package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// applyTransform converts value per the closed transform set spec.md §4.3
// names. An unrecognized or failing transform is reported so the caller can
// fall back to the mapping's DefaultValue.
func applyTransform(transform Transform, value any) (any, error) {
	switch transform {
	case TransformNone:
		return value, nil
	case TransformUppercase:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("uppercase: value is not a string")
		}
		return strings.ToUpper(s), nil
	case TransformLowercase:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("lowercase: value is not a string")
		}
		return strings.ToLower(s), nil
	case TransformTrim:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("trim: value is not a string")
		}
		return strings.TrimSpace(s), nil
	case TransformJSONParse:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("json_parse: value is not a string")
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil, fmt.Errorf("json_parse: %w", err)
		}
		return parsed, nil
	case TransformNumber:
		switch v := value.(type) {
		case float64, int, int64:
			return v, nil
		case string:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("number: %w", err)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("number: unsupported source type %T", value)
		}
	case TransformDate:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("date: value is not a string")
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("date: %w", err)
		}
		return t.Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", transform)
	}
}
