package actionexecutor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateInput checks input against a Definition's field specs: presence,
// type, and constraint (pattern/min/max/enum). It returns all violations
// found, not just the first.
func ValidateInput(fields []FieldSpec, input map[string]any) []error {
	var errs []error
	for _, f := range fields {
		val, present := input[f.Name]
		if !present {
			if f.Required {
				errs = append(errs, fmt.Errorf("field %q is required", f.Name))
			}
			continue
		}
		if err := validateField(f, val); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateField(f FieldSpec, val any) error {
	if err := checkType(f, val); err != nil {
		return err
	}

	switch f.Type {
	case FieldTypeString:
		s, _ := val.(string)
		if f.Pattern != "" && !matchesPattern(s, f.Pattern) {
			return fmt.Errorf("field %q does not match pattern %q", f.Name, f.Pattern)
		}
		if err := checkBounds(f, float64(len(s))); err != nil {
			return err
		}
	case FieldTypeNumber:
		n := toFloat64(val)
		if err := checkBounds(f, n); err != nil {
			return err
		}
	case FieldTypeArray:
		if arr, ok := val.([]any); ok {
			if err := checkBounds(f, float64(len(arr))); err != nil {
				return err
			}
		}
	}

	if len(f.Enum) > 0 && !inEnum(val, f.Enum) {
		return fmt.Errorf("field %q must be one of %v", f.Name, f.Enum)
	}
	return nil
}

func checkType(f FieldSpec, val any) error {
	switch f.Type {
	case FieldTypeString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("field %q must be a string", f.Name)
		}
	case FieldTypeNumber:
		switch val.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("field %q must be a number", f.Name)
		}
	case FieldTypeBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", f.Name)
		}
	case FieldTypeArray:
		if _, ok := val.([]any); !ok {
			return fmt.Errorf("field %q must be an array", f.Name)
		}
	case FieldTypeObject:
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("field %q must be an object", f.Name)
		}
	case FieldTypeFile:
		switch val.(type) {
		case string, []byte:
		default:
			return fmt.Errorf("field %q must be a file reference", f.Name)
		}
	}
	return nil
}

func checkBounds(f FieldSpec, n float64) error {
	if f.Min != nil {
		if err := validate.Var(n, fmt.Sprintf("gte=%v", *f.Min)); err != nil {
			return fmt.Errorf("field %q must be >= %v", f.Name, *f.Min)
		}
	}
	if f.Max != nil {
		if err := validate.Var(n, fmt.Sprintf("lte=%v", *f.Max)); err != nil {
			return fmt.Errorf("field %q must be <= %v", f.Name, *f.Max)
		}
	}
	return nil
}

func matchesPattern(s, pattern string) bool {
	re := "^(?:" + strings.TrimSuffix(strings.TrimPrefix(pattern, "^"), "$") + ")$"
	ok, err := regexp.MatchString(re, s)
	return err == nil && ok
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func inEnum(val any, enum []any) bool {
	for _, e := range enum {
		if fmt.Sprint(e) == fmt.Sprint(val) {
			return true
		}
	}
	return false
}
