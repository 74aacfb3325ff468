// Package form describes wizard steps declaratively and validates submitted
// values against them. Both the daily check-in and onboarding use it.
package form

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type Kind string

const (
	KindChoice Kind = "choice"
	KindMulti  Kind = "multi"
	KindRange  Kind = "range"
	KindText   Kind = "text"
	KindBool   Kind = "bool"
)

// Condition makes a field required only when another field has a given value.
type Condition struct {
	Field  string `json:"field"`
	Equals string `json:"equals"`
}

type Field struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Kind     Kind     `json:"kind"`
	Options  []string `json:"options,omitempty"`
	Min      int      `json:"min,omitempty"`
	Max      int      `json:"max,omitempty"`
	Required bool     `json:"required,omitempty"`

	RequiredWhen *Condition `json:"requiredWhen,omitempty"`

	// Exclusive is a multi-select option that cannot be combined with others.
	Exclusive string `json:"exclusive,omitempty"`

	// FreeText allows values outside Options (e.g. "Other: ...").
	FreeText bool `json:"freeText,omitempty"`

	// Default is used when the field is not submitted at all.
	Default any `json:"default,omitempty"`
}

// Schema is one step of a wizard.
type Schema struct {
	Step   string  `json:"step"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`

	// MissingMessage replaces the default message when required fields are unset.
	MissingMessage string `json:"-"`
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ValidationError lists the fields that blocked a step.
type ValidationError struct {
	Step    string            `json:"step"`
	Missing []string          `json:"missing,omitempty"`
	Invalid map[string]string `json:"invalid,omitempty"`
	Message string            `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// WithDefaults returns a copy of values with each absent field that has a
// Default set to it.
func WithDefaults(s Schema, values map[string]any) map[string]any {
	out := make(map[string]any, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	for _, f := range s.Fields {
		if f.Default == nil {
			continue
		}
		if v, ok := out[f.Name]; !ok || v == nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

// Validate checks values against the schema: every key must be a known
// field of the right kind, and every required field must be filled.
func Validate(s Schema, values map[string]any) error {
	invalid := map[string]string{}

	for name, v := range values {
		f, ok := s.Field(name)
		if !ok {
			invalid[name] = "unknown field"
			continue
		}
		if v == nil {
			continue
		}
		if msg := checkValue(f, v); msg != "" {
			invalid[name] = msg
		}
	}

	var missing []string
	for _, f := range s.Fields {
		if !isRequired(f, values) {
			continue
		}
		if _, bad := invalid[f.Name]; bad {
			continue
		}
		if !Filled(values[f.Name]) {
			missing = append(missing, f.Name)
		}
	}

	if len(invalid) == 0 && len(missing) == 0 {
		return nil
	}

	verr := &ValidationError{Step: s.Step, Missing: missing}
	if len(invalid) > 0 {
		verr.Invalid = invalid
	}
	switch {
	case len(missing) > 0 && s.MissingMessage != "":
		verr.Message = s.MissingMessage
	case len(missing) > 0:
		verr.Message = fmt.Sprintf("%s: missing required fields: %s", s.Step, strings.Join(missing, ", "))
	default:
		names := make([]string, 0, len(invalid))
		for n := range invalid {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, n := range names {
			parts = append(parts, n+" "+invalid[n])
		}
		verr.Message = fmt.Sprintf("%s: invalid fields: %s", s.Step, strings.Join(parts, "; "))
	}
	return verr
}

func isRequired(f Field, values map[string]any) bool {
	if f.Required {
		return true
	}
	if f.RequiredWhen == nil {
		return false
	}
	v, _ := values[f.RequiredWhen.Field].(string)
	return v == f.RequiredWhen.Equals
}

// Filled is the truthy check used for required fields: non-blank strings,
// non-empty lists, true booleans and any number.
func Filled(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []string:
		return len(val) > 0
	case []any:
		return len(val) > 0
	case bool:
		return val
	default:
		_, ok := AsInt(val)
		return ok
	}
}

func checkValue(f Field, v any) string {
	switch f.Kind {
	case KindChoice:
		s, ok := v.(string)
		if !ok {
			return "must be a string"
		}
		if strings.TrimSpace(s) != "" && !f.FreeText && len(f.Options) > 0 && !contains(f.Options, s) {
			return fmt.Sprintf("must be one of %s", strings.Join(f.Options, ", "))
		}
	case KindText:
		if _, ok := v.(string); !ok {
			return "must be a string"
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return "must be true or false"
		}
	case KindRange:
		n, ok := AsInt(v)
		if !ok {
			return "must be a whole number"
		}
		if n < f.Min || n > f.Max {
			return fmt.Sprintf("must be between %d and %d", f.Min, f.Max)
		}
	case KindMulti:
		items, ok := AsStrings(v)
		if !ok {
			return "must be a list of strings"
		}
		for _, it := range items {
			if !f.FreeText && len(f.Options) > 0 && !contains(f.Options, it) {
				return fmt.Sprintf("%q is not an option", it)
			}
		}
		if f.Exclusive != "" && len(items) > 1 && contains(items, f.Exclusive) {
			return fmt.Sprintf("%q cannot be combined with other options", f.Exclusive)
		}
	}
	return ""
}

// AsInt accepts Go integers and integral float64 values (as decoded from JSON).
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// AsStrings accepts []string and []any holding only strings.
func AsStrings(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, it := range l {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
