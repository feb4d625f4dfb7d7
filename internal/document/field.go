package document

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"time"
	"unicode/utf8"
)

// ErrRequired is reported for a required field that has no value.
var ErrRequired = errors.New("field is required")

// Field describes one field of a schema and its constraints.
//
// The zero value of each constraint disables it.
type Field struct {
	Name       string
	Kind       Kind
	Required   bool
	PrimaryKey bool
	// Default is the value used when a document does not set the field. A
	// func() any is called for every new document.
	Default     any
	Description string

	// MinLength and MaxLength bound string lengths in runes and list lengths.
	MinLength int
	MaxLength int
	// Min and Max bound numeric values.
	Min *float64
	Max *float64
	// Choices restricts the value to one of the listed values.
	Choices []any
	// Pattern must match string values.
	Pattern *regexp.Regexp
	// Validator runs last, on the canonical value.
	Validator func(v any) error
}

// HasDefault reports whether the field declares a default value.
func (f *Field) HasDefault() bool {
	return f.Default != nil
}

// DefaultValue returns the default value, calling it when it is a function.
func (f *Field) DefaultValue() any {
	switch d := f.Default.(type) {
	case nil:
		return nil
	case func() any:
		return d()
	default:
		return d
	}
}

// check validates the field definition and canonicalizes its default and choices.
func (f *Field) check() error {
	if f.Name == "" {
		return errors.New("field name is required")
	}
	if f.Kind == "" {
		f.Kind = KindAny
	}
	if !f.Kind.valid() {
		return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
	}
	if f.MinLength < 0 || f.MaxLength < 0 || (f.MaxLength > 0 && f.MinLength > f.MaxLength) {
		return fmt.Errorf("field %q: invalid length bounds [%d, %d]", f.Name, f.MinLength, f.MaxLength)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("field %q: min %v is greater than max %v", f.Name, *f.Min, *f.Max)
	}
	if len(f.Choices) != 0 {
		if !f.Kind.comparable() {
			return fmt.Errorf("field %q: choices are not supported for kind %q", f.Name, f.Kind)
		}
		choices := make([]any, len(f.Choices))
		for i, c := range f.Choices {
			v, err := f.Kind.canonical(c)
			if err != nil {
				return fmt.Errorf("field %q: choice %v: %w", f.Name, c, err)
			}
			choices[i] = v
		}
		f.Choices = choices
	}
	if f.Default != nil {
		if _, ok := f.Default.(func() any); !ok {
			v, err := f.Kind.canonical(f.Default)
			if err != nil {
				return fmt.Errorf("field %q: default: %w", f.Name, err)
			}
			f.Default = v
		}
	}
	if f.PrimaryKey {
		f.Required = true
	}
	return nil
}

// validate checks a single value against the field constraints.
func (f *Field) validate(v any) error {
	if v == nil {
		if f.Required {
			return ErrRequired
		}
		return nil
	}
	cv, err := f.Kind.canonical(v)
	if err != nil {
		return err
	}
	switch x := cv.(type) {
	case string:
		if err := f.checkLength(utf8.RuneCountInString(x), "string value"); err != nil {
			return err
		}
		if f.Pattern != nil && !f.Pattern.MatchString(x) {
			return fmt.Errorf("string value does not match %q", f.Pattern.String())
		}
	case int64:
		if err := f.checkRange(float64(x)); err != nil {
			return err
		}
	case float64:
		if err := f.checkRange(x); err != nil {
			return err
		}
	default:
		if f.Kind == KindList {
			if err := f.checkLength(reflect.ValueOf(cv).Len(), "list"); err != nil {
				return err
			}
		}
	}
	if len(f.Choices) != 0 && !slices.Contains(f.Choices, cv) {
		return fmt.Errorf("value must be one of %v", f.Choices)
	}
	if f.Validator != nil {
		return f.Validator(cv)
	}
	return nil
}

func (f *Field) checkLength(n int, what string) error {
	if f.MaxLength > 0 && n > f.MaxLength {
		return fmt.Errorf("%s is too long (%d > %d)", what, n, f.MaxLength)
	}
	if f.MinLength > 0 && n < f.MinLength {
		return fmt.Errorf("%s is too short (%d < %d)", what, n, f.MinLength)
	}
	return nil
}

func (f *Field) checkRange(n float64) error {
	if f.Min != nil && n < *f.Min {
		return fmt.Errorf("value %v is less than minimum %v", n, *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Errorf("value %v is greater than maximum %v", n, *f.Max)
	}
	return nil
}

// key returns the index key of a value of the field. Values that compare
// equal once canonical share a key.
func (f *Field) key(v any) string {
	if v == nil {
		return ""
	}
	if cv, err := f.Kind.canonical(v); err == nil {
		v = cv
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
