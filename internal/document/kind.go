package document

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/maruel/docitem/internal/jsonldb"
)

// Kind is the value type of a field.
type Kind string

const (
	// KindString holds text.
	KindString Kind = "string"
	// KindInt holds whole numbers, canonically int64.
	KindInt Kind = "int"
	// KindFloat holds numbers, canonically float64.
	KindFloat Kind = "float"
	// KindBool holds booleans.
	KindBool Kind = "bool"
	// KindDateTime holds timestamps, canonically time.Time.
	KindDateTime Kind = "datetime"
	// KindList holds slices.
	KindList Kind = "list"
	// KindDict holds maps keyed by string.
	KindDict Kind = "dict"
	// KindAny accepts any value.
	KindAny Kind = "any"
)

func (k Kind) valid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool, KindDateTime, KindList, KindDict, KindAny:
		return true
	}
	return false
}

// comparable reports whether canonical values of this kind can be compared with ==.
func (k Kind) comparable() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool:
		return true
	}
	return false
}

func (k Kind) column() jsonldb.ColumnType {
	switch k {
	case KindString:
		return jsonldb.ColumnTypeText
	case KindInt:
		return jsonldb.ColumnTypeInteger
	case KindFloat:
		return jsonldb.ColumnTypeReal
	case KindBool:
		return jsonldb.ColumnTypeBool
	case KindDateTime:
		return jsonldb.ColumnTypeDate
	default:
		return jsonldb.ColumnTypeJSONB
	}
}

func (k Kind) jsonType() string {
	switch k {
	case KindString, KindDateTime:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "array"
	case KindDict:
		return "object"
	default:
		return ""
	}
}

// canonical returns v converted to the canonical Go type of the kind, or an
// error describing why v does not belong to it. v must not be nil.
func (k Kind) canonical(v any) (any, error) {
	switch k {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected a string, got %T", v)
	case KindInt:
		if i, ok := toInt(v); ok {
			return i, nil
		}
		return nil, fmt.Errorf("expected an integer, got %T(%v)", v, v)
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		return nil, fmt.Errorf("expected a number, got %T", v)
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected a boolean, got %T", v)
	case KindDateTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			p, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fmt.Errorf("expected an RFC3339 timestamp: %w", err)
			}
			return p, nil
		}
		return nil, fmt.Errorf("expected a timestamp, got %T", v)
	case KindList:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return v, nil
		}
		return nil, fmt.Errorf("expected a list, got %T", v)
	case KindDict:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			return v, nil
		}
		return nil, fmt.Errorf("expected a dict, got %T", v)
	case KindAny:
		return v, nil
	}
	return nil, fmt.Errorf("unknown kind %q", k)
}

// kindOf maps a Go type to a field kind.
func kindOf(t reflect.Type) Kind {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == reflect.TypeFor[time.Time]() {
		return KindDateTime
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Slice, reflect.Array:
		return KindList
	case reflect.Map, reflect.Struct:
		return KindDict
	default:
		return KindAny
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32, float64:
		f, _ := toFloat(n)
		if f != math.Trunc(f) || math.IsInf(f, 0) || f < -0x1p63 || f >= 0x1p63 {
			return 0, false
		}
		return int64(f), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
