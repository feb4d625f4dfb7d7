// Restores Go types lost by JSON decoding using SQLite-style column affinity.

package jsonldb

import (
	"encoding/json"
	"math"
	"strconv"
)

// Affinity represents SQLite-compatible type affinity for columns.
//
// Rows are decoded with numbers as json.Number. Affinity decides what the
// value becomes when read back:
//
//	INTEGER: integral json.Number, whole floats and numeric strings → int64
//	REAL:    numbers and numeric strings → float64
//	TEXT:    json.Number → its text; other values pass through
//	BLOB:    json.Number, including inside lists and objects → int64 when
//	         integral, float64 otherwise; other values pass through
//
// See https://www.sqlite.org/datatype3.html for the SQLite specification.
type Affinity int

const (
	// AffinityBLOB has no type preference; values stored as-is.
	AffinityBLOB Affinity = iota
	// AffinityTEXT keeps textual values.
	AffinityTEXT
	// AffinityINTEGER forces integer representation when lossless.
	AffinityINTEGER
	// AffinityREAL forces floating point representation.
	AffinityREAL
)

// ColumnTypeAffinity returns the SQLite affinity for a column type.
func ColumnTypeAffinity(colType ColumnType) Affinity {
	switch colType {
	case ColumnTypeText, ColumnTypeDate:
		return AffinityTEXT
	case ColumnTypeInteger:
		return AffinityINTEGER
	case ColumnTypeReal:
		return AffinityREAL
	case ColumnTypeBool, ColumnTypeJSONB:
		return AffinityBLOB
	default:
		return AffinityBLOB
	}
}

// CoerceValue applies type coercion to a value based on affinity.
// Nil values and values that cannot be converted losslessly pass through
// unchanged so that validation can still report them.
func CoerceValue(value any, affinity Affinity) any {
	switch affinity {
	case AffinityINTEGER:
		if n, ok := value.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i
			}
		}
		if f, ok := toFloat(value); ok && isWhole(f) {
			return int64(f)
		}
	case AffinityREAL:
		if f, ok := toFloat(value); ok {
			return f
		}
	case AffinityTEXT:
		if n, ok := value.(json.Number); ok {
			return n.String()
		}
	case AffinityBLOB:
		return restoreNumbers(value)
	}
	return value
}

// restoreNumbers replaces json.Number values, recursively, with int64 when
// integral and float64 otherwise.
func restoreNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = restoreNumbers(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = restoreNumbers(x)
		}
		return out
	}
	return value
}

// CoerceData applies type coercion to all values in a data map based on column definitions.
// Columns not in the schema are passed through unchanged (BLOB affinity).
func CoerceData(data map[string]any, columns []Column) map[string]any {
	if data == nil {
		return nil
	}
	colTypes := make(map[string]ColumnType, len(columns))
	for _, col := range columns {
		colTypes[col.Name] = col.Type
	}
	result := make(map[string]any, len(data))
	for key, value := range data {
		colType, ok := colTypes[key]
		if !ok {
			result[key] = value
			continue
		}
		result[key] = CoerceValue(value, ColumnTypeAffinity(colType))
	}
	return result
}

// toFloat converts numeric values, and strings holding numbers, to float64.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isWhole(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && !math.IsNaN(f) && f >= -0x1p63 && f < 0x1p63
}
