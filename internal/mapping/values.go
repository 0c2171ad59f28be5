package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Backends disagree on scalar types: JSON decodes numbers as float64, pgx
// returns int64/float64/time.Time, the in-memory backend keeps whatever was
// inserted. These helpers normalize a column value to the client type.

func String(r Row, key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Date returns a YYYY-MM-DD string for DATE columns.
func Date(r Row, key string) string {
	switch v := r[key].(type) {
	case time.Time:
		return v.Format(DateLayout)
	default:
		s := String(r, key)
		if len(s) > len(DateLayout) {
			return s[:len(DateLayout)]
		}
		return s
	}
}

func Int(r Row, key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func Float(r Row, key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	default:
		return 0
	}
}

// Bool treats anything that is not a true boolean as false.
func Bool(r Row, key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Rows normalizes an embedded relation to a slice of rows.
func Rows(v any) []Row {
	switch t := v.(type) {
	case []Row:
		return t
	case []any:
		out := make([]Row, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
