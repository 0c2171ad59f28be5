// Package mapping converts between the portal's client model (camelCase keys,
// nested permission sets, separate event date and time) and the backend schema
// (snake_case columns, flat permission flags, one combined date_time column).
package mapping

import (
	"strings"
	"unicode"
)

// Row is one backend record keyed by column name.
type Row = map[string]any

// Patch is a partial, client-shaped record keyed by camelCase field name.
type Patch map[string]any

// UndefinedValue marks a field that must not be sent to the backend at all.
// A nil value is different: it is sent and clears the column.
type UndefinedValue struct{}

// Undefined is the sentinel dropped by ToBackendShape.
var Undefined = UndefinedValue{}

// SnakeCase rewrites every upper-case letter as "_" plus its lower-case form.
func SnakeCase(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CamelCase rewrites every "_x" with a lower-case letter x as "X".
func CamelCase(key string) string {
	runes := []rune(key)
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(runes); i++ {
		if runes[i] == '_' && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			b.WriteRune(unicode.ToUpper(runes[i+1]))
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// ToBackendShape walks maps and slices, renaming keys to snake_case and
// dropping Undefined values. Anything else is returned unchanged.
func ToBackendShape(v any) any {
	return walk(v, SnakeCase, true)
}

// ToClientShape is the inverse of ToBackendShape.
func ToClientShape(v any) any {
	return walk(v, CamelCase, false)
}

func walk(v any, rename func(string) string, dropUndefined bool) any {
	switch t := v.(type) {
	case Patch:
		return walkMap(t, rename, dropUndefined)
	case map[string]any:
		return walkMap(t, rename, dropUndefined)
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, m := range t {
			out = append(out, walkMap(m, rename, dropUndefined))
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, walk(item, rename, dropUndefined))
		}
		return out
	default:
		return v
	}
}

func walkMap(m map[string]any, rename func(string) string, dropUndefined bool) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, ok := v.(UndefinedValue); ok && dropUndefined {
			continue
		}
		out[rename(k)] = walk(v, rename, dropUndefined)
	}
	return out
}

// ColumnSet is the closed set of backend columns an entity may write.
type ColumnSet map[string]struct{}

func NewColumnSet(cols ...string) ColumnSet {
	s := make(ColumnSet, len(cols))
	for _, c := range cols {
		s[c] = struct{}{}
	}
	return s
}

func (s ColumnSet) Has(col string) bool {
	_, ok := s[col]
	return ok
}

// Unknown returns the keys of row that are not in the set.
func (s ColumnSet) Unknown(row Row) []string {
	var out []string
	for k := range row {
		if !s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Defined returns a copy of p without Undefined values.
func (p Patch) Defined() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		if _, ok := v.(UndefinedValue); ok {
			continue
		}
		out[k] = v
	}
	return out
}

// Take removes key from p and returns its value.
func (p Patch) Take(key string) (any, bool) {
	v, ok := p[key]
	if ok {
		delete(p, key)
	}
	return v, ok
}
