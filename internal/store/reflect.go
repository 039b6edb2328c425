package store

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/riftdata/pipeline/internal/parse"
)

// Row structs are projected to column lists by field name, embedded
// structs flattened in declaration order. The projection is cached per
// type; it replaces hand-maintained column lists for the wide
// participant and frame tables.

var columnCache sync.Map // reflect.Type -> []string

func columnsOf(t reflect.Type) []string {
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]string)
	}
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			cols = append(cols, columnsOf(f.Type)...)
			continue
		}
		cols = append(cols, snakeCase(f.Name))
	}
	columnCache.Store(t, cols)
	return cols
}

func valuesOf(v reflect.Value) []any {
	var vals []any
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			vals = append(vals, valuesOf(v.Field(i))...)
			continue
		}
		vals = append(vals, columnValue(v.Field(i).Interface()))
	}
	return vals
}

// columnValue converts parser sum types to store-native shapes: open
// maps become Map(String, String), single values their JSON rendering.
func columnValue(v any) any {
	switch x := v.(type) {
	case map[string]parse.Value:
		out := make(map[string]string, len(x))
		for k, val := range x {
			out[k] = val.String()
		}
		return out
	case parse.Value:
		return x.String()
	default:
		return v
	}
}

// snakeCase maps Go field names to column names: MatchID match_id,
// PUUID puuid, PositionX position_x, Var1 var1.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			boundary := i > 0 &&
				(!unicode.IsUpper(runes[i-1]) ||
					(i+1 < len(runes) && unicode.IsLower(runes[i+1])))
			if boundary {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
