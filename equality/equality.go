// Package equality decides whether two flat snapshot records differ in a way
// that is worth committing.
//
// Records are either structs (fields are keyed by their json name) or
// map[string]any. Comparison is one level deep: scalar fields compare by value,
// while pointers, slices and maps compare by identity.
//
// The field-count rule only applies to maps. Two values of one struct type
// always have the same fields, so a field a JSON payload omitted and a field
// present with its zero value compare equal. Callers that need to tell them
// apart must decode into a map or use pointer fields.
package equality

import (
	"reflect"
	"strings"
)

// Equal reports whether a and b hold the same field values.
func Equal(a, b any) bool {
	return EqualExcept(a, b)
}

// EqualExcept reports whether a and b hold the same field values, ignoring
// the fields named in except. Records with a different field count are never
// equal, whatever is excluded.
func EqualExcept(a, b any, except ...string) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Kind() == reflect.Pointer && vb.Kind() == reflect.Pointer {
		if va.Type() != vb.Type() {
			return false
		}
		if va.Pointer() == vb.Pointer() {
			return true
		}
		if va.IsNil() || vb.IsNil() {
			return false
		}
		va, vb = va.Elem(), vb.Elem()
	}
	if va.Type() != vb.Type() {
		return false
	}

	skip := make(map[string]bool, len(except))
	for _, name := range except {
		skip[name] = true
	}

	switch va.Kind() {
	case reflect.Struct:
		return equalStruct(va, vb, skip)
	case reflect.Map:
		if va.Type().Key().Kind() != reflect.String {
			return same(va, vb)
		}
		return equalMap(va, vb, skip)
	default:
		return same(va, vb)
	}
}

func equalStruct(a, b reflect.Value, skip map[string]bool) bool {
	t := a.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, ok := fieldName(f)
		if !ok || skip[name] || skip[f.Name] {
			continue
		}
		if !same(a.Field(i), b.Field(i)) {
			return false
		}
	}
	return true
}

func equalMap(a, b reflect.Value, skip map[string]bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	iter := a.MapRange()
	for iter.Next() {
		k := iter.Key()
		if skip[k.String()] {
			continue
		}
		other := b.MapIndex(k)
		if !other.IsValid() {
			return false
		}
		if !same(iter.Value(), other) {
			return false
		}
	}
	return true
}

// fieldName returns the json name of a struct field; false for fields the
// encoder skips.
func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return f.Name, true
}

// same is the one-level comparison: value equality for comparable scalars and
// structs, identity for reference kinds.
func same(x, y reflect.Value) bool {
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Kind() == reflect.Interface {
		if x.IsNil() || y.IsNil() {
			return x.IsNil() == y.IsNil()
		}
		x, y = x.Elem(), y.Elem()
	}
	if x.Type() != y.Type() {
		return false
	}
	switch x.Kind() {
	case reflect.Slice:
		return x.Pointer() == y.Pointer() && x.Len() == y.Len()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return x.Pointer() == y.Pointer()
	}
	if !x.Comparable() || !y.Comparable() {
		return false
	}
	return x.Equal(y)
}
