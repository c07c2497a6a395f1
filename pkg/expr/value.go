package expr

import (
	"fmt"
	"reflect"
)

// memberOf resolves a.b for struct, pointer-to-struct, and map[string]any
// receivers via reflection, matching the "reflection-driven property
// discovery" pattern called out in spec.md §9 — kept narrow and confined to
// this package rather than exposed as a general runtime-reflection API.
func memberOf(recv any, name string) (any, error) {
	if recv == nil {
		return nil, fmt.Errorf("expr: member access %q on nil value", name)
	}
	if m, ok := recv.(map[string]any); ok {
		v, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("expr: map has no key %q", name)
		}
		return v, nil
	}

	v := reflect.ValueOf(recv)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("expr: member access %q on nil pointer", name)
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if fieldName(f.Name) == name || f.Name == name {
				return v.Field(i).Interface(), nil
			}
		}
		// Fall back to a zero-arg method returning a single value (e.g. Age()).
		if method, ok := t.MethodByName(capitalize(name)); ok && method.Type.NumIn() == 1 && method.Type.NumOut() == 1 {
			out := v.Method(method.Index).Call(nil)
			return out[0].Interface(), nil
		}
		return nil, fmt.Errorf("expr: %s has no field or method %q", t.Name(), name)
	default:
		return nil, fmt.Errorf("expr: cannot access member %q on %s", name, v.Kind())
	}
}

// fieldName lower-cases the first rune of a Go exported field name so that
// expressions can use the idiomatic lower-cased binding style (e.g.
// "elephant.age" against a field named Age).
func fieldName(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] - 'A' + 'a'
	}
	return string(r)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}

func equal(a, b any) bool {
	an, aok := toFloat(a)
	bn, bok := toFloat(b)
	if aok && bok {
		return an == bn
	}
	return reflect.DeepEqual(a, b)
}

func compare(op string, a, b any) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, fmt.Errorf("expr: comparison %s requires numeric operands, got %T and %T", op, a, b)
	}
	switch op {
	case ">":
		return af > bf, nil
	case ">=":
		return af >= bf, nil
	case "<":
		return af < bf, nil
	case "<=":
		return af <= bf, nil
	}
	return false, fmt.Errorf("expr: unknown comparison operator %q", op)
}

func negate(v any) (any, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("expr: unary - applied to non-numeric %T", v)
	}
	return -f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), true
		case reflect.Float32, reflect.Float64:
			return rv.Float(), true
		}
		return 0, false
	}
}
