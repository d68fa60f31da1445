package lifecycle

import (
	"sort"
	"strings"
)

// Values is a typed field map. An absent key means "not provided"; a key
// holding nil means "explicitly cleared". Values hold normalized scalars only:
// string, float64, int64 or nil.
type Values map[Field]any

// Status reads the status entry. Missing or non-string entries yield "".
func (v Values) Status() Status {
	switch s := v[StatusField].(type) {
	case string:
		return Status(s)
	case Status:
		return s
	}
	return ""
}

// Has reports whether the key is present, including explicit nil.
func (v Values) Has(f Field) bool {
	_, ok := v[f]
	return ok
}

func (v Values) Keys() []Field {
	out := make([]Field, 0, len(v))
	for f := range v {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Without returns a copy lacking the given keys.
func (v Values) Without(fields ...Field) Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Split moves the keys in set out of v into a second map.
func (v Values) Split(set FieldSet) (rest, taken Values) {
	rest, taken = Values{}, Values{}
	for k, val := range v {
		if set.Has(k) {
			taken[k] = val
			continue
		}
		rest[k] = val
	}
	return rest, taken
}

// Map renders the values with string keys, for JSON payloads.
func (v Values) Map() map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[string(k)] = val
	}
	return out
}

// Merge overlays updates onto current without mutating either. A present key
// in updates always wins, including an explicit nil.
func Merge(current, updates Values) Values {
	out := make(Values, len(current)+len(updates))
	for k, val := range current {
		out[k] = val
	}
	for k, val := range updates {
		out[k] = val
	}
	return out
}

// IsEmpty treats nil and blank strings as missing.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *string:
		return t == nil || strings.TrimSpace(*t) == ""
	case *float64:
		return t == nil
	case *int64:
		return t == nil
	}
	return false
}

// Opt dereferences a nullable column into a Values entry.
func Opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
