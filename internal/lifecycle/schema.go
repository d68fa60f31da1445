package lifecycle

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"brokerdesk/internal/apperr"
)

// Kind describes how a request value is coerced for one field.
type Kind struct {
	Name string
	Enum []string
	// Required kinds reject null and blank values.
	Required bool
}

// NotNull returns k marked as required.
func (k Kind) NotNull() Kind {
	k.Required = true
	return k
}

var (
	KindString  = Kind{Name: "string"}
	KindText    = Kind{Name: "text"}
	KindRef     = Kind{Name: "ref"}
	KindDecimal = Kind{Name: "decimal"}
	KindInt     = Kind{Name: "integer"}
	KindDate    = Kind{Name: "date"}
	KindMonth   = Kind{Name: "month"}
)

func KindEnum(values ...string) Kind {
	return Kind{Name: "enum", Enum: values}
}

// Schema lists every field a request may name for one entity.
type Schema map[Field]Kind

// Coerce converts a decoded JSON object into Values. Unknown keys and type
// mismatches fail with a BadRequest naming the fields.
func (s Schema) Coerce(raw map[string]any) (Values, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Values, len(raw))
	var unknown []string
	for _, k := range keys {
		kind, ok := s[Field(k)]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		v, err := coerce(kind, raw[k])
		if err != nil {
			return nil, apperr.Newf(apperr.BadRequest, "field %s %s", k, err.msg).
				With("field", k).With("reason", err.msg)
		}
		out[Field(k)] = v
	}
	if len(unknown) > 0 {
		return nil, apperr.Newf(apperr.BadRequest, "unknown fields: %s", strings.Join(unknown, ", ")).
			With("fields", unknown)
	}
	return out, nil
}

type coerceError struct{ msg string }

func coerce(kind Kind, v any) (any, *coerceError) {
	if v == nil {
		if kind.Required {
			return nil, &coerceError{"cannot be cleared"}
		}
		return nil, nil
	}
	if s, ok := v.(string); ok && kind.Required && strings.TrimSpace(s) == "" {
		return nil, &coerceError{"cannot be blank"}
	}
	switch kind.Name {
	case "string", "text", "ref":
		s, ok := v.(string)
		if !ok {
			return nil, &coerceError{"must be a string"}
		}
		if kind.Name == "text" {
			return s, nil
		}
		return strings.TrimSpace(s), nil
	case "enum":
		s, ok := v.(string)
		if !ok {
			return nil, &coerceError{"must be a string"}
		}
		for _, allowed := range kind.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, &coerceError{"must be one of " + strings.Join(kind.Enum, ", ")}
	case "decimal":
		f, ok := number(v)
		if !ok {
			return nil, &coerceError{"must be a number"}
		}
		if f < 0 {
			return nil, &coerceError{"must not be negative"}
		}
		return math.Round(f*100) / 100, nil
	case "integer":
		f, ok := number(v)
		if !ok || f != math.Trunc(f) {
			return nil, &coerceError{"must be an integer"}
		}
		if f < 0 {
			return nil, &coerceError{"must not be negative"}
		}
		return int64(f), nil
	case "date":
		return layout(v, "2006-01-02", "must be a date (YYYY-MM-DD)")
	case "month":
		return layout(v, "2006-01", "must be a month (YYYY-MM)")
	}
	return nil, &coerceError{"has unsupported kind " + kind.Name}
}

func layout(v any, format, msg string) (any, *coerceError) {
	s, ok := v.(string)
	if !ok {
		return nil, &coerceError{msg}
	}
	s = strings.TrimSpace(s)
	if _, err := time.Parse(format, s); err != nil {
		return nil, &coerceError{msg}
	}
	return s, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
