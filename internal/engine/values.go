package engine

import "brokerdesk/internal/lifecycle"

// put copies an optional input into a raw map for schema coercion.
func put[T any](raw map[string]any, f lifecycle.Field, v *T) {
	if v != nil {
		raw[string(f)] = *v
	}
}

func strOf(v lifecycle.Values, f lifecycle.Field) *string {
	if s, ok := v[f].(string); ok && s != "" {
		return &s
	}
	return nil
}

func numOf(v lifecycle.Values, f lifecycle.Field) *float64 {
	if n, ok := v[f].(float64); ok {
		return &n
	}
	return nil
}

func intOf(v lifecycle.Values, f lifecycle.Field) *int64 {
	if n, ok := v[f].(int64); ok {
		return &n
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
