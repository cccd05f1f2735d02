// Package attrs reads values back out of slog-style key/value argument lists
// so audit logging and tracing can share one set of attributes.
package attrs

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

// ExtractString returns the value stored under key in kv, a slice shaped
// like the variadic args of slog ([k1, v1, k2, v2, ...]) that may also hold
// slog.Attr entries. Stringers are rendered; any other value yields "".
func ExtractString(kv []any, key string) string {
	v, ok := lookup(kv, key)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case slog.Value:
		// slog.Value is itself a Stringer; only string kinds count.
		if val.Kind() == slog.KindString {
			return val.String()
		}
	case fmt.Stringer:
		return val.String()
	}
	return ""
}

// SpanAttributes converts the named keys found in kv into string span
// attributes, skipping keys that are absent or empty.
func SpanAttributes(kv []any, keys ...string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		if v := ExtractString(kv, key); v != "" {
			out = append(out, attribute.String(key, v))
		}
	}
	return out
}

func lookup(kv []any, key string) (any, bool) {
	for i := 0; i < len(kv); i++ {
		switch k := kv[i].(type) {
		case slog.Attr:
			if k.Key == key {
				return k.Value, true
			}
		case string:
			if i+1 >= len(kv) {
				return nil, false
			}
			if k == key {
				return kv[i+1], true
			}
			i++
		}
	}
	return nil, false
}
