package attrs

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestExtractString(t *testing.T) {
	policyID := uuid.MustParse("8a4f8f3e-6c1b-4a53-9d0e-0d7a3b2f9c11")

	tests := []struct {
		name string
		kv   []any
		key  string
		want string
	}{
		{"plain pair", []any{"policy_id", "p-1", "user_id", "u-1"}, "user_id", "u-1"},
		{"stringer value", []any{"policy_id", policyID}, "policy_id", policyID.String()},
		{"slog attr", []any{"event", "x", slog.String("actor_id", "a-1")}, "actor_id", "a-1"},
		{"attr between pairs", []any{slog.Int("count", 2), "payment_id", "pay-1"}, "payment_id", "pay-1"},
		{"non-string value", []any{"count", 3}, "count", ""},
		{"non-string slog value", []any{slog.Int("count", 3)}, "count", ""},
		{"missing key", []any{"policy_id", "p-1"}, "actor_id", ""},
		{"dangling key", []any{"policy_id"}, "policy_id", ""},
		{"value is not mistaken for key", []any{"event", "policy_id", "other", "x"}, "policy_id", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractString(tt.kv, tt.key))
		})
	}
}

func TestSpanAttributes(t *testing.T) {
	kv := []any{"policy_id", "p-1", "actor_id", "", "user_id", "u-1"}

	got := SpanAttributes(kv, "policy_id", "actor_id", "payment_id", "user_id")

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("policy_id", "p-1"),
		attribute.String("user_id", "u-1"),
	}, got)
}
