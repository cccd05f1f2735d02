package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, ClientIP(ctx))
		assert.Empty(t, UserAgent(ctx))
		assert.Empty(t, RequestID(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("values round trip", func(t *testing.T) {
		at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
		ctx := WithClientMetadata(context.Background(), "10.0.0.1", "curl/8.5")
		ctx = WithRequestID(ctx, "req-42")
		ctx = WithTime(ctx, at)

		assert.Equal(t, "10.0.0.1", ClientIP(ctx))
		assert.Equal(t, "curl/8.5", UserAgent(ctx))
		assert.Equal(t, "req-42", RequestID(ctx))
		assert.Equal(t, at, Now(ctx))
	})

	t.Run("foreign keys with the same underlying value do not collide", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), 2, "not-a-request-id") //nolint:staticcheck
		assert.Empty(t, RequestID(ctx))
	})
}
