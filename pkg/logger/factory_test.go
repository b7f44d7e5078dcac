package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output includes static attrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("service", "formforge")),
		)

		log.Info("started")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "formforge", record["service"])
		assert.Equal(t, "started", record["msg"])
	})

	t.Run("context extractor injects attribute", func(t *testing.T) {
		t.Parallel()

		type ctxKey struct{}
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
				if v, ok := ctx.Value(ctxKey{}).(string); ok {
					return slog.String("tenant_id", v), true
				}
				return slog.Attr{}, false
			}),
		)

		ctx := context.WithValue(context.Background(), ctxKey{}, "t-123")
		log.InfoContext(ctx, "resolved")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "t-123", record["tenant_id"])
	})

	t.Run("respects level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))

		log.Info("hidden")
		assert.Zero(t, buf.Len())

		log.Warn("visible")
		assert.NotZero(t, buf.Len())
	})

	t.Run("panics on unknown format", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})
}
