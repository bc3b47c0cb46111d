package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingLogger struct {
	entries [][]zap.Field
}

func (r *recordingLogger) record(fields []zap.Field) { r.entries = append(r.entries, fields) }

func (r *recordingLogger) Debug(msg string, fields ...zap.Field) { r.record(fields) }
func (r *recordingLogger) Info(msg string, fields ...zap.Field)  { r.record(fields) }
func (r *recordingLogger) Warn(msg string, fields ...zap.Field)  { r.record(fields) }
func (r *recordingLogger) Error(msg string, fields ...zap.Field) { r.record(fields) }

func TestWithPrependsFields(t *testing.T) {
	rec := &recordingLogger{}
	logger := With(With(rec, zap.String("a", "1")), zap.String("b", "2"))
	logger.Warn("msg", zap.String("c", "3"))

	require.Len(t, rec.entries, 1)
	keys := []string{}
	for _, f := range rec.entries[0] {
		keys = append(keys, f.Key)
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestWithZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := With(zap.New(core), zap.String("repository", "central"))
	logger.Info("resolved")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "central", logs.All()[0].ContextMap()["repository"])
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	With(nil).Debug("discarded")
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	ctx := ContextWith(context.Background(), zap.String("request_id", "req-1"))
	ctx = ContextWith(ctx, zap.Int32("partition", 2))
	require.Len(t, ContextFields(ctx), 2)
	require.Empty(t, ContextFields(context.Background()))

	FromContext(ctx, zap.New(core)).Info("resolved", zap.String("purl", "pkg:npm/x@1"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, int32(2), fields["partition"])
	require.Equal(t, "pkg:npm/x@1", fields["purl"])

	require.NotNil(t, FromContext(context.Background(), nil))
}
