package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT * FROM invoices", 3 }

	t.Run("silent level logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Silent)

		gl.Trace(ctx, time.Now(), query, nil)
		assert.Zero(t, recorded.Len())
	})

	t.Run("errors are logged with the statement", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)

		gl.Trace(ctx, time.Now(), query, errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "sql error", logs[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
		assert.Equal(t, "SELECT * FROM invoices", logs[0].ContextMap()["sql"])
	})

	t.Run("record not found is suppressed", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)

		gl.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("slow queries warn", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

		gl.Trace(ctx, time.Now().Add(-time.Millisecond), query, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "slow sql", logs[0].Message)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})

	t.Run("info level traces at debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info, WithSlowThreshold(time.Hour))

		gl.Trace(ctx, time.Now(), query, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "sql trace", logs[0].Message)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	})
}

func TestGormLogger_Levels(t *testing.T) {
	ctx := context.Background()

	t.Run("Info respects level", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.Info(ctx, "migrating %s", "invoices")
		assert.Zero(t, recorded.Len())

		gl, recorded = newObservedGormLogger(gormlogger.Info)
		gl.Info(ctx, "migrating %s", "invoices")
		assert.Equal(t, 1, recorded.Len())
	})

	t.Run("Warn respects level", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.Warn(ctx, "retrying")
		assert.Zero(t, recorded.Len())

		gl, recorded = newObservedGormLogger(gormlogger.Warn)
		gl.Warn(ctx, "retrying")
		assert.Equal(t, 1, recorded.Len())
	})

	t.Run("Error logs at error level", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.Error(ctx, "bad statement")
		assert.Equal(t, 1, recorded.Len())
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Warn)

	clone := gl.LogMode(gormlogger.Info)

	require.NotSame(t, gl, clone)
	assert.Equal(t, gormlogger.Warn, gl.logLevel)
	assert.Equal(t, gormlogger.Info, clone.(*GormLogger).logLevel)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"bogus", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.in))
		})
	}
}
