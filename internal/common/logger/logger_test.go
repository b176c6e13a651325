package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zapcore.Level
	}{
		{name: "debug", level: "debug", want: zapcore.DebugLevel},
		{name: "warn", level: "warn", want: zapcore.WarnLevel},
		{name: "error", level: "error", want: zapcore.ErrorLevel},
		{name: "default info", level: "", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.level, "json")
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestZapWrapper_FieldsAndComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).Named("dispatcher")

	log.WithFields(map[string]interface{}{"topic": "taas.job.create"}).
		Warn("retry scheduled", map[string]interface{}{"retry": 1, "err": errors.New("boom")})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "dispatcher", ctx["component"])
		assert.Equal(t, "taas.job.create", ctx["topic"])
		assert.Equal(t, int64(1), ctx["retry"])
		assert.Equal(t, "boom", ctx["err"])
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	}
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.WithError(errors.New("x")).Error("ignored", nil)
	})
}

func TestBuild_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor.log")

	l := Build(Options{Level: "warn", Format: "json", Output: path, Service: "taas-es-processor"})
	l.Info("dropped")
	l.Warn("kept", zap.String("topic", "taas.workperiod.create"))
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "taas-es-processor", entry["service"])
	assert.Equal(t, "taas.workperiod.create", entry["topic"])
	assert.Contains(t, entry, "timestamp")
}

func TestBuild_UnwritableOutputIsNop(t *testing.T) {
	l := Build(Options{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})

	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}
