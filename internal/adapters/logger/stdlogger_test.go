package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestStdLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelWarn, 0)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "hidden")
	l.Warn(ctx, "shown")

	assert.Equal(t, "[WARN] shown\n", buf.String())
}

func TestStdLogger_SortedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelDebug, 0).With(map[string]interface{}{"run": "r1", "strategy": "S1"})

	l.Error(context.Background(), errors.New("boom"), "Run failed", map[string]interface{}{
		"strategy": "S2",
		"b":        2,
		"a":        1,
	})

	assert.Equal(t, "[ERROR] Run failed | error: boom | a=1 b=2 run=r1 strategy=S2\n", buf.String())
}
