package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNew_WritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mediakeeper.log")
	opts := DefaultOptions()
	opts.File = file
	opts.Stdout = false

	l, closer, err := New(opts)
	require.NoError(t, err)

	l.Info(context.Background(), "sync finished", "inserted", 3)
	l.Debug(context.Background(), "filtered out")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, `"msg":"sync finished"`), out)
	assert.True(t, strings.Contains(out, `"inserted":3`), out)
	assert.False(t, strings.Contains(out, "filtered out"), out)
}

func TestNew_RejectsBadLevel(t *testing.T) {
	opts := DefaultOptions()
	opts.Level = "chatty"
	_, _, err := New(opts)
	assert.Error(t, err)
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	l := Discard()
	l.Info(context.Background(), "x")
	l.With("k", "v").Error(context.Background(), "y")
}
