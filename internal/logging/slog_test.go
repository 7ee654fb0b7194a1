package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "scan started", "root", "/media")
	log.Info(ctx, "sync finished", "inserted", 2)
	log.Warn(ctx, "row skipped", "id", 7)
	log.Error(ctx, "catalog unavailable", "error", "timeout")

	out := buf.String()
	for _, want := range []string{
		`level=DEBUG msg="scan started" root=/media`,
		`level=INFO msg="sync finished" inserted=2`,
		`level=WARN msg="row skipped" id=7`,
		`level=ERROR msg="catalog unavailable" error=timeout`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_WithAddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "reconciler").Info(context.Background(), "done", "removed", 1)

	out := buf.String()
	assert.Contains(t, out, "module=reconciler")
	assert.Contains(t, out, "removed=1")
}

func TestSlogLogger_ContextFields(t *testing.T) {
	log, buf := newTestLogger(t)

	ctx := ContextWith(context.Background(), "run_id", "r1")
	ctx = ContextWith(ctx, "client", "cli")
	log.Info(ctx, "sync finished", "seen", 3)

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, `msg="sync finished" run_id=r1 client=cli seen=3`)

	buf.Reset()
	log.Info(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "run_id")
}

func TestSlogLogger_ContextFieldsDoNotLeakBetweenBranches(t *testing.T) {
	log, buf := newTestLogger(t)

	base := ContextWith(context.Background(), "a", 1)
	left := ContextWith(base, "b", 2)
	right := ContextWith(base, "c", 3)

	log.Info(left, "left")
	log.Info(right, "right")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "a=1 b=2")
	assert.NotContains(t, lines[0], "c=3")
	assert.Contains(t, lines[1], "a=1 c=3")
	assert.NotContains(t, lines[1], "b=2")
}
