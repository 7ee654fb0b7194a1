package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	calls []string
	args  map[string][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return f.err
}

func (f *fakeExec) Sync(_ context.Context, a []string) error     { return f.record("sync", a) }
func (f *fakeExec) List(_ context.Context, a []string) error     { return f.record("list", a) }
func (f *fakeExec) Show(_ context.Context, a []string) error     { return f.record("show", a) }
func (f *fakeExec) Favorite(_ context.Context, a []string) error { return f.record("fav", a) }
func (f *fakeExec) Hide(_ context.Context, a []string) error     { return f.record("hide", a) }
func (f *fakeExec) Unhide(_ context.Context, a []string) error   { return f.record("unhide", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error   { return f.record("delete", a) }
func (f *fakeExec) Restore(_ context.Context, a []string) error  { return f.record("restore", a) }
func (f *fakeExec) Bin(_ context.Context, a []string) error      { return f.record("bin", a) }
func (f *fakeExec) Expired(_ context.Context, a []string) error  { return f.record("expired", a) }
func (f *fakeExec) Purge(_ context.Context, a []string) error    { return f.record("purge", a) }
func (f *fakeExec) Stats(_ context.Context, a []string) error    { return f.record("stats", a) }

func feed(lines ...string) <-chan string {
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return ch
}

func TestRunREPL_Dispatch(t *testing.T) {
	f := &fakeExec{}
	var out bytes.Buffer
	in := feed("sync", "", "list kind=image sort=name_asc", "show 3", "fav 3", "hide 3", "unhide 3",
		"delete 1,2 3", "restore 1", "bin", "expired 1h", "purge", "stats", "exit", "sync")

	runREPL(context.Background(), f, func() string { return "[status]" }, in, &out)

	assert.Equal(t, []string{"sync", "list", "show", "fav", "hide", "unhide", "delete", "restore",
		"bin", "expired", "purge", "stats"}, f.calls, "nothing runs after exit")
	assert.Equal(t, []string{"kind=image", "sort=name_asc"}, f.args["list"])
	assert.Equal(t, []string{"1,2", "3"}, f.args["delete"])
	assert.Contains(t, out.String(), "mk [status]> ")
	assert.Contains(t, out.String(), "Bye!")
}

func TestRunREPL_HelpAndUnknown(t *testing.T) {
	f := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), f, func() string { return "" }, feed("help", "frobnicate"), &out)

	assert.Empty(t, f.calls)
	assert.Contains(t, out.String(), "Available commands:")
	assert.Contains(t, out.String(), "Unknown command: frobnicate")
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	f := &fakeExec{err: errors.New("boom")}
	var out bytes.Buffer
	runREPL(context.Background(), f, func() string { return "" }, feed("sync", "stats"), &out)

	assert.Equal(t, []string{"sync", "stats"}, f.calls)
	assert.Equal(t, 2, strings.Count(out.String(), "error: boom"))
}

func TestRunREPL_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := make(chan string)
	done := make(chan struct{})
	var out bytes.Buffer

	go func() {
		defer close(done)
		runREPL(ctx, &fakeExec{}, func() string { return "" }, lines, &out)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("REPL did not stop")
	}
}

func TestReadLines(t *testing.T) {
	var got []string
	for l := range readLines(strings.NewReader("a\r\nb\nlast")) {
		got = append(got, l)
	}
	assert.Equal(t, []string{"a", "b", "last"}, got)
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int64
		wantErr bool
	}{
		{name: "spaces", args: []string{"1", "2"}, want: []int64{1, 2}},
		{name: "commas", args: []string{"1,2,", "3"}, want: []int64{1, 2, 3}},
		{name: "empty", args: nil, wantErr: true},
		{name: "garbage", args: []string{"x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseID([]string{"1", "2"})
	assert.Error(t, err)
	id, err := parseID([]string{"7"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}
