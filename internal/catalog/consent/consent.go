// Package consent implements catalog.Consenter: fixed policies for
// unattended servers and an interactive terminal prompt.
package consent

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

// Auto grants every request.
type Auto struct{}

func (Auto) RequestDelete(_ context.Context, ids []int64) (models.ConsentResult, error) {
	return models.Granted(ids), nil
}

// Deny refuses every request.
type Deny struct{}

func (Deny) RequestDelete(_ context.Context, ids []int64) (models.ConsentResult, error) {
	return models.Denied(ids), nil
}

// Prompt asks on a terminal. Answers are read from lines so the prompt can
// share standard input with a REPL without stealing its input.
//
// Accepted answers: "y" or "yes" grants all, "n", "no" or an empty line
// denies all, and a comma-separated list of identifiers grants only those.
type Prompt struct {
	lines   <-chan string
	out     io.Writer
	timeout time.Duration
}

func NewPrompt(lines <-chan string, out io.Writer, timeout time.Duration) *Prompt {
	return &Prompt{lines: lines, out: out, timeout: timeout}
}

func (p *Prompt) RequestDelete(ctx context.Context, ids []int64) (models.ConsentResult, error) {
	if len(ids) == 0 {
		return models.Granted(nil), nil
	}

	fmt.Fprintf(p.out, "Permanently delete %d item(s) %s? This cannot be undone. [y/N or ids]: ",
		len(ids), formatIDs(ids))

	var timeout <-chan time.Time
	if p.timeout > 0 {
		t := time.NewTimer(p.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case line, ok := <-p.lines:
		if !ok {
			return models.Denied(ids), nil
		}
		return parseAnswer(line, ids)
	case <-timeout:
		fmt.Fprintln(p.out)
		return models.Denied(ids), common.ErrConsentTimeout
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return models.Denied(ids), ctx.Err()
	}
}

func parseAnswer(line string, ids []int64) (models.ConsentResult, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return models.Granted(ids), nil
	case "", "n", "no":
		return models.Denied(ids), nil
	}

	var granted []int64
	for _, f := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' }) {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return models.Denied(ids), fmt.Errorf("%w: unrecognised answer %q", common.ErrInvalidArgument, line)
		}
		if slices.Contains(ids, id) && !slices.Contains(granted, id) {
			granted = append(granted, id)
		}
	}
	var refused []int64
	for _, id := range ids {
		if !slices.Contains(granted, id) {
			refused = append(refused, id)
		}
	}
	return models.PartiallyGranted(granted, refused), nil
}

func formatIDs(ids []int64) string {
	const shown = 10
	parts := make([]string, 0, min(len(ids), shown))
	for i, id := range ids {
		if i == shown {
			break
		}
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	s := strings.Join(parts, ", ")
	if len(ids) > shown {
		s += fmt.Sprintf(", … (+%d)", len(ids)-shown)
	}
	return "[" + s + "]"
}
