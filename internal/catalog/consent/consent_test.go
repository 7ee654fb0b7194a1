package consent

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPolicies(t *testing.T) {
	ids := []int64{1, 2}

	r, err := Auto{}.RequestDelete(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentGranted, r.Status)
	assert.Equal(t, ids, r.Granted)

	r, err = Deny{}.RequestDelete(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentDenied, r.Status)
	assert.Equal(t, ids, r.Refused)
}

func ask(t *testing.T, answer string, ids []int64) (models.ConsentResult, string, error) {
	t.Helper()
	lines := make(chan string, 1)
	lines <- answer
	var out bytes.Buffer
	r, err := NewPrompt(lines, &out, time.Second).RequestDelete(context.Background(), ids)
	return r, out.String(), err
}

func TestPrompt_Answers(t *testing.T) {
	ids := []int64{10, 20, 30}

	r, out, err := ask(t, "YES", ids)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentGranted, r.Status)
	assert.Contains(t, out, "Permanently delete 3 item(s) [10, 20, 30]")

	r, _, err = ask(t, "", ids)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentDenied, r.Status)

	r, _, err = ask(t, "20, 30 99", ids)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentPartiallyGranted, r.Status)
	assert.Equal(t, []int64{20, 30}, r.Granted)
	assert.Equal(t, []int64{10}, r.Refused)

	r, _, err = ask(t, "maybe", ids)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	assert.Equal(t, models.ConsentDenied, r.Status)
}

func TestPrompt_TimeoutCountsAsDenied(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(make(chan string), &out, 10*time.Millisecond)

	r, err := p.RequestDelete(context.Background(), []int64{1})
	assert.ErrorIs(t, err, common.ErrConsentTimeout)
	assert.Equal(t, models.ConsentDenied, r.Status)
}

func TestPrompt_ClosedInputAndCancel(t *testing.T) {
	closed := make(chan string)
	close(closed)
	r, err := NewPrompt(closed, &bytes.Buffer{}, time.Second).RequestDelete(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentDenied, r.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPrompt(make(chan string), &bytes.Buffer{}, 0).RequestDelete(ctx, []int64{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrompt_EmptyBatchSkipsQuestion(t *testing.T) {
	var out bytes.Buffer
	r, err := NewPrompt(nil, &out, time.Second).RequestDelete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentGranted, r.Status)
	assert.Empty(t, out.String())
}

func TestFormatIDs_Truncates(t *testing.T) {
	ids := make([]int64, 12)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	assert.Equal(t, "[1, 2, 3, 4, 5, 6, 7, 8, 9, 10, … (+2)]", formatIDs(ids))
}
