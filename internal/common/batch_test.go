package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchError_NilWhenNothingFailed(t *testing.T) {
	assert.NoError(t, NewBatchError("delete", []int64{1, 2}, nil))
	assert.NoError(t, NewBatchError("delete", nil, map[int64]error{}))
}

func TestBatchError_MessageAndUnwrap(t *testing.T) {
	err := NewBatchError("soft delete", []int64{1}, map[int64]error{
		9: ErrorNotFound,
		3: ErrCatalogUnavailable,
	})
	require.Error(t, err)

	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, []int64{3, 9}, be.FailedIDs())
	assert.Equal(t, "soft delete failed for 2 of 3 items: 3: catalog unavailable; 9: not found", err.Error())

	assert.True(t, errors.Is(err, ErrorNotFound))
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
	assert.False(t, errors.Is(err, ErrConsentDenied))
}
