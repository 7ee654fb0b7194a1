package common

import (
	"fmt"
	"sort"
	"strings"
)

// BatchError reports a multi-item operation that failed for some items. The
// succeeded items were fully applied; the failed ones were left untouched.
type BatchError struct {
	Op        string
	Succeeded []int64
	Failed    map[int64]error
}

// NewBatchError returns nil when nothing failed.
func NewBatchError(op string, succeeded []int64, failed map[int64]error) error {
	if len(failed) == 0 {
		return nil
	}
	return &BatchError{Op: op, Succeeded: succeeded, Failed: failed}
}

func (e *BatchError) Error() string {
	ids := e.FailedIDs()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("%s failed for %d of %d items: %s",
		e.Op, len(ids), len(ids)+len(e.Succeeded), strings.Join(parts, "; "))
}

// Unwrap exposes the per-item causes so errors.Is matches any of them.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, id := range e.FailedIDs() {
		errs = append(errs, e.Failed[id])
	}
	return errs
}

// FailedIDs returns the failed identifiers in ascending order.
func (e *BatchError) FailedIDs() []int64 {
	ids := make([]int64, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
