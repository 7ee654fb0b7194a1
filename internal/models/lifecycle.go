package models

import (
	"time"

	"github.com/google/uuid"
)

// ConsentStatus is the outcome of a permanent-delete confirmation round-trip.
type ConsentStatus int

const (
	ConsentDenied ConsentStatus = iota
	ConsentGranted
	ConsentPartiallyGranted
)

func (s ConsentStatus) String() string {
	switch s {
	case ConsentGranted:
		return "granted"
	case ConsentPartiallyGranted:
		return "partially_granted"
	default:
		return "denied"
	}
}

func (s ConsentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConsentResult carries the user's answer for a batch of identifiers.
type ConsentResult struct {
	Status  ConsentStatus
	Granted []int64
	Refused []int64
}

// Granted approves every identifier in the batch.
func Granted(ids []int64) ConsentResult {
	return ConsentResult{Status: ConsentGranted, Granted: append([]int64(nil), ids...)}
}

// Denied refuses the whole batch.
func Denied(ids []int64) ConsentResult {
	return ConsentResult{Status: ConsentDenied, Refused: append([]int64(nil), ids...)}
}

// PartiallyGranted approves some identifiers and refuses the rest.
func PartiallyGranted(granted, refused []int64) ConsentResult {
	if len(refused) == 0 {
		return Granted(granted)
	}
	if len(granted) == 0 {
		return Denied(refused)
	}
	return ConsentResult{
		Status:  ConsentPartiallyGranted,
		Granted: append([]int64(nil), granted...),
		Refused: append([]int64(nil), refused...),
	}
}

// SyncReport summarises one reconciliation run.
type SyncReport struct {
	RunID      uuid.UUID `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Seen       int       `json:"seen"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Removed    int       `json:"removed"`
	Skipped    int       `json:"skipped"`
	// Coalesced is set for callers that joined a run already in flight.
	Coalesced bool `json:"coalesced"`
}

// PermanentDeleteReport describes what happened to each identifier of a
// permanent-delete request.
type PermanentDeleteReport struct {
	Consent ConsentStatus `json:"consent"`
	// Deleted rows are gone from both the catalog and the store.
	Deleted []int64 `json:"deleted"`
	// Pending rows are gone from the catalog but their local row removal
	// failed and is journaled for retry.
	Pending []int64 `json:"pending,omitempty"`
	// Failed maps identifiers to the reason they were left untouched.
	Failed map[int64]string `json:"failed,omitempty"`
}
