// Package common defines sentinel errors shared by the store, the engines and
// the transports. Callers should match them with errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCatalogUnavailable means the catalog could not produce a complete
	// snapshot or refused an operation. The store is left untouched.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// Consent errors. A timed-out prompt counts as a refusal.
	ErrConsentDenied  = errors.New("consent denied")
	ErrConsentTimeout = errors.New("consent timed out")

	// ErrDeleteInProgress is returned for identifiers that already have a
	// permanent-delete request awaiting consent.
	ErrDeleteInProgress = errors.New("permanent delete already requested")

	// Auth errors. All of them match ErrorUnauthorized.
	ErrMissingToken = fmt.Errorf("%w: missing token", ErrorUnauthorized)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrorUnauthorized)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrorUnauthorized)
)
