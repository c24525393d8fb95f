package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These describe factual states about stored data, not validation failures:
// - ErrNotFound: record or user does not exist in the store
// - ErrConflict: a conditional write lost against a concurrent writer
// - ErrAlreadyExists: unique constraint (e.g. provenance pair) already taken
// - ErrUnavailable: backing store temporarily unreachable
//
// For bad input use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnavailable   = errors.New("unavailable")
)
