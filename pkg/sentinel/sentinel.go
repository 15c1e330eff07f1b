package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique-key or state conflict on write
// - ErrLocked: row is claimed by another in-flight send
// - ErrAlreadySent: stage already delivered for this registration
// - ErrUnavailable: provider or resource temporarily unavailable
// - ErrPermanent: failure that will not succeed on retry (bad template, bad recipient)
// - ErrUnauthorized: credentials or session rejected
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrLocked       = errors.New("locked")
	ErrAlreadySent  = errors.New("already sent")
	ErrUnavailable  = errors.New("unavailable")
	ErrPermanent    = errors.New("permanent failure")
	ErrUnauthorized = errors.New("unauthorized")
)
