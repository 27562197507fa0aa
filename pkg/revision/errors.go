package revision

import "errors"

// Sentinel errors for scope and registration management. These surface
// programmer errors, not retryable runtime conditions: callers are expected
// to fix the call site, not to retry.
//
// - ErrNoActiveScope: a current-scope accessor was called outside any scope
// - ErrAlreadyRegistered: a type was registered twice with one registry
// - ErrNotRegistered: lookup or unregister of a type never registered
// - ErrSlugTaken: a registry slug is already claimed by a live registry
// - ErrUnknownRegistry: no registry exists for the given slug
// - ErrBadRelation: a followed relation is misconfigured for its entity
var (
	ErrNoActiveScope     = errors.New("no active revision scope")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
	ErrSlugTaken         = errors.New("registry slug already claimed")
	ErrUnknownRegistry   = errors.New("unknown registry slug")
	ErrBadRelation       = errors.New("bad relation")
)
