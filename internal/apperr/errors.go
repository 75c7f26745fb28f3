// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrUnresolvableReference is returned for a reference that has no
	// title, url, upload, linked item or abbreviation text.
	ErrUnresolvableReference = errors.New("unresolvable reference")
	ErrUnknownKind           = errors.New("unknown reference kind")

	// ErrCodeSpaceExhausted means short-code issuance hit its retry bound;
	// the code length or alphabet is too small for the number of links.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
	ErrLinkExpired        = errors.New("share link expired")
)
