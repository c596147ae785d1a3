package model

import "errors"

var (
	// ErrPlayerNotFound is returned when a named player has no stored record.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrDeltaOverflow is returned when the change between the stored and
	// the new rating does not fit in an int64.
	ErrDeltaOverflow = errors.New("rating change overflows int64")
)
