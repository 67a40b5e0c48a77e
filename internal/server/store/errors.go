package store

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	ErrNotOwned = errors.New("record owned by another user")
	// ErrStaleVersion is returned by an update whose incoming version is no
	// longer newer than the stored one.
	ErrStaleVersion = errors.New("stored version is not older than the update")
)
