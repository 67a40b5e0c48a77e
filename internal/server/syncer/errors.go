package syncer

import "errors"

var (
	// ErrInvalidRequest marks a request rejected before any write happened.
	ErrInvalidRequest = errors.New("invalid sync request")

	ErrCollectionNotOwned = errors.New("collection not found or not owned by user")
	ErrTagNotOwned        = errors.New("tag not found or not owned by user")
)
