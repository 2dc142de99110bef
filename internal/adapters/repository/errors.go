package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrAlreadyLocked   = errors.New("event snapshot already locked")
	ErrNotLocked       = errors.New("event snapshot not locked")
	ErrEntryNotFound   = errors.New("snapshot entry not found")
	ErrVersionConflict = errors.New("snapshot entry version conflict")
	ErrRewardNotFound  = errors.New("manual reward not found")
)
