package app

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrPermissionDenied rejects mutations from non-manager actors.
	ErrPermissionDenied = errors.New("raid manager permission required")

	// ErrInvalidEdit rejects upserts with an empty identity key or no
	// edited values; nothing is persisted.
	ErrInvalidEdit = errors.New("invalid snapshot edit")

	// ErrSnapshotRebuilt signals that drift forced a full snapshot
	// rebuild; the triggering edit was not applied and the caller must
	// retry against the rebuilt snapshot.
	ErrSnapshotRebuilt = errors.New("snapshot rebuilt from current view; retry the edit")
)
