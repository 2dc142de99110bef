// Package repository persists snapshot state and manual rewards.
package repository

import (
	"context"
	"time"
)

// SnapshotEntry is one frozen row of a category panel. Created when a
// snapshot is locked, mutated only through the versioned update, deleted
// only by a full unlock.
type SnapshotEntry struct {
	EventID       string
	PanelKey      string
	CharacterName string

	// AuxKey disambiguates panels with multiple rows per player, e.g.
	// totem types. Empty for single-row panels.
	AuxKey string

	PointsOriginal  int
	PointsEdited    *int // nil means "use original"
	DetailsOriginal string
	DetailsEdited   *string
	RankingNumber   int
	DiscordUserID   string
	CharacterClass  string
	PrimaryNumeric  float64
	AuxJSON         string

	// Version increments on every applied edit; updates are conditional
	// on the caller's version so concurrent edits cannot be lost.
	Version int64
}

// EffectivePoints returns the edited value when present, else the original.
func (e SnapshotEntry) EffectivePoints() int {
	if e.PointsEdited != nil {
		return *e.PointsEdited
	}
	return e.PointsOriginal
}

// EffectiveDetails returns the edited details when present, else the original.
func (e SnapshotEntry) EffectiveDetails() string {
	if e.DetailsEdited != nil {
		return *e.DetailsEdited
	}
	return e.DetailsOriginal
}

// Edited reports whether any field of this entry was overridden.
func (e SnapshotEntry) Edited() bool {
	return e.PointsEdited != nil || e.DetailsEdited != nil
}

// EntryEdit is the mutable part of a snapshot entry upsert.
type EntryEdit struct {
	PointsEdited  *int
	DetailsEdited *string
}

// LockState describes an event's snapshot mode.
type LockState struct {
	Locked       bool
	LockedAt     time.Time
	LockedByID   string
	LockedByName string
}

// SnapshotStore persists snapshot entries and the per-event lock state.
// Lock and Unlock are conditional writes: a racing second attempt fails
// cleanly with ErrAlreadyLocked / ErrNotLocked instead of interleaving.
type SnapshotStore interface {
	// Lock transitions the event to Manual mode and stores the captured
	// entries atomically. Fails with ErrAlreadyLocked if already locked.
	Lock(ctx context.Context, eventID string, byID, byName string, entries []SnapshotEntry) error

	// Unlock deletes all entries and the lock row, returning the event to
	// Computed mode. Fails with ErrNotLocked if not locked.
	Unlock(ctx context.Context, eventID string) error

	// Status returns the event's lock state; an unlocked event yields the
	// zero LockState.
	Status(ctx context.Context, eventID string) (LockState, error)

	// Entries returns all snapshot rows for a locked event.
	Entries(ctx context.Context, eventID string) ([]SnapshotEntry, error)

	// UpdateEntry applies an edit conditional on the entry's version.
	// Fails with ErrEntryNotFound when the row is absent (snapshot drift)
	// and ErrVersionConflict when the version moved.
	UpdateEntry(ctx context.Context, eventID, panelKey, characterName, auxKey string, version int64, edit EntryEdit) (SnapshotEntry, error)

	// InsertEntry adds a single synthesized entry to an existing
	// snapshot; used by the drift fallback.
	InsertEntry(ctx context.Context, entry SnapshotEntry) error
}

// ManualReward is a flat grant of points or gold outside the computed
// scoring. IsGold is a first-class field; the legacy free-text marker only
// exists as a one-time data migration.
type ManualReward struct {
	ID            string
	EventID       string
	CharacterName string
	DiscordUserID string
	Amount        int64
	IsGold        bool
	Description   string
	CreatedBy     string
	CreatedAt     time.Time
}

// ManualRewardStore persists manual reward grants.
type ManualRewardStore interface {
	ListRewards(ctx context.Context, eventID string) ([]ManualReward, error)
	GetReward(ctx context.Context, id string) (ManualReward, error)
	CreateReward(ctx context.Context, r ManualReward) error
	UpdateReward(ctx context.Context, r ManualReward) error
	DeleteReward(ctx context.Context, id string) error
}
