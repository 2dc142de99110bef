package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/tovren/raidledger/internal/adapters/notify"
	"github.com/tovren/raidledger/internal/adapters/repository"
	"github.com/tovren/raidledger/internal/domain/types"
	"github.com/tovren/raidledger/pkg/logger"
	"github.com/tovren/raidledger/pkg/metrics"
)

// EntryUpsert is one snapshot edit. The Current* fields carry the caller's
// currently-displayed values; they feed the drift fallback that
// synthesizes a missing entry.
type EntryUpsert struct {
	PanelKey      string
	CharacterName string
	AuxKey        string
	Version       int64

	PointsEdited  *int
	DetailsEdited *string

	CurrentPoints  int
	CurrentDetails string
	CurrentRank    int
	CurrentPrimary float64
	DiscordUserID  string
	CharacterClass string
}

// UpsertResult reports an applied edit, or the rebuild that displaced it.
type UpsertResult struct {
	Entry   repository.SnapshotEntry
	Rebuilt bool
}

// LockSnapshot transitions an event from Computed to Manual mode, freezing
// every currently-displayed row across all category panels. When the
// caller supplies no entries, the capture is rebuilt from a fresh live
// computation. One-way in the sense that unlocking discards all edits, so
// callers confirm before invoking this.
func (s *Service) LockSnapshot(ctx context.Context, eventID string, actor types.Actor, entries []repository.SnapshotEntry) error {
	if !actor.Manager {
		return ErrPermissionDenied
	}

	release := s.locks.acquire(eventID)
	defer release()

	if len(entries) == 0 {
		report, _, _, err := s.computeLive(ctx, eventID)
		if err != nil {
			return fmt.Errorf("capture for lock: %w", err)
		}
		entries = captureEntries(eventID, report)
	}
	for i := range entries {
		entries[i].EventID = eventID
	}

	if err := s.snapshots.Lock(ctx, eventID, actor.UserID, actor.UserName, entries); err != nil {
		if errors.Is(err, repository.ErrAlreadyLocked) {
			metrics.RecordLockConflict()
		}
		return err
	}

	metrics.RecordSnapshotLock()
	s.logger.Info(ctx, "snapshot locked",
		logger.String("event", eventID),
		logger.String("by", actor.UserName),
		logger.Int("entries", len(entries)),
	)
	s.publish(ctx, notify.TypeSnapshotLocked, eventID, actor)
	return nil
}

// UnlockSnapshot reverts an event to Computed mode, discarding all
// snapshot entries.
func (s *Service) UnlockSnapshot(ctx context.Context, eventID string, actor types.Actor) error {
	if !actor.Manager {
		return ErrPermissionDenied
	}

	release := s.locks.acquire(eventID)
	defer release()

	if err := s.snapshots.Unlock(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotLocked) {
			metrics.RecordLockConflict()
		}
		return err
	}

	metrics.RecordSnapshotUnlock()
	s.logger.Info(ctx, "snapshot unlocked",
		logger.String("event", eventID),
		logger.String("by", actor.UserName),
	)
	s.publish(ctx, notify.TypeSnapshotUnlocked, eventID, actor)
	return nil
}

// UpsertEntry applies one snapshot edit. When the targeted row is absent
// (drift from a rebuilt view) it is synthesized from the caller's current
// display values and the edit retried once; if that still fails the whole
// snapshot is rebuilt from the live view and ErrSnapshotRebuilt returned
// without applying the edit.
func (s *Service) UpsertEntry(ctx context.Context, eventID string, actor types.Actor, up EntryUpsert) (UpsertResult, error) {
	if !actor.Manager {
		return UpsertResult{}, ErrPermissionDenied
	}
	if up.PanelKey == "" || up.CharacterName == "" {
		return UpsertResult{}, fmt.Errorf("%w: panel key and character name are required", ErrInvalidEdit)
	}
	if up.PointsEdited == nil && up.DetailsEdited == nil {
		return UpsertResult{}, fmt.Errorf("%w: nothing to edit", ErrInvalidEdit)
	}

	release := s.locks.acquire(eventID)
	defer release()

	state, err := s.snapshots.Status(ctx, eventID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("snapshot status: %w", err)
	}
	if !state.Locked {
		return UpsertResult{}, repository.ErrNotLocked
	}

	edit := repository.EntryEdit{PointsEdited: up.PointsEdited, DetailsEdited: up.DetailsEdited}

	entry, err := s.snapshots.UpdateEntry(ctx, eventID, up.PanelKey, up.CharacterName, up.AuxKey, up.Version, edit)
	if err == nil {
		metrics.RecordEntryEdit()
		s.publish(ctx, notify.TypeEntryEdited, eventID, actor)
		return UpsertResult{Entry: entry}, nil
	}
	if !errors.Is(err, repository.ErrEntryNotFound) {
		return UpsertResult{Entry: entry}, err
	}

	// Fallback 1: the row drifted away; synthesize it from the caller's
	// current display values and retry the edit once.
	metrics.RecordDriftFallback("synthesize")
	s.logger.Warn(ctx, "snapshot entry missing, synthesizing from current view",
		logger.String("event", eventID),
		logger.String("panel", up.PanelKey),
		logger.String("character", up.CharacterName),
	)

	synth := repository.SnapshotEntry{
		EventID:         eventID,
		PanelKey:        up.PanelKey,
		CharacterName:   up.CharacterName,
		AuxKey:          up.AuxKey,
		PointsOriginal:  up.CurrentPoints,
		DetailsOriginal: up.CurrentDetails,
		RankingNumber:   up.CurrentRank,
		DiscordUserID:   up.DiscordUserID,
		CharacterClass:  up.CharacterClass,
		PrimaryNumeric:  up.CurrentPrimary,
		AuxJSON:         auxJSON(up.AuxKey),
		Version:         1,
	}
	if insertErr := s.snapshots.InsertEntry(ctx, synth); insertErr == nil {
		entry, retryErr := s.snapshots.UpdateEntry(ctx, eventID, up.PanelKey, up.CharacterName, up.AuxKey, 1, edit)
		if retryErr == nil {
			metrics.RecordEntryEdit()
			s.publish(ctx, notify.TypeEntryEdited, eventID, actor)
			return UpsertResult{Entry: entry}, nil
		}
	}

	// Fallback 2: rebuild the entire snapshot from the live view. The
	// triggering edit is not reapplied; the caller retries once the
	// rebuild completes. Runs on a detached context so an abandoned
	// request cannot leave the shared snapshot half built.
	metrics.RecordDriftFallback("relock")
	if err := s.relockFromLive(context.WithoutCancel(ctx), eventID, actor); err != nil {
		return UpsertResult{}, fmt.Errorf("snapshot rebuild failed: %w", err)
	}
	return UpsertResult{Rebuilt: true}, ErrSnapshotRebuilt
}

// relockFromLive replaces the snapshot with a capture of the current live
// computation. The caller already holds the event mutex.
func (s *Service) relockFromLive(ctx context.Context, eventID string, actor types.Actor) error {
	report, _, _, err := s.computeLive(ctx, eventID)
	if err != nil {
		return fmt.Errorf("recompute for relock: %w", err)
	}
	entries := captureEntries(eventID, report)

	if err := s.snapshots.Unlock(ctx, eventID); err != nil && !errors.Is(err, repository.ErrNotLocked) {
		return fmt.Errorf("unlock for relock: %w", err)
	}
	if err := s.snapshots.Lock(ctx, eventID, actor.UserID, actor.UserName, entries); err != nil {
		return fmt.Errorf("relock: %w", err)
	}

	metrics.RecordSnapshotRebuild()
	s.logger.Warn(ctx, "snapshot rebuilt from live view",
		logger.String("event", eventID),
		logger.String("by", actor.UserName),
		logger.Int("entries", len(entries)),
	)
	s.publish(ctx, notify.TypeSnapshotLocked, eventID, actor)
	return nil
}
