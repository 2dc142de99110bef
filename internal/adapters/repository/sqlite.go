package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore implements SnapshotStore and ManualRewardStore on one SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens the SQLite database and applies embedded migrations.
func Open(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyMigrations executes embedded migrations at most once per file.
func applyMigrations(db *sql.DB) error {
	const createSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`
	if _, err := db.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var applied int
		err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, file).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		body, err := fs.ReadFile(migrationFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// Lock transitions the event to Manual mode. The lock row insert is
// conditional, so a racing second lock fails with ErrAlreadyLocked instead
// of interleaving partial writes.
func (s *SQLiteStore) Lock(ctx context.Context, eventID, byID, byName string, entries []SnapshotEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO event_locks (event_id, locked_at, locked_by_id, locked_by_name)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, time.Now().UTC().UnixMilli(), byID, byName)
	if err != nil {
		return fmt.Errorf("insert lock row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyLocked
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_entries (
			     event_id, panel_key, character_name, aux_key,
			     points_original, points_edited, details_original, details_edited,
			     ranking_number, discord_user_id, character_class, primary_numeric,
			     aux_json, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			eventID, e.PanelKey, e.CharacterName, e.AuxKey,
			e.PointsOriginal, e.PointsEdited, e.DetailsOriginal, e.DetailsEdited,
			e.RankingNumber, e.DiscordUserID, e.CharacterClass, e.PrimaryNumeric,
			e.AuxJSON); err != nil {
			return fmt.Errorf("insert snapshot entry %s/%s: %w", e.PanelKey, e.CharacterName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lock: %w", err)
	}
	return nil
}

// Unlock deletes all entries and the lock row.
func (s *SQLiteStore) Unlock(ctx context.Context, eventID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unlock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM event_locks WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete lock row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlock rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotLocked
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_entries WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("delete snapshot entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unlock: %w", err)
	}
	return nil
}

// Status returns the event's lock state.
func (s *SQLiteStore) Status(ctx context.Context, eventID string) (LockState, error) {
	var lockedAt int64
	var state LockState
	err := s.db.QueryRowContext(ctx,
		`SELECT locked_at, locked_by_id, locked_by_name FROM event_locks WHERE event_id = ?`,
		eventID).Scan(&lockedAt, &state.LockedByID, &state.LockedByName)
	if errors.Is(err, sql.ErrNoRows) {
		return LockState{}, nil
	}
	if err != nil {
		return LockState{}, fmt.Errorf("query lock state: %w", err)
	}
	state.Locked = true
	state.LockedAt = time.UnixMilli(lockedAt).UTC()
	return state, nil
}

const entryColumns = `event_id, panel_key, character_name, aux_key,
       points_original, points_edited, details_original, details_edited,
       ranking_number, discord_user_id, character_class, primary_numeric,
       aux_json, version`

func scanEntry(row interface{ Scan(...any) error }) (SnapshotEntry, error) {
	var e SnapshotEntry
	err := row.Scan(
		&e.EventID, &e.PanelKey, &e.CharacterName, &e.AuxKey,
		&e.PointsOriginal, &e.PointsEdited, &e.DetailsOriginal, &e.DetailsEdited,
		&e.RankingNumber, &e.DiscordUserID, &e.CharacterClass, &e.PrimaryNumeric,
		&e.AuxJSON, &e.Version)
	return e, err
}

// Entries returns all snapshot rows for an event.
func (s *SQLiteStore) Entries(ctx context.Context, eventID string) ([]SnapshotEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM snapshot_entries
		  WHERE event_id = ?
		  ORDER BY panel_key, ranking_number, character_name, aux_key`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot entries: %w", err)
	}
	defer rows.Close()

	var entries []SnapshotEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot entries: %w", err)
	}
	return entries, nil
}

// UpdateEntry applies an edit conditional on the entry's version.
func (s *SQLiteStore) UpdateEntry(ctx context.Context, eventID, panelKey, characterName, auxKey string, version int64, edit EntryEdit) (SnapshotEntry, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshot_entries
		    SET points_edited  = COALESCE(?, points_edited),
		        details_edited = COALESCE(?, details_edited),
		        version        = version + 1
		  WHERE event_id = ? AND panel_key = ? AND character_name = ? COLLATE NOCASE
		    AND aux_key = ? AND version = ?`,
		edit.PointsEdited, edit.DetailsEdited,
		eventID, panelKey, characterName, auxKey, version)
	if err != nil {
		return SnapshotEntry{}, fmt.Errorf("update snapshot entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return SnapshotEntry{}, fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish drift (row absent) from a lost version race.
		row := s.db.QueryRowContext(ctx,
			`SELECT `+entryColumns+` FROM snapshot_entries
			  WHERE event_id = ? AND panel_key = ? AND character_name = ? COLLATE NOCASE
			    AND aux_key = ?`,
			eventID, panelKey, characterName, auxKey)
		current, scanErr := scanEntry(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return SnapshotEntry{}, ErrEntryNotFound
		}
		if scanErr != nil {
			return SnapshotEntry{}, fmt.Errorf("reread snapshot entry: %w", scanErr)
		}
		return current, ErrVersionConflict
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM snapshot_entries
		  WHERE event_id = ? AND panel_key = ? AND character_name = ? COLLATE NOCASE
		    AND aux_key = ?`,
		eventID, panelKey, characterName, auxKey)
	updated, err := scanEntry(row)
	if err != nil {
		return SnapshotEntry{}, fmt.Errorf("reread snapshot entry: %w", err)
	}
	return updated, nil
}

// InsertEntry adds a synthesized entry to an existing snapshot.
func (s *SQLiteStore) InsertEntry(ctx context.Context, e SnapshotEntry) error {
	version := e.Version
	if version <= 0 {
		version = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshot_entries (
		     event_id, panel_key, character_name, aux_key,
		     points_original, points_edited, details_original, details_edited,
		     ranking_number, discord_user_id, character_class, primary_numeric,
		     aux_json, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.PanelKey, e.CharacterName, e.AuxKey,
		e.PointsOriginal, e.PointsEdited, e.DetailsOriginal, e.DetailsEdited,
		e.RankingNumber, e.DiscordUserID, e.CharacterClass, e.PrimaryNumeric,
		e.AuxJSON, version)
	if err != nil {
		return fmt.Errorf("insert snapshot entry: %w", err)
	}
	return nil
}

// ListRewards returns all manual rewards for an event, oldest first.
func (s *SQLiteStore) ListRewards(ctx context.Context, eventID string) ([]ManualReward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, character_name, discord_user_id, amount, is_gold,
		        description, created_by, created_at
		   FROM manual_rewards
		  WHERE event_id = ?
		  ORDER BY created_at, id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("query manual rewards: %w", err)
	}
	defer rows.Close()

	var rewards []ManualReward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manual reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manual rewards: %w", err)
	}
	return rewards, nil
}

func scanReward(row interface{ Scan(...any) error }) (ManualReward, error) {
	var r ManualReward
	var createdAt int64
	err := row.Scan(&r.ID, &r.EventID, &r.CharacterName, &r.DiscordUserID,
		&r.Amount, &r.IsGold, &r.Description, &r.CreatedBy, &createdAt)
	if err != nil {
		return ManualReward{}, err
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	return r, nil
}

// GetReward returns one manual reward by id.
func (s *SQLiteStore) GetReward(ctx context.Context, id string) (ManualReward, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, character_name, discord_user_id, amount, is_gold,
		        description, created_by, created_at
		   FROM manual_rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ManualReward{}, ErrRewardNotFound
	}
	if err != nil {
		return ManualReward{}, fmt.Errorf("query manual reward: %w", err)
	}
	return r, nil
}

// CreateReward inserts a manual reward.
func (s *SQLiteStore) CreateReward(ctx context.Context, r ManualReward) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manual_rewards (id, event_id, character_name, discord_user_id,
		        amount, is_gold, description, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EventID, r.CharacterName, r.DiscordUserID,
		r.Amount, r.IsGold, r.Description, r.CreatedBy, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert manual reward: %w", err)
	}
	return nil
}

// UpdateReward replaces the mutable fields of a manual reward.
func (s *SQLiteStore) UpdateReward(ctx context.Context, r ManualReward) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE manual_rewards
		    SET character_name = ?, discord_user_id = ?, amount = ?,
		        is_gold = ?, description = ?
		  WHERE id = ?`,
		r.CharacterName, r.DiscordUserID, r.Amount, r.IsGold, r.Description, r.ID)
	if err != nil {
		return fmt.Errorf("update manual reward: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reward rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// DeleteReward removes a manual reward by id.
func (s *SQLiteStore) DeleteReward(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM manual_rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete manual reward: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reward rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRewardNotFound
	}
	return nil
}
