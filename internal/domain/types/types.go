// Package types contains common types shared between the service layer and
// the HTTP API.
package types

import "time"

// Display modes for an event's results.
const (
	ModeComputed = "computed"
	ModeManual   = "manual"
)

// Actor identifies the user performing an operation. The identity provider
// is external; the engine trusts the manager fact it produces.
type Actor struct {
	UserID   string
	UserName string
	Manager  bool
}

// PanelRow is one displayed row of a category panel.
type PanelRow struct {
	CharacterName  string  `json:"character_name"`
	DiscordUserID  string  `json:"discord_user_id,omitempty"`
	CharacterClass string  `json:"character_class,omitempty"`
	Rank           int     `json:"rank"`
	Points         int     `json:"points"`
	Primary        float64 `json:"primary,omitempty"`
	Detail         string  `json:"detail,omitempty"`
	AuxKey         string  `json:"aux_key,omitempty"`
	Edited         bool    `json:"edited,omitempty"`
}

// Panel is one category's displayed rows.
type Panel struct {
	Key   string     `json:"key"`
	Title string     `json:"title"`
	Rows  []PanelRow `json:"rows"`
}

// PlayerTotal is one player's aggregated view.
type PlayerTotal struct {
	CharacterName  string `json:"character_name"`
	DiscordUserID  string `json:"discord_user_id,omitempty"`
	CharacterClass string `json:"character_class,omitempty"`
	Role           string `json:"role,omitempty"`
	Points         int    `json:"points"`
	Displayed      int    `json:"displayed"`
	Gold           int64  `json:"gold"`
}

// GoldSummary is the pot division view.
type GoldSummary struct {
	TotalGold      int64   `json:"total_gold"`
	SharedPool     int64   `json:"shared_pool"`
	SharedAdjusted int64   `json:"shared_adjusted"`
	ManagementPool int64   `json:"management_pool"`
	Organizer      int64   `json:"organizer"`
	Raidleader     int64   `json:"raidleader"`
	Helper         int64   `json:"helper"`
	Founder        int64   `json:"founder"`
	Guildbank      int64   `json:"guildbank"`
	GoldPerPoint   float64 `json:"gold_per_point"`
}

// Report is the complete scored view of one event.
type Report struct {
	EventID string `json:"event_id"`
	Mode    string `json:"mode"`

	Panels []Panel       `json:"panels"`
	Totals []PlayerTotal `json:"totals"`

	RaidTotal       int `json:"raid_total"`
	LegacyRaidTotal int `json:"legacy_raid_total"`

	Gold GoldSummary `json:"gold"`

	// DegradedCategories lists categories whose upstream fetch failed and
	// degraded to empty data for this computation.
	DegradedCategories []string `json:"degraded_categories,omitempty"`
}

// SnapshotStatus is the lock state view.
type SnapshotStatus struct {
	Locked       bool       `json:"locked"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	LockedByName string     `json:"locked_by_name,omitempty"`
}
