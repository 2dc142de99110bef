// Package model contains domain models passed between layers.
package model

import "strings"

// Role classifies a player's primary assignment for the raid.
type Role string

// Known primary roles. Unknown covers players missing from the role map.
const (
	RoleTank    Role = "tank"
	RoleHealer  Role = "healer"
	RoleDPS     Role = "dps"
	RoleUnknown Role = "unknown"
)

// ParseRole normalizes an upstream role string.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tank":
		return RoleTank
	case "healer", "heal":
		return RoleHealer
	case "dps", "damage":
		return RoleDPS
	default:
		return RoleUnknown
	}
}

// Player is one scorable raid participant. Identity for score attribution is
// the character name or the discord id; some datasets only carry a name.
type Player struct {
	Name      string
	DiscordID string
	Class     string
	Role      Role
}

// Key returns the canonical attribution key for a character name.
// Names are unique per event, case-insensitive.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Row is one record of a category dataset as delivered by an upstream
// analysis service. Fields beyond Name are optional per category.
type Row struct {
	Name      string             `json:"name"`
	DiscordID string             `json:"discord_id,omitempty"`
	Class     string             `json:"class,omitempty"`
	Role      string             `json:"role,omitempty"`
	Value     float64            `json:"value"`
	Secondary float64            `json:"secondary,omitempty"`
	ItemKey   string             `json:"item_key,omitempty"`
	Counts    map[string]float64 `json:"counts,omitempty"`
}

// Settings holds per-category numeric configuration delivered alongside a
// dataset. Missing keys fall back to the category's hard-coded defaults.
type Settings struct {
	Numbers map[string]float64
	Tables  map[string][]int
	Weights map[string]int
}

// Number returns a numeric setting or def when absent.
func (s Settings) Number(key string, def float64) float64 {
	if v, ok := s.Numbers[key]; ok {
		return v
	}
	return def
}

// Table returns a point table setting or def when absent or empty.
func (s Settings) Table(key string, def []int) []int {
	if t, ok := s.Tables[key]; ok && len(t) > 0 {
		return t
	}
	return def
}

// Weight returns a per-subtype weight or def when absent.
func (s Settings) Weight(key string, def int) int {
	if w, ok := s.Weights[key]; ok {
		return w
	}
	return def
}

// Dataset is one category's raw data plus settings for one event.
// A degraded dataset has no rows and empty settings; scoring treats it the
// same as a category in which nobody earned anything.
type Dataset struct {
	Category string
	Rows     []Row
	Settings Settings
	Degraded bool
}

// EventData bundles everything the scoring pipeline needs for one event.
// Immutable per request; never cached across requests.
type EventData struct {
	EventID    string
	Roster     Dataset
	Categories map[string]Dataset

	// Roles maps canonical name keys to primary roles. Nil means the
	// primary-role endpoint was unavailable for this event, which gates
	// some categories entirely.
	Roles map[string]Role

	TotalGold     int64
	RaidleaderPct int
}

// Category returns the named dataset or an empty degraded one.
func (d *EventData) Category(key string) Dataset {
	if ds, ok := d.Categories[key]; ok {
		return ds
	}
	return Dataset{Category: key, Degraded: true}
}

// Contribution is one category's signed point award for one player, with the
// raw counters that explain it.
type Contribution struct {
	Category string
	Player   string // canonical name key
	Points   int
	Detail   string
	ItemKey  string // disambiguator for categories with multiple rows per player
	Raw      map[string]float64
}
