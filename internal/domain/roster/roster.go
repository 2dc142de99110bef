// Package roster determines the canonical set of scorable players for an
// event and excludes non-player entities such as pets, totems and traps.
package roster

import (
	"regexp"

	"github.com/tovren/raidledger/internal/domain/model"
)

// nonPlayerPattern matches entities that show up in combat datasets but are
// not scorable players: stale renames, totems, wards, traps and decoys.
// Whole-word, case-insensitive.
var nonPlayerPattern = regexp.MustCompile(`(?i)\b(zzold|totems?|wards?|traps?|dumm(?:y|ies)|battle chicken)\b`)

// IsNonPlayer reports whether a dataset name belongs to a non-player entity.
func IsNonPlayer(name string) bool {
	return nonPlayerPattern.MatchString(name)
}

// Roster is the eligible player set and attribute lookup for one event.
type Roster struct {
	players   map[string]model.Player // canonical name key -> player
	byDiscord map[string]string       // discord id -> canonical name key

	hasRoleMap      bool
	detectedHealers map[string]bool
}

// Build filters the roster dataset down to confirmed players and attaches
// role information. roles may be nil when the primary-role endpoint was
// unavailable; healingRows feeds the detected-healer fallback used in that
// case.
func Build(rosterRows []model.Row, roles map[string]model.Role, healingRows []model.Row) *Roster {
	r := &Roster{
		players:         make(map[string]model.Player),
		byDiscord:       make(map[string]string),
		hasRoleMap:      roles != nil,
		detectedHealers: make(map[string]bool),
	}

	for _, row := range rosterRows {
		if row.Name == "" || IsNonPlayer(row.Name) {
			continue
		}
		key := model.Key(row.Name)
		p := model.Player{
			Name:      row.Name,
			DiscordID: row.DiscordID,
			Class:     row.Class,
			Role:      model.RoleUnknown,
		}
		if roles != nil {
			if role, ok := roles[key]; ok {
				p.Role = role
			}
		} else if row.Role != "" {
			p.Role = model.ParseRole(row.Role)
		}
		r.players[key] = p
		if row.DiscordID != "" {
			r.byDiscord[row.DiscordID] = key
		}
	}

	// Without a primary-role map, anyone with recorded healing counts as a
	// healer for healer-gated categories.
	if roles == nil {
		for _, row := range healingRows {
			if row.Value > 0 {
				r.detectedHealers[model.Key(row.Name)] = true
			}
		}
	}

	return r
}

// Confirmed reports whether a name belongs to a roster player. Contributions
// referencing unconfirmed names are dropped, not attributed.
func (r *Roster) Confirmed(name string) bool {
	_, ok := r.players[model.Key(name)]
	return ok
}

// Resolve finds a player by discord id first, then by name.
func (r *Roster) Resolve(name, discordID string) (model.Player, bool) {
	if discordID != "" {
		if key, ok := r.byDiscord[discordID]; ok {
			return r.players[key], true
		}
	}
	p, ok := r.players[model.Key(name)]
	return p, ok
}

// Lookup returns the player record for a name.
func (r *Roster) Lookup(name string) (model.Player, bool) {
	p, ok := r.players[model.Key(name)]
	return p, ok
}

// Players returns all confirmed players. Order is unspecified.
func (r *Roster) Players() []model.Player {
	out := make([]model.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// Count returns the number of confirmed players.
func (r *Roster) Count() int {
	return len(r.players)
}

// HasRoleMap reports whether a primary-role mapping exists for this event.
// Some categories are gated entirely on this.
func (r *Roster) HasRoleMap() bool {
	return r.hasRoleMap
}

// Role returns the primary role recorded for a name.
func (r *Roster) Role(name string) model.Role {
	if p, ok := r.players[model.Key(name)]; ok {
		return p.Role
	}
	return model.RoleUnknown
}

// IsHealer reports whether a player passes the healer gate: primary role
// healer, or the detected-healer fallback when no role map exists.
func (r *Roster) IsHealer(name string) bool {
	key := model.Key(name)
	p, ok := r.players[key]
	if !ok {
		return false
	}
	if r.hasRoleMap {
		return p.Role == model.RoleHealer
	}
	return p.Role == model.RoleHealer || r.detectedHealers[key]
}
