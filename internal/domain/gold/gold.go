// Package gold splits a raid's reward pool into shared and management pools
// and derives per-player gold from point totals.
package gold

import (
	"math"

	"github.com/tovren/raidledger/internal/domain/aggregate"
	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
)

// Fixed distribution percentages.
const (
	managementPct     = 15
	organizerBasePct  = 6
	helperPct         = 3
	founderPct        = 2
	raidleaderBasePct = 4
	MinRaidleaderPct  = 0
	MaxRaidleaderPct  = 10
)

// Split is the pot division for one event. All amounts are whole gold.
type Split struct {
	TotalGold  int64
	Shared     int64
	Management int64

	Organizer  int64
	Raidleader int64
	Helper     int64
	Founder    int64
	Guildbank  int64
}

// SplitPot divides totalGold into the shared pool and the management pool
// with its role-based sub-splits. raidleaderPct outside [0,10] is clamped.
//
// The raidleader percentage floats around its base of 4: a deficit below 4
// is diverted to the guildbank, an excess above 4 comes out of the
// organizer's share (floored at 0). Rounding remainder from the floor
// divisions goes to the organizer when it still has a share, else the
// guildbank, else the raidleader.
func SplitPot(totalGold int64, raidleaderPct int) Split {
	if totalGold < 0 {
		totalGold = 0
	}
	if raidleaderPct < MinRaidleaderPct {
		raidleaderPct = MinRaidleaderPct
	}
	if raidleaderPct > MaxRaidleaderPct {
		raidleaderPct = MaxRaidleaderPct
	}

	organizerPct := organizerBasePct
	guildbankPct := 0
	switch {
	case raidleaderPct < raidleaderBasePct:
		guildbankPct = raidleaderBasePct - raidleaderPct
	case raidleaderPct > raidleaderBasePct:
		organizerPct -= raidleaderPct - raidleaderBasePct
		if organizerPct < 0 {
			organizerPct = 0
		}
	}

	pctAmount := func(pct int) int64 {
		return totalGold * int64(pct) / 100
	}

	s := Split{
		TotalGold:  totalGold,
		Management: pctAmount(managementPct),
		Organizer:  pctAmount(organizerPct),
		Raidleader: pctAmount(raidleaderPct),
		Helper:     pctAmount(helperPct),
		Founder:    pctAmount(founderPct),
		Guildbank:  pctAmount(guildbankPct),
	}
	s.Shared = totalGold - s.Management

	// The floor divisions can leave the sub-splits short of the pool.
	remainder := s.Management - (s.Organizer + s.Raidleader + s.Helper + s.Founder + s.Guildbank)
	switch {
	case organizerPct > 0:
		s.Organizer += remainder
	case guildbankPct > 0:
		s.Guildbank += remainder
	default:
		s.Raidleader += remainder
	}

	return s
}

// DirectGrant is a manually granted flat gold amount that bypasses the
// points-proportional distribution.
type DirectGrant struct {
	CharacterName string
	DiscordID     string
	Amount        int64
}

// Distribution is the per-player gold result for one event.
type Distribution struct {
	Split          Split
	SharedAdjusted int64
	GoldPerPoint   float64

	// PlayerGold is keyed by canonical name.
	PlayerGold map[string]int64
}

// Distribute derives per-player gold. Direct grants are subtracted from the
// shared pool up front and paid on top of the points-proportional share,
// matched by discord id first, then by character name.
func Distribute(split Split, totals aggregate.Totals, ros *roster.Roster, grants []DirectGrant) Distribution {
	directByPlayer := make(map[string]int64)
	var directTotal int64
	for _, g := range grants {
		directTotal += g.Amount
		if p, ok := ros.Resolve(g.CharacterName, g.DiscordID); ok {
			directByPlayer[model.Key(p.Name)] += g.Amount
		}
	}

	adjusted := split.Shared - directTotal
	if adjusted < 0 {
		adjusted = 0
	}

	goldPerPoint := 0.0
	if totals.RaidTotal > 0 {
		goldPerPoint = float64(adjusted) / float64(totals.RaidTotal)
	}

	playerGold := make(map[string]int64, len(totals.Players))
	for _, pt := range totals.Players {
		key := model.Key(pt.Player.Name)
		playerGold[key] = int64(math.Floor(float64(pt.Displayed)*goldPerPoint)) + directByPlayer[key]
	}

	return Distribution{
		Split:          split,
		SharedAdjusted: adjusted,
		GoldPerPoint:   goldPerPoint,
		PlayerGold:     playerGold,
	}
}
