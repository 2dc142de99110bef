// Package aggregate sums category contributions into per-player and raid
// totals. It always computes from structured contribution maps, never from
// any rendered representation.
package aggregate

import (
	"sort"

	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
)

// DefaultBaseAward is the flat award for every confirmed roster player.
const DefaultBaseAward = 100

// PlayerTotal is one player's aggregated score.
type PlayerTotal struct {
	Player    model.Player
	Base      int
	Points    int // signed total including base
	Displayed int // floored at 0
}

// Totals is the aggregation result for one event.
type Totals struct {
	// Players is ordered by displayed total descending, name ascending.
	Players []PlayerTotal

	// RaidTotal sums the per-player floored totals.
	RaidTotal int

	// LegacyRaidTotal is the raid-level figure computed from the full
	// unfiltered contribution stream and floored once for the whole raid.
	// It is not algebraically identical to RaidTotal and the two are
	// deliberately not reconciled.
	LegacyRaidTotal int

	PositiveSum int
	NegativeSum int
}

// Compute aggregates all contributions plus the base award. manualPoints
// carries direct point grants keyed by canonical name; they join the
// player's total before flooring.
func Compute(ros *roster.Roster, contribs []model.Contribution, manualPoints map[string]int, baseAward int) Totals {
	perPlayer := make(map[string]int, ros.Count())
	positive, negative := 0, 0

	for _, c := range contribs {
		if !ros.Confirmed(c.Player) {
			continue // never attribute to players outside the roster
		}
		perPlayer[c.Player] += c.Points
		if c.Points > 0 {
			positive += c.Points
		} else {
			negative += -c.Points
		}
	}
	for key, pts := range manualPoints {
		if !ros.Confirmed(key) {
			continue
		}
		perPlayer[key] += pts
		if pts > 0 {
			positive += pts
		} else {
			negative += -pts
		}
	}

	players := ros.Players()
	totals := make([]PlayerTotal, 0, len(players))
	raidTotal := 0
	for _, p := range players {
		points := baseAward + perPlayer[model.Key(p.Name)]
		displayed := points
		if displayed < 0 {
			displayed = 0
		}
		raidTotal += displayed
		totals = append(totals, PlayerTotal{
			Player:    p,
			Base:      baseAward,
			Points:    points,
			Displayed: displayed,
		})
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Displayed != totals[j].Displayed {
			return totals[i].Displayed > totals[j].Displayed
		}
		return model.Key(totals[i].Player.Name) < model.Key(totals[j].Player.Name)
	})

	// Legacy raid figure: base for every player plus the raw positive and
	// negative streams, floored once at the raid level.
	legacy := len(players)*baseAward + positive - negative
	if legacy < 0 {
		legacy = 0
	}

	return Totals{
		Players:         totals,
		RaidTotal:       raidTotal,
		LegacyRaidTotal: legacy,
		PositiveSum:     positive,
		NegativeSum:     negative,
	}
}
