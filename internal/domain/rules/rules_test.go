package rules_test

import (
	"testing"

	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
	"github.com/tovren/raidledger/internal/domain/rules"
	. "github.com/smartystreets/goconvey/convey"
)

func testRoster() *roster.Roster {
	rows := []model.Row{
		{Name: "Thorgar", DiscordID: "d1", Class: "warrior"},
		{Name: "Vexia", DiscordID: "d2", Class: "mage"},
		{Name: "Krugash", DiscordID: "d3", Class: "rogue"},
		{Name: "Elowen", DiscordID: "d4", Class: "priest"},
		{Name: "Morwenna", DiscordID: "d5", Class: "druid"},
	}
	roles := map[string]model.Role{
		"thorgar":  model.RoleTank,
		"vexia":    model.RoleDPS,
		"krugash":  model.RoleDPS,
		"elowen":   model.RoleHealer,
		"morwenna": model.RoleHealer,
	}
	return roster.Build(rows, roles, nil)
}

func findContribution(contribs []model.Contribution, player string) (model.Contribution, bool) {
	for _, c := range contribs {
		if c.Player == player {
			return c, true
		}
	}
	return model.Contribution{}, false
}

func score(key string, ds model.Dataset, ros *roster.Roster) []model.Contribution {
	for _, cat := range rules.Catalog() {
		if cat.Key == key {
			ds.Category = key
			return cat.Score(ds, ros)
		}
	}
	return nil
}

func TestRankTable(t *testing.T) {
	Convey("Given a damage dataset", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 500000},
			{Name: "Krugash", Value: 400000},
			{Name: "Thorgar", Value: 300000},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyDamage, ds, ros)

			Convey("Then ranks map onto the point table", func() {
				So(contribs, ShouldHaveLength, 3)
				So(contribs[0].Player, ShouldEqual, "vexia")
				So(contribs[0].Points, ShouldEqual, 80)
				So(contribs[1].Player, ShouldEqual, "krugash")
				So(contribs[1].Points, ShouldEqual, 70)
				So(contribs[2].Player, ShouldEqual, "thorgar")
				So(contribs[2].Points, ShouldEqual, 55)
			})
		})

		Convey("When a healer appears in the damage data", func() {
			ds.Rows = append(ds.Rows, model.Row{Name: "Elowen", Value: 600000})
			contribs := score(rules.KeyDamage, ds, ros)

			Convey("Then the healer is excluded from the ranking", func() {
				_, found := findContribution(contribs, "elowen")
				So(found, ShouldBeFalse)
				So(contribs[0].Player, ShouldEqual, "vexia")
			})
		})

		Convey("When an unconfirmed name appears", func() {
			ds.Rows = append(ds.Rows, model.Row{Name: "Stranger", Value: 900000})
			contribs := score(rules.KeyDamage, ds, ros)

			Convey("Then it is dropped, not attributed", func() {
				_, found := findContribution(contribs, "stranger")
				So(found, ShouldBeFalse)
			})
		})

		Convey("When duplicate rows exist for one name", func() {
			ds.Rows = append(ds.Rows, model.Row{Name: "VEXIA", Value: 1})
			contribs := score(rules.KeyDamage, ds, ros)

			Convey("Then the first row wins", func() {
				c, found := findContribution(contribs, "vexia")
				So(found, ShouldBeTrue)
				So(c.Points, ShouldEqual, 80)
				So(contribs, ShouldHaveLength, 3)
			})
		})

		Convey("When more players rank than the table has slots", func() {
			short := ds
			short.Settings = model.Settings{Tables: map[string][]int{"table": {80, 70}}}
			contribs := score(rules.KeyDamage, short, ros)

			Convey("Then ranks beyond the table score zero", func() {
				So(contribs[2].Points, ShouldEqual, 0)
			})
		})
	})
}

func TestMarginBonus(t *testing.T) {
	Convey("Given god gamer dps data", t, func() {
		ros := testRoster()

		Convey("When the gap reaches the high threshold", func() {
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Value: 700000},
				{Name: "Krugash", Value: 450000},
			}}
			contribs := score(rules.KeyGodGamerDPS, ds, ros)

			Convey("Then the leader gets the high award", func() {
				So(contribs, ShouldHaveLength, 1)
				So(contribs[0].Player, ShouldEqual, "vexia")
				So(contribs[0].Points, ShouldEqual, 30)
			})
		})

		Convey("When the gap only reaches the low threshold", func() {
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Value: 550000},
				{Name: "Krugash", Value: 450000},
			}}
			contribs := score(rules.KeyGodGamerDPS, ds, ros)

			Convey("Then the leader gets the low award", func() {
				So(contribs, ShouldHaveLength, 1)
				So(contribs[0].Points, ShouldEqual, 15)
			})
		})

		Convey("When the gap is below both thresholds", func() {
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Value: 500000},
				{Name: "Krugash", Value: 450000},
			}}
			contribs := score(rules.KeyGodGamerDPS, ds, ros)

			Convey("Then nobody is awarded", func() {
				So(contribs, ShouldBeEmpty)
			})
		})

		Convey("When only one player qualifies", func() {
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Value: 900000},
			}}
			contribs := score(rules.KeyGodGamerDPS, ds, ros)

			Convey("Then no bonus is possible", func() {
				So(contribs, ShouldBeEmpty)
			})
		})
	})
}

func TestDivisorLinear(t *testing.T) {
	Convey("Given interrupt counts", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 7},
			{Name: "Krugash", Value: 30},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyInterrupts, ds, ros)

			Convey("Then points scale by whole divisions and cap", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, 10) // floor(7/3)*5
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, 20) // capped
			})
		})
	})
}

func TestAverageRelativeTiers(t *testing.T) {
	Convey("Given sunder armor data", t, func() {
		ros := testRoster()

		Convey("When players spread around the average", func() {
			// Average is 100.
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Value: 130},
				{Name: "Krugash", Value: 100},
				{Name: "Elowen", Value: 70},
				{Name: "Morwenna", Value: 100},
			}}
			contribs := score(rules.KeySunderArmor, ds, ros)

			Convey("Then tiers map percent-of-average to signed points", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, 10) // 130%
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, 5) // 100%
				c, _ = findContribution(contribs, "elowen")
				So(c.Points, ShouldEqual, -5) // 70% lands in the 50..75 tier
			})
		})

		Convey("When a player sits between 75% and 100% of the average", func() {
			// Average is 100.
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Value: 120},
				{Name: "Krugash", Value: 100},
				{Name: "Elowen", Value: 80},
				{Name: "Morwenna", Value: 100},
			}}
			contribs := score(rules.KeySunderArmor, ds, ros)

			Convey("Then the neutral tier applies", func() {
				c, _ := findContribution(contribs, "elowen")
				So(c.Points, ShouldEqual, 0) // 80%
			})
		})

		Convey("When a player falls below every tier", func() {
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Value: 200},
				{Name: "Krugash", Value: 200},
				{Name: "Elowen", Value: 1},
			}}
			contribs := score(rules.KeySunderArmor, ds, ros)

			Convey("Then the floor applies", func() {
				c, _ := findContribution(contribs, "elowen")
				So(c.Points, ShouldEqual, -20)
			})
		})

		Convey("When the tank appears", func() {
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Thorgar", Value: 500},
				{Name: "Vexia", Value: 100},
				{Name: "Krugash", Value: 100},
			}}
			contribs := score(rules.KeySunderArmor, ds, ros)

			Convey("Then the tank is excluded and does not skew the average", func() {
				_, found := findContribution(contribs, "thorgar")
				So(found, ShouldBeFalse)
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, 5) // 100% of the tankless average
			})
		})

		Convey("When the dataset is empty", func() {
			contribs := score(rules.KeySunderArmor, model.Dataset{}, ros)

			Convey("Then nothing is contributed", func() {
				So(contribs, ShouldBeEmpty)
			})
		})
	})
}

func TestUptimeThreshold(t *testing.T) {
	Convey("Given curse uptime data", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 92.5},
			{Name: "Krugash", Value: 80},
			{Name: "Elowen", Value: 12},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyCurseShadow, ds, ros)

			Convey("Then only uptime above the threshold is awarded", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, 10)
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, 0) // exactly at threshold does not qualify
				c, _ = findContribution(contribs, "elowen")
				So(c.Points, ShouldEqual, 0)
			})
		})
	})
}

func TestCountBands(t *testing.T) {
	Convey("Given scorch counts", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 160},
			{Name: "Krugash", Value: 100},
			{Name: "Thorgar", Value: 49},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyScorch, ds, ros)

			Convey("Then each band awards its fixed amount", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, 15)
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, 10)
				c, _ = findContribution(contribs, "thorgar")
				So(c.Points, ShouldEqual, 0)
			})
		})
	})
}

func TestPenaltyTiers(t *testing.T) {
	Convey("Given low damage rates", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 100000, Secondary: 1000},   // 100/s
			{Name: "Krugash", Value: 180000, Secondary: 1000}, // 180/s
			{Name: "Thorgar", Value: 1, Secondary: 1000},      // tank, not gated in
			{Name: "Morwenna", Value: 1, Secondary: 0},        // no active time
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyTooLowDamage, ds, ros)

			Convey("Then rates below tier thresholds earn penalties", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, -100)
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, -50)
			})

			Convey("And non-dps and zero-time rows are skipped", func() {
				_, found := findContribution(contribs, "thorgar")
				So(found, ShouldBeFalse)
				_, found = findContribution(contribs, "morwenna")
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestQualifyLinear(t *testing.T) {
	Convey("Given windfury totem drops", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 12, ItemKey: "windfury"},
			{Name: "Krugash", Value: 3},
			{Name: "Elowen", Value: 40},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyWindfuryTotem, ds, ros)

			Convey("Then qualified players score linearly with a cap", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, 10) // floor(12/5)*5
				So(c.ItemKey, ShouldEqual, "windfury")
				c, _ = findContribution(contribs, "elowen")
				So(c.Points, ShouldEqual, 15) // capped
			})

			Convey("And below the minimum usage nothing is scored", func() {
				_, found := findContribution(contribs, "krugash")
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestDifferenceFromAverage(t *testing.T) {
	Convey("Given decurse counts", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 20},
			{Name: "Krugash", Value: 10},
			{Name: "Elowen", Value: 0},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyDecurses, ds, ros)

			Convey("Then distance from the average maps to signed points", func() {
				// Average 10, division 5, 5 points per division.
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, 10)
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, 0)
				c, _ = findContribution(contribs, "elowen")
				So(c.Points, ShouldEqual, -10)
			})
		})

		Convey("When a player is far above the average", func() {
			ds.Rows = append(ds.Rows, model.Row{Name: "Morwenna", Value: 100})
			contribs := score(rules.KeyDecurses, ds, ros)

			Convey("Then the clamp bounds the award", func() {
				c, _ := findContribution(contribs, "morwenna")
				So(c.Points, ShouldEqual, 20)
			})
		})
	})
}

func TestPenaltyPerIncident(t *testing.T) {
	Convey("Given avoidable damage incidents", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Counts: map[string]float64{"void_zone": 2, "cleave": 1}},
			{Name: "Krugash", Counts: map[string]float64{}},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyAvoidableDamage, ds, ros)

			Convey("Then subtype weights multiply by incident counts", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, -23) // 2*-10 + 1*-3
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, 0)
			})
		})

		Convey("When settings override a weight", func() {
			ds.Settings = model.Settings{Weights: map[string]int{"void_zone": -20}}
			contribs := score(rules.KeyAvoidableDamage, ds, ros)

			Convey("Then the override applies", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, -43)
			})
		})
	})
}

func TestMissingBuffs(t *testing.T) {
	Convey("Given missing world buff data", t, func() {
		ros := testRoster()

		Convey("When the conditional buff has low raid-wide adoption", func() {
			// 5 confirmed players, 2 missing dmf: adoption 3 < 10.
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Vexia", Counts: map[string]float64{"ony": 1, "dmf": 1}},
				{Name: "Krugash", Counts: map[string]float64{"dmf": 1}},
			}}
			contribs := score(rules.KeyWorldBuffs, ds, ros)

			Convey("Then missing it is free", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, -10) // only ony counted
				c, _ = findContribution(contribs, "krugash")
				So(c.Points, ShouldEqual, 0)
			})
		})

		Convey("When adoption reaches the minimum", func() {
			ds := model.Dataset{
				Rows: []model.Row{
					{Name: "Vexia", Counts: map[string]float64{"dmf": 1}},
				},
				Settings: model.Settings{Numbers: map[string]float64{"min_adoption": 4}},
			}
			contribs := score(rules.KeyWorldBuffs, ds, ros)

			Convey("Then the conditional buff counts like any other", func() {
				c, _ := findContribution(contribs, "vexia")
				So(c.Points, ShouldEqual, -10)
			})
		})
	})
}

func TestSpendThresholdRank(t *testing.T) {
	Convey("Given auction spend data", t, func() {
		ros := testRoster()
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 2000},
			{Name: "Krugash", Value: 800},
			{Name: "Elowen", Value: 499},
			{Name: "Thorgar", Value: 600},
			{Name: "Morwenna", Value: 501},
		}}

		Convey("When scored", func() {
			contribs := score(rules.KeyBigBuyer, ds, ros)

			Convey("Then only spend above the floor ranks, top three awarded", func() {
				So(contribs, ShouldHaveLength, 3)
				So(contribs[0].Player, ShouldEqual, "vexia")
				So(contribs[0].Points, ShouldEqual, 30)
				So(contribs[1].Player, ShouldEqual, "krugash")
				So(contribs[1].Points, ShouldEqual, 20)
				So(contribs[2].Player, ShouldEqual, "thorgar")
				So(contribs[2].Points, ShouldEqual, 10)
				_, found := findContribution(contribs, "elowen")
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestRoleMapGating(t *testing.T) {
	Convey("Given frost resistance data", t, func() {
		ds := model.Dataset{Rows: []model.Row{
			{Name: "Vexia", Value: 200},
			{Name: "Krugash", Value: 150},
		}}

		Convey("When the event has a primary-role map", func() {
			ros := testRoster()
			contribs := score(rules.KeyFrostResistance, ds, ros)

			Convey("Then dps rank on the frost resistance table", func() {
				So(contribs, ShouldHaveLength, 2)
				So(contribs[0].Points, ShouldEqual, 30)
				So(contribs[1].Points, ShouldEqual, 25)
			})
		})

		Convey("When no role map exists", func() {
			rows := []model.Row{{Name: "Vexia"}, {Name: "Krugash"}}
			ros := roster.Build(rows, nil, nil)
			contribs := score(rules.KeyFrostResistance, ds, ros)

			Convey("Then the category contributes nothing at all", func() {
				So(contribs, ShouldBeEmpty)
			})
		})
	})
}

func TestDetectedHealerFallback(t *testing.T) {
	Convey("Given an event without a primary-role map", t, func() {
		rows := []model.Row{
			{Name: "Elowen"},
			{Name: "Vexia"},
		}
		healing := []model.Row{
			{Name: "Elowen", Value: 250000},
			{Name: "Vexia", Value: 0},
		}
		ros := roster.Build(rows, nil, healing)

		Convey("When scoring a healer-gated category", func() {
			ds := model.Dataset{Rows: []model.Row{
				{Name: "Elowen", Value: 250000},
				{Name: "Vexia", Value: 100},
			}}
			contribs := score(rules.KeyHealing, ds, ros)

			Convey("Then players with recorded healing pass the gate", func() {
				c, found := findContribution(contribs, "elowen")
				So(found, ShouldBeTrue)
				So(c.Points, ShouldEqual, 80)
				_, found = findContribution(contribs, "vexia")
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestScoreAll(t *testing.T) {
	Convey("Given a full event", t, func() {
		ros := testRoster()
		data := &model.EventData{
			EventID: "ev-1",
			Categories: map[string]model.Dataset{
				rules.KeyDamage: {Category: rules.KeyDamage, Rows: []model.Row{
					{Name: "Vexia", Value: 500000},
				}},
				rules.KeyGuildMember: {Category: rules.KeyGuildMember, Rows: []model.Row{
					{Name: "Vexia", Value: 1},
					{Name: "Elowen", Value: 1},
				}},
			},
		}

		Convey("When the whole catalog runs", func() {
			contribs := rules.ScoreAll(data, ros)

			Convey("Then present categories contribute and absent ones are silent", func() {
				total := 0
				for _, c := range contribs {
					if c.Player == "vexia" {
						total += c.Points
					}
				}
				So(total, ShouldEqual, 90) // 80 damage rank + 10 guild member
			})
		})
	})
}

func TestLookup(t *testing.T) {
	Convey("Given the category catalog", t, func() {
		Convey("When looking up a known key", func() {
			cat, ok := rules.Lookup(rules.KeySunderArmor)

			Convey("Then the entry is found", func() {
				So(ok, ShouldBeTrue)
				So(cat.Key, ShouldEqual, rules.KeySunderArmor)
				So(cat.Title, ShouldEqual, "Sunder Armor")
			})
		})

		Convey("When looking up an unknown key", func() {
			_, ok := rules.Lookup("nonsense")

			Convey("Then it reports absence", func() {
				So(ok, ShouldBeFalse)
				So(rules.Title("nonsense"), ShouldEqual, "nonsense")
			})
		})
	})
}
