package roster_test

import (
	"testing"

	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIsNonPlayer(t *testing.T) {
	Convey("Given dataset entity names", t, func() {
		Convey("Then non-player entities are recognized", func() {
			So(roster.IsNonPlayer("Searing Totem"), ShouldBeTrue)
			So(roster.IsNonPlayer("Windfury Totems"), ShouldBeTrue)
			So(roster.IsNonPlayer("Frost Ward"), ShouldBeTrue)
			So(roster.IsNonPlayer("Freezing Trap"), ShouldBeTrue)
			So(roster.IsNonPlayer("Target Dummy"), ShouldBeTrue)
			So(roster.IsNonPlayer("target dummies"), ShouldBeTrue)
			So(roster.IsNonPlayer("Battle Chicken"), ShouldBeTrue)
			So(roster.IsNonPlayer("Thorgar zzold"), ShouldBeTrue)
		})

		Convey("And ordinary character names pass", func() {
			So(roster.IsNonPlayer("Thorgar"), ShouldBeFalse)
			So(roster.IsNonPlayer("Trapjaw"), ShouldBeFalse) // substring only, not whole word
			So(roster.IsNonPlayer("Wardrick"), ShouldBeFalse)
		})
	})
}

func TestBuild(t *testing.T) {
	Convey("Given a roster dataset with junk entries", t, func() {
		rows := []model.Row{
			{Name: "Thorgar", DiscordID: "d1", Class: "warrior"},
			{Name: "Vexia", DiscordID: "d2", Class: "mage"},
			{Name: "Searing Totem"},
			{Name: ""},
		}
		roles := map[string]model.Role{
			"thorgar": model.RoleTank,
			"vexia":   model.RoleDPS,
		}

		Convey("When built with a role map", func() {
			ros := roster.Build(rows, roles, nil)

			Convey("Then only real players are confirmed", func() {
				So(ros.Count(), ShouldEqual, 2)
				So(ros.Confirmed("Thorgar"), ShouldBeTrue)
				So(ros.Confirmed("searing totem"), ShouldBeFalse)
			})

			Convey("And confirmation is case-insensitive", func() {
				So(ros.Confirmed("THORGAR"), ShouldBeTrue)
				So(ros.Confirmed(" thorgar "), ShouldBeTrue)
			})

			Convey("And roles come from the map", func() {
				So(ros.HasRoleMap(), ShouldBeTrue)
				So(ros.Role("Thorgar"), ShouldEqual, model.RoleTank)
				So(ros.Role("Vexia"), ShouldEqual, model.RoleDPS)
			})
		})

		Convey("When built without a role map", func() {
			healing := []model.Row{
				{Name: "Vexia", Value: 50000},
				{Name: "Thorgar", Value: 0},
			}
			ros := roster.Build(rows, nil, healing)

			Convey("Then the role map fact is exposed", func() {
				So(ros.HasRoleMap(), ShouldBeFalse)
			})

			Convey("And nonzero healing marks detected healers", func() {
				So(ros.IsHealer("Vexia"), ShouldBeTrue)
				So(ros.IsHealer("Thorgar"), ShouldBeFalse)
			})
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given a built roster", t, func() {
		rows := []model.Row{
			{Name: "Thorgar", DiscordID: "d1"},
			{Name: "Vexia", DiscordID: "d2"},
		}
		ros := roster.Build(rows, map[string]model.Role{}, nil)

		Convey("When resolving by discord id with a stale name", func() {
			p, ok := ros.Resolve("Oldname", "d2")

			Convey("Then the discord id wins", func() {
				So(ok, ShouldBeTrue)
				So(p.Name, ShouldEqual, "Vexia")
			})
		})

		Convey("When resolving by name only", func() {
			p, ok := ros.Resolve("thorgar", "")

			Convey("Then the name match applies", func() {
				So(ok, ShouldBeTrue)
				So(p.Name, ShouldEqual, "Thorgar")
			})
		})

		Convey("When neither matches", func() {
			_, ok := ros.Resolve("Stranger", "d99")

			Convey("Then resolution fails", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}
