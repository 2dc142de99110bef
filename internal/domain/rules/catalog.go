package rules

import (
	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
)

// Category keys. The gateway fetches one upstream dataset per key.
const (
	KeyDamage            = "damage"
	KeyHealing           = "healing"
	KeyGodGamerDPS       = "godgamer_dps"
	KeyGodGamerHealer    = "godgamer_healer"
	KeyAbilities         = "abilities"
	KeyRunes             = "runes"
	KeyInterrupts        = "interrupts"
	KeyDisarms           = "disarms"
	KeyPolymorph         = "polymorph"
	KeyPowerInfusion     = "power_infusion"
	KeySunderArmor       = "sunder_armor"
	KeyCurseRecklessness = "curse_recklessness"
	KeyCurseShadow       = "curse_shadow"
	KeyCurseElements     = "curse_elements"
	KeyFaerieFire        = "faerie_fire"
	KeyScorch            = "scorch"
	KeyDemoShout         = "demoralizing_shout"
	KeyGuildMember       = "guild_member"
	KeyRocketHelmet      = "rocket_helmet"
	KeyAttendanceStreak  = "attendance_streak"
	KeyTooLowDamage      = "too_low_damage"
	KeyTooLowHealing     = "too_low_healing"
	KeyWindfury          = "windfury"
	KeyWindfuryTotem     = "windfury_totem"
	KeyGraceOfAirTotem   = "grace_of_air_totem"
	KeyTranquilAirTotem  = "tranquil_air_totem"
	KeyDecurses          = "decurses"
	KeyAvoidableDamage   = "avoidable_damage"
	KeyWorldBuffs        = "world_buffs"
	KeyBigBuyer          = "big_buyer"
	KeyFrostResistance   = "frost_resistance"
)

// Default rank tables.
var (
	defaultRankTable      = []int{80, 70, 55, 45, 40, 35, 30, 25, 20, 15}
	defaultFrostResTable  = []int{30, 25, 20, 15, 10}
	defaultBigBuyerAwards = []int{30, 20, 10}
)

// sunderTiers maps percent-of-average onto signed points; below the lowest
// tier the floor of -20 applies.
var sunderTiers = []relativeTier{
	{125, 10}, {100, 5}, {75, 0}, {50, -5}, {25, -10},
}

// defaultVoidWeights are the per-subtype penalties for avoidable void
// damage incidents.
var defaultVoidWeights = map[string]int{
	"void_zone":   -10,
	"flame_wall":  -5,
	"bomb":        -5,
	"cleave":      -3,
	"whelp_pack":  -3,
	"frost_patch": -2,
}

// roleMapGated wraps a rule so it contributes nothing at all when no
// primary-role mapping exists for the event. Intentional gating, not a
// missing-data fallback.
func roleMapGated(fn ScoreFunc) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		if !ros.HasRoleMap() {
			return nil
		}
		return fn(ds, ros)
	}
}

// Catalog returns the fixed category catalog. Settings delivered by the
// upstream override the defaults baked in here per category.
func Catalog() []Category {
	return []Category{
		{KeyDamage, "Damage", rankTable("table", defaultRankTable, gateMelee)},
		{KeyHealing, "Healing", rankTable("table", defaultRankTable, gateHealer)},
		{KeyGodGamerDPS, "God Gamer DPS", marginBonus("God Gamer DPS", 250000, 100000, 30, 15, gateDPS)},
		{KeyGodGamerHealer, "God Gamer Healer", marginBonus("God Gamer Healer", 150000, 60000, 30, 15, gateHealer)},
		{KeyAbilities, "Abilities", divisorLinear(10, 5, 25, true, gateAll)},
		{KeyRunes, "Runes", divisorLinear(2, 5, 15, false, gateAll)},
		{KeyInterrupts, "Interrupts", divisorLinear(3, 5, 20, false, gateAll)},
		{KeyDisarms, "Disarms", divisorLinear(3, 5, 15, false, gateAll)},
		{KeyPolymorph, "Polymorph", divisorLinear(2, 5, 15, false, gateAll)},
		{KeyPowerInfusion, "Power Infusion", divisorLinear(1, 5, 20, false, gateAll)},
		{KeySunderArmor, "Sunder Armor", averageRelativeTiers(sunderTiers, -20, gateNonTank)},
		{KeyCurseRecklessness, "Curse of Recklessness", uptimeThreshold(80, 10, gateAll)},
		{KeyCurseShadow, "Curse of Shadow", uptimeThreshold(80, 10, gateAll)},
		{KeyCurseElements, "Curse of Elements", uptimeThreshold(80, 10, gateAll)},
		{KeyFaerieFire, "Faerie Fire", uptimeThreshold(80, 10, gateAll)},
		{KeyScorch, "Scorch", countBands([3]float64{50, 100, 150}, [3]int{5, 10, 15}, gateAll)},
		{KeyDemoShout, "Demoralizing Shout", countBands([3]float64{30, 60, 90}, [3]int{5, 10, 15}, gateAll)},
		{KeyGuildMember, "Guild Member", fixedAward(10, "guild member", gateAll)},
		{KeyRocketHelmet, "Rocket Helmet", fixedAward(5, "rocket helmet", gateAll)},
		{KeyAttendanceStreak, "Attendance Streak", streakTiers(gateAll)},
		{KeyTooLowDamage, "Too Low Damage", penaltyTiers([3]float64{150, 200, 250}, [3]int{-100, -50, -25}, gateDPS)},
		{KeyTooLowHealing, "Too Low Healing", penaltyTiers([3]float64{85, 100, 125}, [3]int{-100, -50, -25}, gateHealer)},
		{KeyWindfury, "Windfury", groupRelative(10, gateAll)},
		{KeyWindfuryTotem, "Windfury Totem", qualifyLinear(5, 5, 5, 15, gateAll)},
		{KeyGraceOfAirTotem, "Grace of Air Totem", qualifyLinear(5, 5, 5, 15, gateAll)},
		{KeyTranquilAirTotem, "Tranquil Air Totem", qualifyLinear(5, 5, 5, 15, gateAll)},
		{KeyDecurses, "Decurses", differenceFromAverage(5, 5, -20, 20, gateAll)},
		{KeyAvoidableDamage, "Avoidable Void Damage", penaltyPerIncident(defaultVoidWeights, gateAll)},
		{KeyWorldBuffs, "Missing World Buffs", missingBuffs(-10, "dmf", 10, gateAll)},
		{KeyBigBuyer, "Big Buyer Bonus", spendThresholdRank(500, defaultBigBuyerAwards, gateAll)},
		{KeyFrostResistance, "Frost Resistance", roleMapGated(rankTable("table", defaultFrostResTable, gateDPS))},
	}
}
