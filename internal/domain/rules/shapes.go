package rules

import (
	"fmt"
	"math"
	"sort"

	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
)

// gate decides whether a confirmed player participates in a category.
type gate func(ros *roster.Roster, name string) bool

func gateAll(ros *roster.Roster, name string) bool {
	return ros.Confirmed(name)
}

// gateMelee admits dps and tanks; used only for the raw damage ranking.
func gateMelee(ros *roster.Roster, name string) bool {
	if !ros.Confirmed(name) {
		return false
	}
	return ros.Role(name) != model.RoleHealer
}

func gateDPS(ros *roster.Roster, name string) bool {
	return ros.Confirmed(name) && ros.Role(name) == model.RoleDPS
}

func gateHealer(ros *roster.Roster, name string) bool {
	return ros.Confirmed(name) && ros.IsHealer(name)
}

func gateNonTank(ros *roster.Roster, name string) bool {
	return ros.Confirmed(name) && ros.Role(name) != model.RoleTank
}

// eligibleRows filters and deduplicates dataset rows down to confirmed,
// gated players. The first row wins on duplicate names.
func eligibleRows(ds model.Dataset, ros *roster.Roster, g gate) []model.Row {
	seen := make(map[string]bool, len(ds.Rows))
	out := make([]model.Row, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		key := model.Key(row.Name)
		if key == "" || seen[key] || roster.IsNonPlayer(row.Name) {
			continue
		}
		if !g(ros, row.Name) {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

// byValueDesc orders rows by Value descending, name ascending on ties, so
// rankings are deterministic.
func byValueDesc(rows []model.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return model.Key(rows[i].Name) < model.Key(rows[j].Name)
	})
}

// rankTable awards table[i] points to the player ranked i (0-based) by the
// raw metric; ranks beyond the table score 0.
func rankTable(tableKey string, defTable []int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		rows := eligibleRows(ds, ros, g)
		byValueDesc(rows)
		table := ds.Settings.Table(tableKey, defTable)

		out := make([]model.Contribution, 0, len(rows))
		for i, row := range rows {
			points := 0
			if i < len(table) {
				points = table[i]
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   fmt.Sprintf("rank %d", i+1),
				Raw:      map[string]float64{"value": row.Value, "rank": float64(i + 1)},
			})
		}
		return out
	}
}

// marginBonus compares rank 1 against rank 2 on the raw metric. A gap of at
// least the high threshold earns the high award, at least the low threshold
// the low award, otherwise nothing. Requires two ranked players.
func marginBonus(title string, defHi, defLo float64, defPtsHi, defPtsLo int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		rows := eligibleRows(ds, ros, g)
		if len(rows) < 2 {
			return nil
		}
		byValueDesc(rows)

		hi := ds.Settings.Number("threshold_high", defHi)
		lo := ds.Settings.Number("threshold_low", defLo)
		ptsHi := int(ds.Settings.Number("points_high", float64(defPtsHi)))
		ptsLo := int(ds.Settings.Number("points_low", float64(defPtsLo)))

		gap := rows[0].Value - rows[1].Value
		points := 0
		switch {
		case gap >= hi:
			points = ptsHi
		case gap >= lo:
			points = ptsLo
		}
		if points == 0 {
			return nil
		}
		return []model.Contribution{{
			Category: ds.Category,
			Player:   model.Key(rows[0].Name),
			Points:   points,
			Detail:   title,
			Raw:      map[string]float64{"value": rows[0].Value, "gap": gap},
		}}
	}
}

// divisorLinear awards floor(count/divisor)*pointsPerDivision capped at
// maxPoints. When weighted, the count is scaled by the row's secondary
// metric (e.g. average targets hit).
func divisorLinear(defDivisor, defPer, defMax float64, weighted bool, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		divisor := ds.Settings.Number("divisor", defDivisor)
		per := ds.Settings.Number("points_per_division", defPer)
		maxPts := ds.Settings.Number("max_points", defMax)
		if divisor <= 0 {
			return nil
		}

		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			count := row.Value
			if weighted {
				count = row.Value * row.Secondary
			}
			points := math.Floor(count/divisor) * per
			if points > maxPts {
				points = maxPts
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   int(points),
				Detail:   fmt.Sprintf("%.0f counted", count),
				Raw:      map[string]float64{"value": row.Value, "count": count},
			})
		}
		return out
	}
}

// relativeTier maps a percent-of-average ratio to signed points.
type relativeTier struct {
	minPct float64
	points int
}

// averageRelativeTiers computes the eligible-population average of the raw
// count and maps each player's percentage of it onto a signed tier table.
// An empty eligible population contributes nothing.
func averageRelativeTiers(tiers []relativeTier, floorPoints int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		rows := eligibleRows(ds, ros, g)
		if len(rows) == 0 {
			return nil
		}
		var sum float64
		for _, row := range rows {
			sum += row.Value
		}
		avg := sum / float64(len(rows))
		if avg <= 0 {
			return nil
		}

		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			pct := row.Value / avg * 100
			points := floorPoints
			for _, tier := range tiers {
				if pct >= tier.minPct {
					points = tier.points
					break
				}
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   fmt.Sprintf("%.0f%% of average", pct),
				Raw:      map[string]float64{"value": row.Value, "average": avg, "pct": pct},
			})
		}
		return out
	}
}

// uptimeThreshold awards a single fixed amount when uptime percent exceeds
// the threshold.
func uptimeThreshold(defThreshold float64, defAward int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		threshold := ds.Settings.Number("threshold", defThreshold)
		award := int(ds.Settings.Number("points", float64(defAward)))

		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			points := 0
			if row.Value > threshold {
				points = award
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   fmt.Sprintf("%.1f%% uptime", row.Value),
				Raw:      map[string]float64{"uptime": row.Value, "threshold": threshold},
			})
		}
		return out
	}
}

// countBands awards one of three fixed amounts by absolute count.
func countBands(defBands [3]float64, defPoints [3]int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		b1 := ds.Settings.Number("band_1", defBands[0])
		b2 := ds.Settings.Number("band_2", defBands[1])
		b3 := ds.Settings.Number("band_3", defBands[2])
		p1 := int(ds.Settings.Number("points_1", float64(defPoints[0])))
		p2 := int(ds.Settings.Number("points_2", float64(defPoints[1])))
		p3 := int(ds.Settings.Number("points_3", float64(defPoints[2])))

		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			points := 0
			switch {
			case row.Value >= b3:
				points = p3
			case row.Value >= b2:
				points = p2
			case row.Value >= b1:
				points = p1
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   fmt.Sprintf("count %.0f", row.Value),
				Raw:      map[string]float64{"count": row.Value},
			})
		}
		return out
	}
}

// fixedAward grants a constant value per qualifying appearance.
func fixedAward(defPoints int, detail string, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		points := int(ds.Settings.Number("points", float64(defPoints)))

		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   detail,
				Raw:      map[string]float64{"points": float64(points)},
			})
		}
		return out
	}
}

// streakTiers maps a consecutive-attendance counter onto a step function.
func streakTiers(g gate) ScoreFunc {
	steps := []struct {
		streak float64
		points int
	}{
		{8, 15}, {7, 12}, {6, 9}, {5, 6}, {4, 3},
	}
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			points := 0
			for _, step := range steps {
				if row.Value >= step.streak {
					points = step.points
					break
				}
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   fmt.Sprintf("streak %.0f", row.Value),
				Raw:      map[string]float64{"streak": row.Value},
			})
		}
		return out
	}
}

// penaltyTiers derives a per-second rate from the raw metric and the active
// fight seconds; rates below successive thresholds earn increasingly
// negative points.
func penaltyTiers(defThresholds [3]float64, defPoints [3]int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		t1 := ds.Settings.Number("threshold_1", defThresholds[0])
		t2 := ds.Settings.Number("threshold_2", defThresholds[1])
		t3 := ds.Settings.Number("threshold_3", defThresholds[2])
		p1 := int(ds.Settings.Number("points_1", float64(defPoints[0])))
		p2 := int(ds.Settings.Number("points_2", float64(defPoints[1])))
		p3 := int(ds.Settings.Number("points_3", float64(defPoints[2])))

		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			if row.Secondary <= 0 {
				continue // no active fight time recorded
			}
			rate := row.Value / row.Secondary
			points := 0
			switch {
			case rate < t1:
				points = p1
			case rate < t2:
				points = p2
			case rate < t3:
				points = p3
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   fmt.Sprintf("%.0f per second", rate),
				Raw:      map[string]float64{"value": row.Value, "seconds": row.Secondary, "rate": rate},
			})
		}
		return out
	}
}

// groupRelative compares each qualifying player's party-level secondary
// metric against the raid-wide baseline of that metric. Players below the
// minimum-usage qualifier score nothing either way.
func groupRelative(defMinUsage float64, g gate) ScoreFunc {
	tiers := []relativeTier{{110, 20}, {100, 10}, {90, 0}}
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		minUsage := ds.Settings.Number("min_usage", defMinUsage)

		rows := eligibleRows(ds, ros, g)
		var sum float64
		var n int
		for _, row := range rows {
			if row.Secondary > 0 {
				sum += row.Secondary
				n++
			}
		}
		if n == 0 {
			return nil
		}
		baseline := sum / float64(n)

		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			if row.Value < minUsage || row.Secondary <= 0 {
				continue
			}
			pct := row.Secondary / baseline * 100
			points := -10
			for _, tier := range tiers {
				if pct >= tier.minPct {
					points = tier.points
					break
				}
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   points,
				Detail:   fmt.Sprintf("%.0f%% of raid baseline", pct),
				Raw:      map[string]float64{"usage": row.Value, "party": row.Secondary, "baseline": baseline},
			})
		}
		return out
	}
}

// qualifyLinear requires a minimum usage count and then scores linearly on
// that count, capped.
func qualifyLinear(defMinUsage, defDivisor, defPer, defMax float64, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		minUsage := ds.Settings.Number("min_usage", defMinUsage)
		divisor := ds.Settings.Number("divisor", defDivisor)
		per := ds.Settings.Number("points_per_division", defPer)
		maxPts := ds.Settings.Number("max_points", defMax)
		if divisor <= 0 {
			return nil
		}

		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			if row.Value < minUsage {
				continue
			}
			points := math.Floor(row.Value/divisor) * per
			if points > maxPts {
				points = maxPts
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   int(points),
				Detail:   fmt.Sprintf("%.0f dropped", row.Value),
				ItemKey:  row.ItemKey,
				Raw:      map[string]float64{"count": row.Value},
			})
		}
		return out
	}
}

// differenceFromAverage scores the rounded distance from the eligible
// average in divisions, clamped to a signed range.
func differenceFromAverage(defDivision, defPer, defMin, defMax float64, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		division := ds.Settings.Number("division_size", defDivision)
		per := ds.Settings.Number("points_per_division", defPer)
		minPts := ds.Settings.Number("min_points", defMin)
		maxPts := ds.Settings.Number("max_points", defMax)
		if division <= 0 {
			return nil
		}

		rows := eligibleRows(ds, ros, g)
		if len(rows) == 0 {
			return nil
		}
		var sum float64
		for _, row := range rows {
			sum += row.Value
		}
		avg := sum / float64(len(rows))

		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			points := math.Round((row.Value-avg)/division) * per
			points = math.Max(minPts, math.Min(maxPts, points))
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   int(points),
				Detail:   fmt.Sprintf("%.0f vs average %.1f", row.Value, avg),
				Raw:      map[string]float64{"count": row.Value, "average": avg},
			})
		}
		return out
	}
}

// penaltyPerIncident sums fixed negative weights per incident subtype
// recorded in the row's counters.
func penaltyPerIncident(defWeights map[string]int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		rows := eligibleRows(ds, ros, g)
		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			total := 0
			raw := make(map[string]float64, len(row.Counts))
			for subtype, count := range row.Counts {
				weight := ds.Settings.Weight(subtype, defWeights[subtype])
				total += weight * int(count)
				raw[subtype] = count
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   total,
				Detail:   fmt.Sprintf("%d incident types", len(row.Counts)),
				Raw:      raw,
			})
		}
		return out
	}
}

// missingBuffs penalizes each missing world buff. The conditional buff key
// only counts when raid-wide adoption of that buff reached the minimum;
// below it, missing that buff is free.
func missingBuffs(defPerMissing int, conditionalKey string, defMinAdoption int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		perMissing := int(ds.Settings.Number("points_per_missing", float64(defPerMissing)))
		minAdoption := int(ds.Settings.Number("min_adoption", float64(defMinAdoption)))

		rows := eligibleRows(ds, ros, g)

		// Adoption of the conditional buff = confirmed players minus the
		// players missing it.
		missingConditional := 0
		for _, row := range rows {
			if row.Counts[conditionalKey] > 0 {
				missingConditional++
			}
		}
		countConditional := ros.Count()-missingConditional >= minAdoption

		out := make([]model.Contribution, 0, len(rows))
		for _, row := range rows {
			missing := 0
			raw := make(map[string]float64, len(row.Counts))
			for buff, count := range row.Counts {
				if buff == conditionalKey && !countConditional {
					continue
				}
				missing += int(count)
				raw[buff] = count
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   perMissing * missing,
				Detail:   fmt.Sprintf("%d missing", missing),
				Raw:      raw,
			})
		}
		return out
	}
}

// spendThresholdRank ranks only players whose spend reached the floor and
// awards decreasing fixed amounts to the top of that ranking.
func spendThresholdRank(defFloor float64, defAwards []int, g gate) ScoreFunc {
	return func(ds model.Dataset, ros *roster.Roster) []model.Contribution {
		floor := ds.Settings.Number("spend_floor", defFloor)
		awards := ds.Settings.Table("awards", defAwards)

		rows := eligibleRows(ds, ros, g)
		qualified := rows[:0:0]
		for _, row := range rows {
			if row.Value >= floor {
				qualified = append(qualified, row)
			}
		}
		byValueDesc(qualified)

		out := make([]model.Contribution, 0, len(qualified))
		for i, row := range qualified {
			if i >= len(awards) {
				break
			}
			out = append(out, model.Contribution{
				Category: ds.Category,
				Player:   model.Key(row.Name),
				Points:   awards[i],
				Detail:   fmt.Sprintf("spend rank %d", i+1),
				Raw:      map[string]float64{"spend": row.Value, "rank": float64(i + 1)},
			})
		}
		return out
	}
}
