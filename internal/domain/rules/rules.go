// Package rules maps each category's raw dataset, settings and eligibility
// into per-player point contributions. Every rule is a pure function; no
// rule consults another category's output. Negative results are preserved
// here and clamped only at the whole-player-total step.
package rules

import (
	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
)

// ScoreFunc scores one category dataset against the eligible roster.
type ScoreFunc func(ds model.Dataset, ros *roster.Roster) []model.Contribution

// Category is one entry of the fixed scoring catalog.
type Category struct {
	Key   string
	Title string
	Score ScoreFunc
}

// ScoreAll runs the whole catalog for one event and returns the combined
// contribution stream.
func ScoreAll(data *model.EventData, ros *roster.Roster) []model.Contribution {
	var out []model.Contribution
	for _, cat := range Catalog() {
		out = append(out, cat.Score(data.Category(cat.Key), ros)...)
	}
	return out
}

// Keys returns all category keys in catalog order; the gateway fetches one
// dataset per key.
func Keys() []string {
	catalog := Catalog()
	keys := make([]string, len(catalog))
	for i, cat := range catalog {
		keys[i] = cat.Key
	}
	return keys
}

// Lookup returns the catalog entry for key, reporting whether it exists.
func Lookup(key string) (Category, bool) {
	for _, cat := range Catalog() {
		if cat.Key == key {
			return cat, true
		}
	}
	return Category{}, false
}

// Title returns the display title for a category key, falling back to the
// key itself for unknown categories.
func Title(key string) string {
	if cat, ok := Lookup(key); ok {
		return cat.Title
	}
	return key
}
