package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tovren/raidledger/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleEntries(eventID string) []repository.SnapshotEntry {
	return []repository.SnapshotEntry{
		{
			EventID:         eventID,
			PanelKey:        "damage",
			CharacterName:   "Vexia",
			PointsOriginal:  80,
			DetailsOriginal: "rank 1",
			RankingNumber:   1,
			DiscordUserID:   "d2",
			CharacterClass:  "mage",
			PrimaryNumeric:  500000,
		},
		{
			EventID:        eventID,
			PanelKey:       "windfury_totem",
			CharacterName:  "Krugash",
			AuxKey:         "windfury",
			PointsOriginal: 10,
			RankingNumber:  1,
		},
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	Convey("Given an open store", t, func() {
		store := openStore(t)
		ctx := context.Background()

		Convey("When an event is locked", func() {
			err := store.Lock(ctx, "ev-1", "u1", "Meriel", sampleEntries("ev-1"))
			So(err, ShouldBeNil)

			Convey("Then the status reflects the lock", func() {
				state, err := store.Status(ctx, "ev-1")
				So(err, ShouldBeNil)
				So(state.Locked, ShouldBeTrue)
				So(state.LockedByName, ShouldEqual, "Meriel")
				So(state.LockedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And the entries round trip", func() {
				entries, err := store.Entries(ctx, "ev-1")
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].Version, ShouldEqual, 1)
				So(entries[0].Edited(), ShouldBeFalse)
			})

			Convey("And a second lock fails cleanly", func() {
				err := store.Lock(ctx, "ev-1", "u2", "Other", nil)
				So(err, ShouldEqual, repository.ErrAlreadyLocked)
			})

			Convey("And a different event is unaffected", func() {
				state, err := store.Status(ctx, "ev-2")
				So(err, ShouldBeNil)
				So(state.Locked, ShouldBeFalse)
			})

			Convey("And unlocking discards everything", func() {
				So(store.Unlock(ctx, "ev-1"), ShouldBeNil)
				state, err := store.Status(ctx, "ev-1")
				So(err, ShouldBeNil)
				So(state.Locked, ShouldBeFalse)
				entries, err := store.Entries(ctx, "ev-1")
				So(err, ShouldBeNil)
				So(entries, ShouldBeEmpty)
			})
		})

		Convey("When unlocking an unlocked event", func() {
			err := store.Unlock(ctx, "ev-9")

			Convey("Then it fails with a clean sentinel", func() {
				So(err, ShouldEqual, repository.ErrNotLocked)
			})
		})
	})
}

func TestUpdateEntry(t *testing.T) {
	Convey("Given a locked event", t, func() {
		store := openStore(t)
		ctx := context.Background()
		So(store.Lock(ctx, "ev-1", "u1", "Meriel", sampleEntries("ev-1")), ShouldBeNil)

		points := 95
		details := "adjusted for disconnect"

		Convey("When an edit is applied at the right version", func() {
			updated, err := store.UpdateEntry(ctx, "ev-1", "damage", "Vexia", "", 1,
				repository.EntryEdit{PointsEdited: &points, DetailsEdited: &details})
			So(err, ShouldBeNil)

			Convey("Then effective values change and originals survive", func() {
				So(updated.EffectivePoints(), ShouldEqual, 95)
				So(updated.EffectiveDetails(), ShouldEqual, "adjusted for disconnect")
				So(updated.PointsOriginal, ShouldEqual, 80)
				So(updated.Edited(), ShouldBeTrue)
				So(updated.Version, ShouldEqual, 2)
			})

			Convey("And a stale version loses with the current row attached", func() {
				other := 50
				current, err := store.UpdateEntry(ctx, "ev-1", "damage", "Vexia", "", 1,
					repository.EntryEdit{PointsEdited: &other})
				So(err, ShouldEqual, repository.ErrVersionConflict)
				So(current.Version, ShouldEqual, 2)
				So(current.EffectivePoints(), ShouldEqual, 95)
			})
		})

		Convey("When only the points are edited", func() {
			updated, err := store.UpdateEntry(ctx, "ev-1", "damage", "Vexia", "", 1,
				repository.EntryEdit{PointsEdited: &points})
			So(err, ShouldBeNil)

			Convey("Then the details stay original", func() {
				So(updated.EffectiveDetails(), ShouldEqual, "rank 1")
			})
		})

		Convey("When the name is cased differently", func() {
			updated, err := store.UpdateEntry(ctx, "ev-1", "damage", "VEXIA", "", 1,
				repository.EntryEdit{PointsEdited: &points})

			Convey("Then the match is case-insensitive", func() {
				So(err, ShouldBeNil)
				So(updated.CharacterName, ShouldEqual, "Vexia")
			})
		})

		Convey("When the aux key disambiguates", func() {
			updated, err := store.UpdateEntry(ctx, "ev-1", "windfury_totem", "Krugash", "windfury", 1,
				repository.EntryEdit{PointsEdited: &points})

			Convey("Then the keyed row is edited", func() {
				So(err, ShouldBeNil)
				So(updated.AuxKey, ShouldEqual, "windfury")
			})
		})

		Convey("When the row does not exist", func() {
			_, err := store.UpdateEntry(ctx, "ev-1", "damage", "Stranger", "", 1,
				repository.EntryEdit{PointsEdited: &points})

			Convey("Then drift is reported distinctly from a version race", func() {
				So(err, ShouldEqual, repository.ErrEntryNotFound)
			})
		})

		Convey("When a drifted row is synthesized", func() {
			err := store.InsertEntry(ctx, repository.SnapshotEntry{
				EventID:        "ev-1",
				PanelKey:       "interrupts",
				CharacterName:  "Vexia",
				PointsOriginal: 10,
			})
			So(err, ShouldBeNil)

			Convey("Then the retried edit lands", func() {
				updated, err := store.UpdateEntry(ctx, "ev-1", "interrupts", "Vexia", "", 1,
					repository.EntryEdit{PointsEdited: &points})
				So(err, ShouldBeNil)
				So(updated.EffectivePoints(), ShouldEqual, 95)
			})
		})
	})
}

func TestManualRewards(t *testing.T) {
	Convey("Given an open store", t, func() {
		store := openStore(t)
		ctx := context.Background()

		reward := repository.ManualReward{
			ID:            "r-1",
			EventID:       "ev-1",
			CharacterName: "Vexia",
			DiscordUserID: "d2",
			Amount:        500,
			IsGold:        true,
			Description:   "carried the pulls",
			CreatedBy:     "u1",
		}

		Convey("When a reward is created", func() {
			So(store.CreateReward(ctx, reward), ShouldBeNil)

			Convey("Then it lists and fetches back intact", func() {
				rewards, err := store.ListRewards(ctx, "ev-1")
				So(err, ShouldBeNil)
				So(rewards, ShouldHaveLength, 1)
				So(rewards[0].IsGold, ShouldBeTrue)
				So(rewards[0].Amount, ShouldEqual, 500)

				got, err := store.GetReward(ctx, "r-1")
				So(err, ShouldBeNil)
				So(got.CharacterName, ShouldEqual, "Vexia")
			})

			Convey("And updating changes the stored fields", func() {
				reward.Amount = 750
				reward.IsGold = false
				So(store.UpdateReward(ctx, reward), ShouldBeNil)

				got, err := store.GetReward(ctx, "r-1")
				So(err, ShouldBeNil)
				So(got.Amount, ShouldEqual, 750)
				So(got.IsGold, ShouldBeFalse)
			})

			Convey("And deleting removes it", func() {
				So(store.DeleteReward(ctx, "r-1"), ShouldBeNil)
				_, err := store.GetReward(ctx, "r-1")
				So(err, ShouldEqual, repository.ErrRewardNotFound)
			})
		})

		Convey("When operating on a missing reward", func() {
			Convey("Then every operation reports the sentinel", func() {
				_, err := store.GetReward(ctx, "nope")
				So(err, ShouldEqual, repository.ErrRewardNotFound)
				So(store.UpdateReward(ctx, repository.ManualReward{ID: "nope"}), ShouldEqual, repository.ErrRewardNotFound)
				So(store.DeleteReward(ctx, "nope"), ShouldEqual, repository.ErrRewardNotFound)
			})
		})
	})
}
