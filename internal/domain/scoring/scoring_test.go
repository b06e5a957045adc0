package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/acolyte/internal/domain/catalog"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/scoring"
	"github.com/okian/acolyte/internal/domain/season"
	"github.com/okian/acolyte/internal/domain/settings"
	"github.com/okian/acolyte/internal/domain/weekly"
	"github.com/okian/acolyte/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// memStore backs every collaborator of the engine.
type memStore struct {
	config  map[string]string
	seasons map[int64]model.Season
	types   map[string]model.EventType
	claims  []model.Claim
	failOn  string
}

func newMemStore() *memStore {
	return &memStore{
		config: map[string]string{
			settings.KeySecondMassBonus:  "1",
			settings.KeySecondMassPoints: "2",
			settings.KeyMaxPointsPerDay:  "5",
			settings.KeyCurrentSeasonID:  "1",
		},
		seasons: map[int64]model.Season{
			1: {ID: 1, Name: "2025", Start: day(2025, 1, 1), End: day(2025, 12, 31), Active: true},
		},
		types: map[string]model.EventType{
			"standard": {ID: 1, Name: "standard", Points: 1, Active: true},
			"solemn":   {ID: 2, Name: "solemn", Points: 4, Active: true, BonusSecondMass: true, BonusPoints: 3},
			"retired":  {ID: 3, Name: "retired", Points: 6, Active: false},
		},
	}
}

func (m *memStore) ConfigValues(context.Context) (map[string]string, error) {
	if m.failOn == "config" {
		return nil, errors.New("config table locked")
	}
	return m.config, nil
}

func (m *memStore) SeasonByID(_ context.Context, id int64) (model.Season, error) {
	s, ok := m.seasons[id]
	if !ok {
		return model.Season{}, model.ErrNotFound
	}
	return s, nil
}

func (m *memStore) EventTypeByName(_ context.Context, name string) (model.EventType, error) {
	et, ok := m.types[name]
	if !ok {
		return model.EventType{}, model.ErrNotFound
	}
	return et, nil
}

func (m *memStore) EventTypeByID(context.Context, int64) (model.EventType, error) {
	return model.EventType{}, model.ErrNotFound
}

func (m *memStore) ListEventTypes(context.Context, bool) ([]model.EventType, error) {
	return nil, nil
}

func (m *memStore) CountClaims(_ context.Context, q model.ClaimCount) (int, error) {
	if m.failOn == "count" {
		return 0, errors.New("count failed")
	}
	n := 0
	for _, c := range m.claims {
		if c.Participant != q.Participant || c.Date.Before(q.From) || c.Date.After(q.To) || c.ID == q.ExcludeID {
			continue
		}
		if q.Statuses != nil && !hasStatus(q.Statuses, c.Status) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memStore) add(id int64, participant string, date time.Time, status model.Status) {
	m.claims = append(m.claims, model.Claim{ID: id, Participant: participant, Date: date, Status: status})
}

func hasStatus(list []model.Status, s model.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newEngine(store *memStore, today time.Time) *scoring.Engine {
	return scoring.NewEngine(
		store,
		season.New(store),
		catalog.New(store),
		weekly.New(store),
		scoring.WithClock(func() time.Time { return today.Add(10 * time.Hour) }),
	)
}

func TestComputeForSelf(t *testing.T) {
	Convey("Given a season covering 2025 and the second-mass bonus enabled", t, func() {
		ctx := context.Background()
		store := newMemStore()
		monday := day(2025, 3, 3)

		Convey("When a participant has no approved claims this week", func() {
			a, err := newEngine(store, monday).ComputeForSelf(ctx, "jan", "standard")

			Convey("Then the base points of the type are awarded", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 1)
				So(a.Tier, ShouldEqual, scoring.TierFirst)
				So(a.EventType, ShouldEqual, model.Resolved)
				So(a.Date.Equal(monday), ShouldBeTrue)
			})
		})

		Convey("When the participant already has an approved claim this week", func() {
			store.add(1, "jan", monday, model.StatusApproved)
			a, err := newEngine(store, day(2025, 3, 5)).ComputeForSelf(ctx, "jan", "solemn")

			Convey("Then points_second_mass is awarded regardless of the type's base", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 2)
				So(a.Tier, ShouldEqual, scoring.TierRepeat)
				So(a.WeeklyCount, ShouldEqual, 1)
			})
		})

		Convey("When the only claim this week is pending", func() {
			store.add(1, "jan", monday, model.StatusPending)
			a, err := newEngine(store, day(2025, 3, 5)).ComputeForSelf(ctx, "jan", "standard")

			Convey("Then it does not count toward the bonus", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 1)
				So(a.WeeklyCount, ShouldEqual, 0)
			})
		})

		Convey("When the bonus is disabled and a repeat occurs", func() {
			store.config[settings.KeySecondMassBonus] = "0"
			store.add(1, "jan", monday, model.StatusApproved)
			a, err := newEngine(store, day(2025, 3, 5)).ComputeForSelf(ctx, "jan", "solemn")

			Convey("Then the base points apply", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 4)
				So(a.Tier, ShouldEqual, scoring.TierRepeat)
			})
		})

		Convey("When the daily cap is 2 and the base is 4", func() {
			store.config[settings.KeyMaxPointsPerDay] = "2"
			a, err := newEngine(store, monday).ComputeForSelf(ctx, "jan", "solemn")

			Convey("Then the award is clamped to exactly 2", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 2)
				So(a.Capped, ShouldBeTrue)
			})
		})

		Convey("When the cap is zero", func() {
			store.config[settings.KeyMaxPointsPerDay] = "0"
			a, err := newEngine(store, monday).ComputeForSelf(ctx, "jan", "solemn")

			Convey("Then the cap is disabled", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 4)
				So(a.Capped, ShouldBeFalse)
			})
		})

		Convey("When the type is inactive", func() {
			a, err := newEngine(store, monday).ComputeForSelf(ctx, "jan", "retired")

			Convey("Then self-service falls back to one point", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 1)
				So(a.EventType, ShouldEqual, model.Defaulted)
			})
		})

		Convey("When today is outside the season", func() {
			a, err := newEngine(store, day(2026, 1, 5)).ComputeForSelf(ctx, "jan", "solemn")

			Convey("Then zero points are awarded", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 0)
				So(a.InSeason, ShouldBeFalse)
			})
		})

		Convey("When the configuration cannot be read", func() {
			store.failOn = "config"
			_, err := newEngine(store, monday).ComputeForSelf(ctx, "jan", "standard")

			Convey("Then the error is returned", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "config table locked")
			})
		})
	})
}

func TestComputeForSchedule(t *testing.T) {
	Convey("Given a season covering 2025", t, func() {
		ctx := context.Background()
		store := newMemStore()
		monday := day(2025, 3, 3)
		engine := newEngine(store, monday)

		Convey("When it is the first occurrence of an inactive type", func() {
			a, err := engine.ComputeForSchedule(ctx, "jan", monday, "retired")

			Convey("Then the stored base points are used anyway", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 6)
				So(a.Tier, ShouldEqual, scoring.TierFirst)
			})
		})

		Convey("When a pending claim already exists this week", func() {
			store.add(1, "jan", monday, model.StatusPending)

			Convey("Then a type with its own bonus awards its bonus points", func() {
				a, err := engine.ComputeForSchedule(ctx, "jan", day(2025, 3, 5), "solemn")
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 3)
				So(a.Tier, ShouldEqual, scoring.TierRepeat)
			})

			Convey("Then a type without a bonus awards the flat fallback", func() {
				a, err := engine.ComputeForSchedule(ctx, "jan", day(2025, 3, 5), "standard")
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, scoring.RepeatFallbackPoints)
			})

			Convey("Then re-pricing that same claim does not count itself", func() {
				a, err := engine.RecomputeForSchedule(ctx, 1, "jan", monday, "solemn")
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 4)
				So(a.Tier, ShouldEqual, scoring.TierFirst)
			})
		})

		Convey("When a rejected claim exists this week", func() {
			store.add(1, "jan", monday, model.StatusRejected)
			a, err := engine.ComputeForSchedule(ctx, "jan", day(2025, 3, 4), "standard")

			Convey("Then it still counts as an occurrence", func() {
				So(err, ShouldBeNil)
				So(a.WeeklyCount, ShouldEqual, 1)
			})
		})

		Convey("When the date is a Sunday after a busy week", func() {
			store.add(1, "jan", monday, model.StatusApproved)
			store.add(2, "jan", day(2025, 3, 8), model.StatusApproved)
			a, err := engine.ComputeForSchedule(ctx, "jan", day(2025, 3, 9), "solemn")

			Convey("Then the Sunday is still priced in the Monday window", func() {
				So(err, ShouldBeNil)
				So(a.WeeklyCount, ShouldEqual, 2)
				So(a.Points, ShouldEqual, 3)
			})
		})

		Convey("When the daily cap is lower than the base", func() {
			store.config[settings.KeyMaxPointsPerDay] = "2"
			a, err := engine.ComputeForSchedule(ctx, "jan", monday, "retired")

			Convey("Then no cap is applied on this path", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 6)
				So(a.Capped, ShouldBeFalse)
			})
		})

		Convey("When the date is outside the season", func() {
			a, err := engine.ComputeForSchedule(ctx, "jan", day(2024, 12, 30), "solemn")

			Convey("Then zero points are awarded", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 0)
				So(a.InSeason, ShouldBeFalse)
			})
		})

		Convey("When the configured season is missing", func() {
			store.config[settings.KeyCurrentSeasonID] = "9"
			a, err := engine.ComputeForSchedule(ctx, "jan", day(1999, 1, 4), "standard")

			Convey("Then every date is in season and the verdict is defaulted", func() {
				So(err, ShouldBeNil)
				So(a.Points, ShouldEqual, 1)
				So(a.Season, ShouldEqual, model.Defaulted)
			})
		})

		Convey("When the counter fails", func() {
			store.failOn = "count"
			_, err := engine.ComputeForSchedule(ctx, "jan", monday, "standard")

			Convey("Then the error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
