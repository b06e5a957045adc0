package season_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/season"
	"github.com/okian/acolyte/internal/domain/settings"
	"github.com/okian/acolyte/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeStore struct {
	config  map[string]string
	seasons map[int64]model.Season
	err     error
}

func (f *fakeStore) ConfigValues(context.Context) (map[string]string, error) {
	return f.config, nil
}

func (f *fakeStore) SeasonByID(_ context.Context, id int64) (model.Season, error) {
	if f.err != nil {
		return model.Season{}, f.err
	}
	s, ok := f.seasons[id]
	if !ok {
		return model.Season{}, model.ErrNotFound
	}
	return s, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGate(t *testing.T) {
	Convey("Given a gate with season 2 configured as current", t, func() {
		ctx := context.Background()
		store := &fakeStore{
			config: map[string]string{settings.KeyCurrentSeasonID: "2"},
			seasons: map[int64]model.Season{
				1: {ID: 1, Start: day(2024, 1, 1), End: day(2024, 12, 31)},
				2: {ID: 2, Start: day(2025, 1, 1), End: day(2025, 12, 31)},
			},
		}
		gate := season.New(store)

		Convey("When checking a date inside season 2", func() {
			ok, err := gate.InSeason(ctx, day(2025, 6, 1))

			Convey("Then it is in season", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When checking a date only inside season 1", func() {
			ok, err := gate.InSeason(ctx, day(2024, 6, 1))

			Convey("Then it is out of season", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the configured season does not exist", func() {
			store.config[settings.KeyCurrentSeasonID] = "99"
			v, err := gate.Check(ctx, day(1990, 1, 1), 99)

			Convey("Then every date passes and the verdict is marked defaulted", func() {
				So(err, ShouldBeNil)
				So(v.InSeason, ShouldBeTrue)
				So(v.Outcome, ShouldEqual, model.Defaulted)
			})
		})

		Convey("When the store fails", func() {
			store.err = errors.New("connection reset")
			_, err := gate.InSeason(ctx, day(2025, 6, 1))

			Convey("Then the error is returned, not swallowed as fail-open", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given no current season configured", t, func() {
		store := &fakeStore{seasons: map[int64]model.Season{
			1: {ID: 1, Start: day(2025, 1, 1), End: day(2025, 1, 31)},
		}}
		gate := season.New(store)

		Convey("Then the default season id 1 is used", func() {
			v, err := gate.Check(context.Background(), day(2025, 2, 1), settings.Defaults().CurrentSeasonID)
			So(err, ShouldBeNil)
			So(v.Outcome, ShouldEqual, model.Resolved)
			So(v.InSeason, ShouldBeFalse)
		})
	})
}
