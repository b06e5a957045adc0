package schedule_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/schedule"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	events map[int64]model.ScheduledEvent
	err    error
}

func (f *fakeStore) ScheduledEventByID(_ context.Context, id int64) (model.ScheduledEvent, error) {
	if f.err != nil {
		return model.ScheduledEvent{}, f.err
	}
	ev, ok := f.events[id]
	if !ok {
		return model.ScheduledEvent{}, model.ErrNotFound
	}
	return ev, nil
}

func TestResolve(t *testing.T) {
	Convey("Given a schedule with one entry", t, func() {
		ctx := context.Background()
		store := &fakeStore{events: map[int64]model.ScheduledEvent{
			5: {ID: 5, Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Time: "07:00", EventType: "standard"},
		}}
		m := schedule.New(store)

		Convey("When resolving a known id", func() {
			ev, outcome, err := m.Resolve(ctx, 5)

			Convey("Then the occurrence is returned", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, model.Resolved)
				So(ev.EventType, ShouldEqual, "standard")
				So(ev.Time, ShouldEqual, "07:00")
			})
		})

		Convey("When resolving an unknown id", func() {
			_, outcome, err := m.Resolve(ctx, 6)

			Convey("Then NotFound is reported without an error", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, model.NotFound)
			})
		})

		Convey("When the store fails", func() {
			store.err = errors.New("timeout")
			_, _, err := m.Resolve(ctx, 5)

			Convey("Then the error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
