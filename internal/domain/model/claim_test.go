package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClaimTransitions(t *testing.T) {
	Convey("Given a pending claim", t, func() {
		c := model.Claim{ID: 1, Participant: "jan", Status: model.StatusPending}
		on := time.Date(2025, 3, 5, 17, 30, 0, 0, time.UTC)

		Convey("When it is approved", func() {
			err := c.Approve("ks.piotr", on)

			Convey("Then status, approver and day-truncated date are set", func() {
				So(err, ShouldBeNil)
				So(c.Status, ShouldEqual, model.StatusApproved)
				So(*c.ApprovedBy, ShouldEqual, "ks.piotr")
				So(c.ApprovedDate.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})

			Convey("Then a second approval is an invalid transition", func() {
				So(errors.Is(c.Approve("other", on), model.ErrInvalidTransition), ShouldBeTrue)
			})

			Convey("Then it cannot be rejected", func() {
				So(errors.Is(c.Reject(), model.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When it is rejected", func() {
			err := c.Reject()

			Convey("Then no approver is recorded", func() {
				So(err, ShouldBeNil)
				So(c.Status, ShouldEqual, model.StatusRejected)
				So(c.ApprovedBy, ShouldBeNil)
				So(c.ApprovedDate, ShouldBeNil)
			})
		})
	})
}

func TestClaimEdit(t *testing.T) {
	Convey("Given an approved claim", t, func() {
		c := model.Claim{Points: 1, EventType: "standard", Notes: "", Status: model.StatusApproved}

		Convey("When an edit sets points and notes", func() {
			p, n := 3, "corrected"
			edit := model.ClaimEdit{Points: &p, Notes: &n}
			edit.Apply(&c)

			Convey("Then only those fields change and status is kept", func() {
				So(edit.Empty(), ShouldBeFalse)
				So(c.Points, ShouldEqual, 3)
				So(c.Notes, ShouldEqual, "corrected")
				So(c.EventType, ShouldEqual, "standard")
				So(c.Status, ShouldEqual, model.StatusApproved)
			})
		})

		Convey("When the edit is empty", func() {
			So(model.ClaimEdit{}.Empty(), ShouldBeTrue)
		})
	})
}

func TestSeasonContains(t *testing.T) {
	Convey("Given a season for 2025", t, func() {
		s := model.Season{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		}

		Convey("Then both bounds are inclusive", func() {
			So(s.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
			So(s.Contains(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Then dates outside are excluded", func() {
			So(s.Contains(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)), ShouldBeFalse)
			So(s.Contains(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldBeFalse)
		})
	})
}

func TestRoleAndOutcome(t *testing.T) {
	Convey("Roles and statuses validate their values", t, func() {
		So(model.RoleModerator.Valid(), ShouldBeTrue)
		So(model.Role("ksiez").Valid(), ShouldBeFalse)
		So(model.StatusRejected.Valid(), ShouldBeTrue)
		So(model.Status("archived").Valid(), ShouldBeFalse)
	})

	Convey("Outcomes render their names", t, func() {
		So(model.Resolved.String(), ShouldEqual, "resolved")
		So(model.Defaulted.String(), ShouldEqual, "defaulted")
		b, err := model.NotFound.MarshalText()
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, "not_found")
		So(model.Unchecked.String(), ShouldEqual, "unchecked")
	})
}
