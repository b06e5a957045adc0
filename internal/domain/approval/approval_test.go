package approval_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/okian/acolyte/internal/domain/approval"
	"github.com/okian/acolyte/internal/domain/catalog"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/scoring"
	"github.com/okian/acolyte/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var today = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

// fakeStore keeps claims in a map and enforces the two uniqueness keys.
type fakeStore struct {
	participants map[string]model.Participant
	claims       map[int64]model.Claim
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		participants: map[string]model.Participant{
			"jan":   {Name: "jan", Role: model.RoleParticipant, Active: true},
			"piotr": {Name: "piotr", Role: model.RoleModerator, Active: true},
			"admin": {Name: "admin", Role: model.RoleAdministrator, Active: true},
			"old":   {Name: "old", Role: model.RoleParticipant, Active: false},
		},
		claims: map[int64]model.Claim{},
	}
}

func (f *fakeStore) ParticipantByName(_ context.Context, name string) (model.Participant, error) {
	p, ok := f.participants[name]
	if !ok {
		return model.Participant{}, model.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ClaimByID(_ context.Context, id int64) (model.Claim, error) {
	c, ok := f.claims[id]
	if !ok {
		return model.Claim{}, model.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ClaimBySchedule(_ context.Context, participant string, scheduleID int64) (model.Claim, error) {
	for _, c := range f.claims {
		if c.Participant == participant && c.ScheduleID != nil && *c.ScheduleID == scheduleID {
			return c, nil
		}
	}
	return model.Claim{}, model.ErrNotFound
}

func (f *fakeStore) ClaimByDate(_ context.Context, participant string, date time.Time) (model.Claim, error) {
	for _, c := range f.claims {
		if c.Participant == participant && c.ScheduleID == nil && c.Date.Equal(date) {
			return c, nil
		}
	}
	return model.Claim{}, model.ErrNotFound
}

func (f *fakeStore) upsert(existing model.Claim, err error, c model.Claim) (int64, error) {
	if err == nil {
		c.ID = existing.ID
	} else {
		f.nextID++
		c.ID = f.nextID
	}
	f.claims[c.ID] = c
	return c.ID, nil
}

func (f *fakeStore) UpsertScheduleClaim(ctx context.Context, c model.Claim) (int64, error) {
	existing, err := f.ClaimBySchedule(ctx, c.Participant, *c.ScheduleID)
	return f.upsert(existing, err, c)
}

func (f *fakeStore) UpsertDateClaim(ctx context.Context, c model.Claim) (int64, error) {
	existing, err := f.ClaimByDate(ctx, c.Participant, c.Date)
	return f.upsert(existing, err, c)
}

func (f *fakeStore) UpdateClaimStatus(_ context.Context, c model.Claim) error {
	stored, ok := f.claims[c.ID]
	if !ok {
		return model.ErrNotFound
	}
	stored.Status, stored.ApprovedBy, stored.ApprovedDate = c.Status, c.ApprovedBy, c.ApprovedDate
	f.claims[c.ID] = stored
	return nil
}

func (f *fakeStore) UpdateClaimFields(_ context.Context, id int64, edit model.ClaimEdit) error {
	c, ok := f.claims[id]
	if !ok {
		return model.ErrNotFound
	}
	edit.Apply(&c)
	f.claims[id] = c
	return nil
}

func (f *fakeStore) DeleteClaim(_ context.Context, id int64) error {
	if _, ok := f.claims[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.claims, id)
	return nil
}

func (f *fakeStore) PurgeClaims(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, c := range f.claims {
		if c.Date.Before(before) {
			delete(f.claims, id)
			n++
		}
	}
	return n, nil
}

// fakePricer awards 1 for a first claim in the week and 2 for a repeat,
// counting stored claims of any status except the excluded one.
type fakePricer struct {
	store *fakeStore
	calls []int64
}

func (p *fakePricer) RecomputeForSchedule(_ context.Context, claimID int64, participant string, date time.Time, _ string) (scoring.Award, error) {
	p.calls = append(p.calls, claimID)
	n := 0
	for _, c := range p.store.claims {
		if c.Participant == participant && c.ID != claimID && !c.Date.After(date) && date.Sub(c.Date) < 6*24*time.Hour {
			n++
		}
	}
	if n == 0 {
		return scoring.Award{Points: 1, Tier: scoring.TierFirst, InSeason: true, Date: date}, nil
	}
	return scoring.Award{Points: 2, Tier: scoring.TierRepeat, InSeason: true, Date: date, WeeklyCount: n}, nil
}

func (p *fakePricer) Today() time.Time { return today }

type fakeResolver map[int64]model.ScheduledEvent

func (r fakeResolver) Resolve(_ context.Context, id int64) (model.ScheduledEvent, model.Outcome, error) {
	ev, ok := r[id]
	if !ok {
		return model.ScheduledEvent{}, model.NotFound, nil
	}
	return ev, model.Resolved, nil
}

type fakeCatalog map[string]int

func (c fakeCatalog) Lookup(_ context.Context, name string, _ catalog.Scope) (catalog.Entry, error) {
	p, ok := c[name]
	if !ok {
		return catalog.Entry{EventType: model.EventType{Name: name, Points: 1}, Outcome: model.Defaulted}, nil
	}
	return catalog.Entry{EventType: model.EventType{Name: name, Points: p}, Outcome: model.Resolved}, nil
}

type fixture struct {
	store    *fakeStore
	pricer   *fakePricer
	workflow *approval.Workflow
	jan      model.Participant
	piotr    model.Participant
	admin    model.Participant
}

func newFixture() fixture {
	store := newFakeStore()
	pricer := &fakePricer{store: store}
	monday := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	resolver := fakeResolver{
		10: {ID: 10, Date: monday, Time: "07:00", EventType: "standard"},
		11: {ID: 11, Date: monday, Time: "18:00", EventType: "standard"},
		12: {ID: 12, Date: monday.AddDate(0, 0, 2), Time: "07:00", EventType: "standard"},
	}
	cat := fakeCatalog{"standard": 1, "solemn": 4}
	return fixture{
		store:    store,
		pricer:   pricer,
		workflow: approval.New(store, pricer, resolver, cat),
		jan:      store.participants["jan"],
		piotr:    store.participants["piotr"],
		admin:    store.participants["admin"],
	}
}

func TestPermissionTable(t *testing.T) {
	Convey("Given the permission table", t, func() {
		Convey("Then participants may only submit", func() {
			So(approval.Allowed(model.RoleParticipant, approval.ActionSubmit), ShouldBeTrue)
			So(approval.Allowed(model.RoleParticipant, approval.ActionApprove), ShouldBeFalse)
			So(approval.Allowed(model.RoleParticipant, approval.ActionEditOthers), ShouldBeFalse)
			So(approval.Allowed(model.RoleParticipant, approval.ActionAdminister), ShouldBeFalse)
		})

		Convey("Then moderators may approve and edit but not administer", func() {
			So(approval.Allowed(model.RoleModerator, approval.ActionApprove), ShouldBeTrue)
			So(approval.Allowed(model.RoleModerator, approval.ActionEditOthers), ShouldBeTrue)
			So(approval.Allowed(model.RoleModerator, approval.ActionAdminister), ShouldBeFalse)
		})

		Convey("Then administrators may do everything", func() {
			for _, a := range []approval.Action{approval.ActionSubmit, approval.ActionApprove, approval.ActionEditOthers, approval.ActionAdminister} {
				So(approval.Allowed(model.RoleAdministrator, a), ShouldBeTrue)
			}
		})

		Convey("Then unknown roles may do nothing", func() {
			So(approval.Allowed(model.Role("ksiez"), approval.ActionSubmit), ShouldBeFalse)
		})
	})
}

func TestSubmitSelf(t *testing.T) {
	Convey("Given a workflow and a participant", t, func() {
		ctx := context.Background()
		f := newFixture()
		notes := gofakeit.Sentence(5)

		Convey("When submitting for an unknown schedule entry", func() {
			res, err := f.workflow.SubmitSelf(ctx, f.jan, 999, notes)

			Convey("Then the submission is skipped without error", func() {
				So(err, ShouldBeNil)
				So(res.Skipped, ShouldBeTrue)
				So(f.store.claims, ShouldBeEmpty)
			})
		})

		Convey("When submitting for a known schedule entry", func() {
			res, err := f.workflow.SubmitSelf(ctx, f.jan, 10, notes)

			Convey("Then a pending claim is created with the computed points", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusPending)
				So(res.Points, ShouldEqual, 1)
				c := f.store.claims[res.ClaimID]
				So(c.Notes, ShouldEqual, notes)
				So(*c.ScheduleID, ShouldEqual, 10)
				So(c.ApprovedBy, ShouldBeNil)
			})

			Convey("And submitting again for the same entry", func() {
				again, err := f.workflow.SubmitSelf(ctx, f.jan, 10, "updated")

				Convey("Then the existing claim is updated in place", func() {
					So(err, ShouldBeNil)
					So(again.ClaimID, ShouldEqual, res.ClaimID)
					So(again.Resubmitted, ShouldBeTrue)
					So(f.store.claims, ShouldHaveLength, 1)
					So(f.store.claims[res.ClaimID].Notes, ShouldEqual, "updated")
				})

				Convey("Then the claim being re-priced is excluded from its own count", func() {
					So(again.Points, ShouldEqual, 1)
					So(f.pricer.calls[len(f.pricer.calls)-1], ShouldEqual, res.ClaimID)
				})
			})

			Convey("And submitting for a different entry on the same date", func() {
				other, err := f.workflow.SubmitSelf(ctx, f.jan, 11, "")

				Convey("Then an independent second claim is created at the repeat tier", func() {
					So(err, ShouldBeNil)
					So(other.ClaimID, ShouldNotEqual, res.ClaimID)
					So(f.store.claims, ShouldHaveLength, 2)
					So(other.Points, ShouldEqual, 2)
				})
			})

			Convey("And the claim was approved before being resubmitted", func() {
				_, err := f.workflow.Approve(ctx, res.ClaimID, f.piotr)
				So(err, ShouldBeNil)
				again, err := f.workflow.SubmitSelf(ctx, f.jan, 10, "")

				Convey("Then it returns to pending with no approver", func() {
					So(err, ShouldBeNil)
					So(again.Status, ShouldEqual, model.StatusPending)
					So(f.store.claims[res.ClaimID].ApprovedBy, ShouldBeNil)
				})
			})
		})

		Convey("When a moderator submits for themselves", func() {
			res, err := f.workflow.SubmitSelf(ctx, f.piotr, 12, "")

			Convey("Then the claim is approved and stamped immediately", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusApproved)
				c := f.store.claims[res.ClaimID]
				So(*c.ApprovedBy, ShouldEqual, "piotr")
				So(c.ApprovedDate.Equal(today), ShouldBeTrue)
			})
		})

		Convey("When an inactive participant submits", func() {
			_, err := f.workflow.SubmitSelf(ctx, f.store.participants["old"], 10, "")

			Convey("Then it is refused", func() {
				So(errors.Is(err, model.ErrInactiveParticipant), ShouldBeTrue)
			})
		})
	})
}

func TestSubmitManual(t *testing.T) {
	Convey("Given a workflow", t, func() {
		ctx := context.Background()
		f := newFixture()
		date := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

		Convey("When a moderator enters a dated claim", func() {
			res, err := f.workflow.SubmitManual(ctx, f.piotr, approval.ManualEntry{
				Participant: "jan", Date: &date, EventType: "solemn", Notes: "sacristy",
			})

			Convey("Then an approved claim with the type's base points is stored", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusApproved)
				So(res.Points, ShouldEqual, 4)
				c := f.store.claims[res.ClaimID]
				So(c.ScheduleID, ShouldBeNil)
				So(c.Date.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(*c.ApprovedBy, ShouldEqual, "piotr")
			})

			Convey("Then the award says the season gate did not run", func() {
				So(res.Award.Season, ShouldEqual, model.Unchecked)
				So(res.Award.Points, ShouldEqual, 4)
			})

			Convey("And the same date is entered again", func() {
				again, err := f.workflow.SubmitManual(ctx, f.admin, approval.ManualEntry{
					Participant: "jan", Date: &date, EventType: "standard",
				})

				Convey("Then the dated claim is updated, not duplicated", func() {
					So(err, ShouldBeNil)
					So(again.ClaimID, ShouldEqual, res.ClaimID)
					So(again.Resubmitted, ShouldBeTrue)
					So(f.store.claims, ShouldHaveLength, 1)
					So(*f.store.claims[res.ClaimID].ApprovedBy, ShouldEqual, "admin")
				})
			})
		})

		Convey("When a moderator enters a claim by schedule id", func() {
			id := int64(12)
			res, err := f.workflow.SubmitManual(ctx, f.piotr, approval.ManualEntry{Participant: "jan", ScheduleID: &id})

			Convey("Then the schedule path prices and approves it", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusApproved)
				So(*f.store.claims[res.ClaimID].ScheduleID, ShouldEqual, 12)
			})
		})

		Convey("When the schedule id is unknown", func() {
			id := int64(404)
			_, err := f.workflow.SubmitManual(ctx, f.piotr, approval.ManualEntry{Participant: "jan", ScheduleID: &id})

			Convey("Then the manual path reports not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When both or neither of date and schedule are given", func() {
			id := int64(10)
			_, both := f.workflow.SubmitManual(ctx, f.piotr, approval.ManualEntry{Participant: "jan", Date: &date, ScheduleID: &id, EventType: "standard"})
			_, neither := f.workflow.SubmitManual(ctx, f.piotr, approval.ManualEntry{Participant: "jan", EventType: "standard"})

			Convey("Then validation fails", func() {
				So(errors.Is(both, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(neither, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the event type is missing on the date path", func() {
			_, err := f.workflow.SubmitManual(ctx, f.piotr, approval.ManualEntry{Participant: "jan", Date: &date})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When the participant is unknown", func() {
			_, err := f.workflow.SubmitManual(ctx, f.piotr, approval.ManualEntry{Participant: gofakeit.Username(), Date: &date, EventType: "standard"})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a participant tries manual entry", func() {
			_, err := f.workflow.SubmitManual(ctx, f.jan, approval.ManualEntry{Participant: "jan", Date: &date, EventType: "standard"})
			So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
		})
	})
}

func TestModeration(t *testing.T) {
	Convey("Given a pending claim", t, func() {
		ctx := context.Background()
		f := newFixture()
		res, err := f.workflow.SubmitSelf(ctx, f.jan, 10, "")
		So(err, ShouldBeNil)

		Convey("When a moderator approves it", func() {
			c, err := f.workflow.Approve(ctx, res.ClaimID, f.piotr)

			Convey("Then status, approver and date are stored", func() {
				So(err, ShouldBeNil)
				So(c.Status, ShouldEqual, model.StatusApproved)
				stored := f.store.claims[res.ClaimID]
				So(*stored.ApprovedBy, ShouldEqual, "piotr")
				So(stored.ApprovedDate.Equal(today), ShouldBeTrue)
			})

			Convey("Then rejecting it afterwards is an invalid transition", func() {
				_, err := f.workflow.Reject(ctx, res.ClaimID, f.admin)
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When a moderator rejects it", func() {
			c, err := f.workflow.Reject(ctx, res.ClaimID, f.piotr)

			Convey("Then no approver is recorded", func() {
				So(err, ShouldBeNil)
				So(c.Status, ShouldEqual, model.StatusRejected)
				stored := f.store.claims[res.ClaimID]
				So(stored.ApprovedBy, ShouldBeNil)
				So(stored.ApprovedDate, ShouldBeNil)
			})
		})

		Convey("When the participant tries to approve their own claim", func() {
			_, err := f.workflow.Approve(ctx, res.ClaimID, f.jan)
			So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
		})

		Convey("When approving an unknown claim", func() {
			_, err := f.workflow.Approve(ctx, 12345, f.piotr)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a moderator edits the points after approval", func() {
			_, err := f.workflow.Approve(ctx, res.ClaimID, f.piotr)
			So(err, ShouldBeNil)
			points, typ := 3, "solemn"
			c, err := f.workflow.Edit(ctx, res.ClaimID, f.piotr, model.ClaimEdit{Points: &points, EventType: &typ})

			Convey("Then the fields change and status stays approved", func() {
				So(err, ShouldBeNil)
				So(c.Points, ShouldEqual, 3)
				So(c.EventType, ShouldEqual, "solemn")
				So(f.store.claims[res.ClaimID].Status, ShouldEqual, model.StatusApproved)
			})
		})

		Convey("When an edit is empty or negative", func() {
			neg := -1
			_, empty := f.workflow.Edit(ctx, res.ClaimID, f.piotr, model.ClaimEdit{})
			_, negative := f.workflow.Edit(ctx, res.ClaimID, f.piotr, model.ClaimEdit{Points: &neg})

			Convey("Then validation fails", func() {
				So(errors.Is(empty, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(negative, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When a moderator tries to delete it", func() {
			err := f.workflow.Delete(ctx, res.ClaimID, f.piotr)

			Convey("Then only administrators may delete", func() {
				So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
				So(f.store.claims, ShouldHaveLength, 1)
			})
		})

		Convey("When an administrator deletes it", func() {
			err := f.workflow.Delete(ctx, res.ClaimID, f.admin)

			Convey("Then it is gone and a second delete reports not found", func() {
				So(err, ShouldBeNil)
				So(f.store.claims, ShouldBeEmpty)
				So(errors.Is(f.workflow.Delete(ctx, res.ClaimID, f.admin), model.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestPurge(t *testing.T) {
	Convey("Given claims across two weeks", t, func() {
		ctx := context.Background()
		f := newFixture()
		for _, id := range []int64{10, 12} {
			_, err := f.workflow.SubmitSelf(ctx, f.jan, id, "")
			So(err, ShouldBeNil)
		}

		Convey("When an administrator purges before Wednesday", func() {
			n, err := f.workflow.Purge(ctx, f.admin, time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC))

			Convey("Then only older claims are removed", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				remaining := make([]int64, 0)
				for _, c := range f.store.claims {
					remaining = append(remaining, *c.ScheduleID)
				}
				sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })
				So(remaining, ShouldResemble, []int64{12})
			})
		})

		Convey("When a moderator purges", func() {
			_, err := f.workflow.Purge(ctx, f.piotr, today)
			So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
		})
	})
}
