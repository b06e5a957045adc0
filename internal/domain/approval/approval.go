// Package approval implements the claim lifecycle.
//
// A claim is created pending by self-service submission, or approved directly when
// the submitter holds the approve capability or enters it manually for someone else.
// Pending claims move to approved or rejected once. Afterwards only administrative
// edits of points, type and notes, or deletion, touch the claim.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/acolyte/internal/domain/catalog"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/scoring"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// Store is the claim persistence the workflow writes through.
type Store interface {
	ParticipantByName(ctx context.Context, name string) (model.Participant, error)
	ClaimByID(ctx context.Context, id int64) (model.Claim, error)
	ClaimBySchedule(ctx context.Context, participant string, scheduleID int64) (model.Claim, error)
	ClaimByDate(ctx context.Context, participant string, date time.Time) (model.Claim, error)
	// UpsertScheduleClaim inserts or updates the claim keyed by (participant, schedule id).
	UpsertScheduleClaim(ctx context.Context, c model.Claim) (int64, error)
	// UpsertDateClaim inserts or updates the unlinked claim keyed by (participant, date).
	UpsertDateClaim(ctx context.Context, c model.Claim) (int64, error)
	UpdateClaimStatus(ctx context.Context, c model.Claim) error
	UpdateClaimFields(ctx context.Context, id int64, edit model.ClaimEdit) error
	DeleteClaim(ctx context.Context, id int64) error
	PurgeClaims(ctx context.Context, before time.Time) (int64, error)
}

// Pricer computes schedule-linked awards.
type Pricer interface {
	RecomputeForSchedule(ctx context.Context, claimID int64, participant string, date time.Time, eventType string) (scoring.Award, error)
	Today() time.Time
}

// Resolver resolves schedule ids.
type Resolver interface {
	Resolve(ctx context.Context, id int64) (model.ScheduledEvent, model.Outcome, error)
}

// Catalog resolves event types for manual date entries.
type Catalog interface {
	Lookup(ctx context.Context, name string, scope catalog.Scope) (catalog.Entry, error)
}

// SubmitResult describes a submission.
type SubmitResult struct {
	ClaimID int64         `json:"claim_id,omitempty"`
	Status  model.Status  `json:"status,omitempty"`
	Points  int           `json:"points"`
	// Award is the pricing behind Points. Manual entries by date skip the season gate,
	// so their Award.Season is model.Unchecked.
	Award   scoring.Award `json:"award"`
	// Skipped is set when a self submission names a schedule entry that does not exist.
	Skipped bool `json:"skipped"`
	// Resubmitted is set when an existing claim was updated in place.
	Resubmitted bool `json:"resubmitted"`
}

// ManualEntry is a claim entered by a moderator on someone's behalf.
// Exactly one of Date and ScheduleID must be set.
type ManualEntry struct {
	Participant string
	Date        *time.Time
	ScheduleID  *int64
	EventType   string
	Notes       string
}

// Workflow applies the permission table and state machine to claim writes.
type Workflow struct {
	store    Store
	pricer   Pricer
	resolver Resolver
	catalog  Catalog
	log      logger.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a Workflow.
func New(store Store, pricer Pricer, resolver Resolver, cat Catalog, opts ...Option) *Workflow {
	w := &Workflow{store: store, pricer: pricer, resolver: resolver, catalog: cat}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Get().Named("approval")
	}
	return w
}

// SubmitSelf records actor's attendance at a scheduled event.
func (w *Workflow) SubmitSelf(ctx context.Context, actor model.Participant, scheduleID int64, notes string) (SubmitResult, error) {
	if err := Authorize(actor, ActionSubmit); err != nil {
		return SubmitResult{}, err
	}

	ev, outcome, err := w.resolver.Resolve(ctx, scheduleID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("approval.submit_self -> %w", err)
	}
	if outcome == model.NotFound {
		metrics.RecordClaimSkipped()
		w.log.Info(ctx, "submission for unknown schedule entry skipped",
			logger.String("participant", actor.Name), logger.Int64("schedule_id", scheduleID))
		return SubmitResult{Skipped: true}, nil
	}

	c := model.Claim{
		Participant: actor.Name,
		Date:        ev.Date,
		EventType:   ev.EventType,
		Notes:       notes,
		Status:      model.StatusPending,
		ScheduleID:  &scheduleID,
	}
	if Allowed(actor.Role, ActionApprove) {
		w.stamp(&c, actor.Name)
	}
	return w.writeScheduleClaim(ctx, "self", c)
}

// SubmitManual records attendance for entry.Participant on actor's authority.
// The claim is always approved and stamped with actor.
func (w *Workflow) SubmitManual(ctx context.Context, actor model.Participant, entry ManualEntry) (SubmitResult, error) {
	if err := Authorize(actor, ActionEditOthers); err != nil {
		return SubmitResult{}, err
	}
	if (entry.Date == nil) == (entry.ScheduleID == nil) {
		return SubmitResult{}, fmt.Errorf("%w: exactly one of date or schedule id is required", model.ErrValidation)
	}
	target, err := w.store.ParticipantByName(ctx, entry.Participant)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("approval.submit_manual -> participant %q: %w", entry.Participant, err)
	}

	if entry.ScheduleID != nil {
		ev, outcome, err := w.resolver.Resolve(ctx, *entry.ScheduleID)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("approval.submit_manual -> %w", err)
		}
		if outcome == model.NotFound {
			return SubmitResult{}, fmt.Errorf("approval.submit_manual -> schedule %d: %w", *entry.ScheduleID, model.ErrNotFound)
		}
		c := model.Claim{
			Participant: target.Name,
			Date:        ev.Date,
			EventType:   ev.EventType,
			Notes:       entry.Notes,
			ScheduleID:  entry.ScheduleID,
		}
		w.stamp(&c, actor.Name)
		return w.writeScheduleClaim(ctx, "manual", c)
	}

	name := strings.TrimSpace(entry.EventType)
	if name == "" {
		return SubmitResult{}, fmt.Errorf("%w: event type is required", model.ErrValidation)
	}
	date := model.Day(*entry.Date)
	et, err := w.catalog.Lookup(ctx, name, catalog.AnyState)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("approval.submit_manual -> %w", err)
	}

	existing, err := w.store.ClaimByDate(ctx, target.Name, date)
	resubmitted := err == nil
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return SubmitResult{}, fmt.Errorf("approval.submit_manual -> %w", err)
	}

	c := model.Claim{
		Participant: target.Name,
		Date:        date,
		Points:      et.Points,
		EventType:   name,
		Notes:       entry.Notes,
	}
	w.stamp(&c, actor.Name)
	id, err := w.store.UpsertDateClaim(ctx, c)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("approval.submit_manual -> %w", err)
	}

	metrics.RecordClaimSubmitted("manual", string(c.Status), resubmitted)
	w.log.Info(ctx, "manual claim recorded",
		logger.Int64("claim_id", id),
		logger.String("participant", target.Name),
		logger.String("actor", actor.Name),
		logger.Date("date", date),
		logger.Int("points", c.Points),
		logger.Bool("resubmitted", resubmitted),
		logger.Int64("previous_id", existing.ID))
	return SubmitResult{
		ClaimID:     id,
		Status:      c.Status,
		Points:      c.Points,
		Award:       scoring.Award{Points: c.Points, Date: date, InSeason: true, EventType: et.Outcome, Season: model.Unchecked},
		Resubmitted: resubmitted,
	}, nil
}

// Approve moves a pending claim to approved and stamps actor as approver.
func (w *Workflow) Approve(ctx context.Context, id int64, actor model.Participant) (model.Claim, error) {
	return w.transition(ctx, id, actor, func(c *model.Claim) error {
		return c.Approve(actor.Name, w.pricer.Today())
	})
}

// Reject moves a pending claim to rejected. Nobody is recorded as approver.
func (w *Workflow) Reject(ctx context.Context, id int64, actor model.Participant) (model.Claim, error) {
	return w.transition(ctx, id, actor, func(c *model.Claim) error {
		return c.Reject()
	})
}

// Edit corrects points, type or notes without touching status.
func (w *Workflow) Edit(ctx context.Context, id int64, actor model.Participant, edit model.ClaimEdit) (model.Claim, error) {
	if err := Authorize(actor, ActionEditOthers); err != nil {
		return model.Claim{}, err
	}
	if edit.Empty() {
		return model.Claim{}, fmt.Errorf("%w: nothing to edit", model.ErrValidation)
	}
	if edit.Points != nil && *edit.Points < 0 {
		return model.Claim{}, fmt.Errorf("%w: points must not be negative", model.ErrValidation)
	}
	if edit.EventType != nil && strings.TrimSpace(*edit.EventType) == "" {
		return model.Claim{}, fmt.Errorf("%w: event type must not be empty", model.ErrValidation)
	}

	c, err := w.store.ClaimByID(ctx, id)
	if err != nil {
		return model.Claim{}, fmt.Errorf("approval.edit -> %w", err)
	}
	if err := w.store.UpdateClaimFields(ctx, id, edit); err != nil {
		return model.Claim{}, fmt.Errorf("approval.edit -> %w", err)
	}
	edit.Apply(&c)
	w.log.Info(ctx, "claim edited", logger.Int64("claim_id", id), logger.String("actor", actor.Name))
	return c, nil
}

// Delete removes a claim unconditionally.
func (w *Workflow) Delete(ctx context.Context, id int64, actor model.Participant) error {
	if err := Authorize(actor, ActionAdminister); err != nil {
		return err
	}
	if err := w.store.DeleteClaim(ctx, id); err != nil {
		return fmt.Errorf("approval.delete -> %w", err)
	}
	metrics.RecordClaimsDeleted(1)
	w.log.Info(ctx, "claim deleted", logger.Int64("claim_id", id), logger.String("actor", actor.Name))
	return nil
}

// Purge deletes every claim dated before cutoff and returns how many were removed.
func (w *Workflow) Purge(ctx context.Context, actor model.Participant, cutoff time.Time) (int64, error) {
	if err := Authorize(actor, ActionAdminister); err != nil {
		return 0, err
	}
	n, err := w.store.PurgeClaims(ctx, model.Day(cutoff))
	if err != nil {
		return 0, fmt.Errorf("approval.purge -> %w", err)
	}
	metrics.RecordClaimsDeleted(n)
	w.log.Info(ctx, "claims purged", logger.Int64("deleted", n), logger.Date("before", cutoff), logger.String("actor", actor.Name))
	return n, nil
}

func (w *Workflow) transition(ctx context.Context, id int64, actor model.Participant, apply func(*model.Claim) error) (model.Claim, error) {
	if err := Authorize(actor, ActionApprove); err != nil {
		return model.Claim{}, err
	}
	c, err := w.store.ClaimByID(ctx, id)
	if err != nil {
		return model.Claim{}, fmt.Errorf("approval.transition -> %w", err)
	}
	if err := apply(&c); err != nil {
		return model.Claim{}, err
	}
	if err := w.store.UpdateClaimStatus(ctx, c); err != nil {
		return model.Claim{}, fmt.Errorf("approval.transition -> %w", err)
	}
	metrics.RecordClaimResolved(string(c.Status))
	w.log.Info(ctx, "claim "+string(c.Status), logger.Int64("claim_id", id), logger.String("actor", actor.Name),
		logger.String("participant", c.Participant))
	return c, nil
}

func (w *Workflow) writeScheduleClaim(ctx context.Context, path string, c model.Claim) (SubmitResult, error) {
	existing, err := w.store.ClaimBySchedule(ctx, c.Participant, *c.ScheduleID)
	resubmitted := err == nil
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return SubmitResult{}, fmt.Errorf("approval.submit -> %w", err)
	}

	award, err := w.pricer.RecomputeForSchedule(ctx, existing.ID, c.Participant, c.Date, c.EventType)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("approval.submit -> %w", err)
	}
	c.Points = award.Points

	id, err := w.store.UpsertScheduleClaim(ctx, c)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("approval.submit -> %w", err)
	}

	metrics.RecordClaimSubmitted(path, string(c.Status), resubmitted)
	w.log.Info(ctx, "claim submitted",
		logger.Int64("claim_id", id),
		logger.String("path", path),
		logger.String("participant", c.Participant),
		logger.Int64("schedule_id", *c.ScheduleID),
		logger.Int("points", c.Points),
		logger.String("status", string(c.Status)),
		logger.Bool("resubmitted", resubmitted))
	return SubmitResult{
		ClaimID:     id,
		Status:      c.Status,
		Points:      c.Points,
		Award:       award,
		Resubmitted: resubmitted,
	}, nil
}

// stamp marks c approved by approver today.
func (w *Workflow) stamp(c *model.Claim, approver string) {
	today := w.pricer.Today()
	c.Status = model.StatusApproved
	c.ApprovedBy = &approver
	c.ApprovedDate = &today
}

// Authorize checks that actor is active and that its role grants action.
func Authorize(actor model.Participant, action Action) error {
	if !actor.Active {
		return fmt.Errorf("%w: %s", model.ErrInactiveParticipant, actor.Name)
	}
	if !Allowed(actor.Role, action) {
		return fmt.Errorf("%w: %s may not %s", model.ErrForbidden, actor.Role, action)
	}
	return nil
}
