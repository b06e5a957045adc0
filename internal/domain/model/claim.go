package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Claim is one participant's attendance record for one event occurrence.
type Claim struct {
	ID           int64
	Participant  string
	Date         time.Time
	Points       int
	EventType    string
	Notes        string
	Status       Status
	ScheduleID   *int64
	ApprovedBy   *string
	ApprovedDate *time.Time
}

// Approve moves a pending claim to approved and stamps the approver.
func (c *Claim) Approve(approver string, on time.Time) error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: cannot approve %s claim", ErrInvalidTransition, c.Status)
	}
	d := Day(on)
	c.Status = StatusApproved
	c.ApprovedBy = &approver
	c.ApprovedDate = &d
	return nil
}

// Reject moves a pending claim to rejected. No approver is recorded.
func (c *Claim) Reject() error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: cannot reject %s claim", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusRejected
	return nil
}

// ClaimEdit carries the fields an administrative correction may change.
// Nil fields are left untouched.
type ClaimEdit struct {
	Points    *int
	EventType *string
	Notes     *string
}

// Empty reports whether the edit changes nothing.
func (e ClaimEdit) Empty() bool {
	return e.Points == nil && e.EventType == nil && e.Notes == nil
}

// Apply copies the set fields onto c. Status is never touched.
func (e ClaimEdit) Apply(c *Claim) {
	if e.Points != nil {
		c.Points = *e.Points
	}
	if e.EventType != nil {
		c.EventType = *e.EventType
	}
	if e.Notes != nil {
		c.Notes = *e.Notes
	}
}

// ClaimFilter narrows claim listings. Zero values mean "any".
type ClaimFilter struct {
	Participant string
	Status      Status
	From        time.Time
	To          time.Time
	Limit       int
}

// ClaimCount selects claims for the weekly occurrence counter.
type ClaimCount struct {
	Participant string
	From        time.Time
	To          time.Time
	// Statuses restricts the count; nil means any status.
	Statuses []Status
	// ExcludeID leaves one claim out, so a claim being re-priced does not count itself.
	ExcludeID int64
}
