// Package model contains domain models passed between layers.
package model

import "time"

// DateLayout is the calendar date format used at every boundary.
const DateLayout = "2006-01-02"

// Role is a participant's privilege level.
type Role string

const (
	RoleParticipant   Role = "participant"
	RoleModerator     Role = "moderator"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleModerator, RoleAdministrator:
		return true
	}
	return false
}

// Participant is a volunteer identified by a unique name.
type Participant struct {
	Name   string
	Role   Role
	Active bool
}

// EventType is a named category of recurring event.
type EventType struct {
	ID          int64
	Name        string
	Points      int
	Active      bool
	Description string
	// BonusSecondMass enables BonusPoints for the second or later occurrence in a week.
	BonusSecondMass bool
	BonusPoints     int
}

// Season is a scoring window with inclusive bounds.
type Season struct {
	ID     int64
	Name   string
	Start  time.Time
	End    time.Time
	Active bool
}

// Contains reports whether date falls in [Start, End].
func (s Season) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(s.Start)) && !d.After(Day(s.End))
}

// ScheduledEvent is one pre-planned event occurrence.
type ScheduledEvent struct {
	ID        int64
	Date      time.Time
	Time      string // HH:MM
	EventType string
	Notes     string
}

// Day returns the calendar date of t, as read in t's own location, at midnight UTC.
// Every stored or compared date goes through Day so zones never shift a day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
