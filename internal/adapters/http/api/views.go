package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"

	"github.com/okian/acolyte/internal/domain/approval"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/scoring"
	"github.com/okian/acolyte/internal/domain/settings"
)

var (
	errInvalidID   = errors.New("id must be a positive integer")
	errMissingDate = errors.New("date is required")
)

// parseDate accepts YYYY-MM-DD or an English phrase such as "today" or "last monday",
// read relative to today.
func parseDate(raw string, today time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errMissingDate
	}
	if d, err := model.ParseDate(raw); err == nil {
		return d, nil
	}
	if strings.EqualFold(raw, "today") {
		return model.Day(today), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	r, err := w.Parse(strings.ToLower(raw), today)
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
	}
	return model.Day(r.Time), nil
}

func formatDate(t time.Time) string {
	return t.Format(model.DateLayout)
}

type awardView struct {
	scoring.Award
	Date string `json:"date"`
}

func newAwardView(a scoring.Award) awardView {
	v := awardView{Award: a}
	if !a.Date.IsZero() {
		v.Date = formatDate(a.Date)
	}
	return v
}

type submitView struct {
	ClaimID     int64        `json:"claim_id,omitempty"`
	Status      model.Status `json:"status,omitempty"`
	Points      int          `json:"points"`
	Award       awardView    `json:"award"`
	Skipped     bool         `json:"skipped"`
	Resubmitted bool         `json:"resubmitted"`
}

func newSubmitView(r approval.SubmitResult) submitView {
	return submitView{
		ClaimID:     r.ClaimID,
		Status:      r.Status,
		Points:      r.Points,
		Award:       newAwardView(r.Award),
		Skipped:     r.Skipped,
		Resubmitted: r.Resubmitted,
	}
}

type claimView struct {
	ID           int64        `json:"id"`
	Participant  string       `json:"participant"`
	Date         string       `json:"date"`
	Points       int          `json:"points"`
	EventType    string       `json:"event_type"`
	Notes        string       `json:"notes"`
	Status       model.Status `json:"status"`
	ScheduleID   *int64       `json:"schedule_id,omitempty"`
	ApprovedBy   *string      `json:"approved_by,omitempty"`
	ApprovedDate *string      `json:"approved_date,omitempty"`
}

func newClaimView(c model.Claim) claimView {
	v := claimView{
		ID:          c.ID,
		Participant: c.Participant,
		Date:        formatDate(c.Date),
		Points:      c.Points,
		EventType:   c.EventType,
		Notes:       c.Notes,
		Status:      c.Status,
		ScheduleID:  c.ScheduleID,
		ApprovedBy:  c.ApprovedBy,
	}
	if c.ApprovedDate != nil {
		d := formatDate(*c.ApprovedDate)
		v.ApprovedDate = &d
	}
	return v
}

func newClaimViews(cs []model.Claim) []claimView {
	out := make([]claimView, 0, len(cs))
	for _, c := range cs {
		out = append(out, newClaimView(c))
	}
	return out
}

type participantView struct {
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	Active bool       `json:"active"`
}

type eventTypeView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Points          int    `json:"points"`
	Active          bool   `json:"active"`
	Description     string `json:"description"`
	BonusSecondMass bool   `json:"bonus_second_mass"`
	BonusPoints     int    `json:"bonus_points"`
}

func newEventTypeView(et model.EventType) eventTypeView {
	return eventTypeView(et)
}

func (v eventTypeView) model() model.EventType {
	return model.EventType(v)
}

type seasonView struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Active bool   `json:"active"`
}

func newSeasonView(se model.Season) seasonView {
	return seasonView{ID: se.ID, Name: se.Name, Start: formatDate(se.Start), End: formatDate(se.End), Active: se.Active}
}

type scheduleView struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	EventType string `json:"event_type"`
	Notes     string `json:"notes"`
}

func newScheduleView(ev model.ScheduledEvent) scheduleView {
	return scheduleView{ID: ev.ID, Date: formatDate(ev.Date), Time: ev.Time, EventType: ev.EventType, Notes: ev.Notes}
}

type settingsView struct {
	SecondMassBonus  bool     `json:"enable_second_mass_bonus"`
	SecondMassPoints int      `json:"points_second_mass"`
	MaxPointsPerDay  int      `json:"max_points_per_day"`
	CurrentSeasonID  int64    `json:"current_season_id"`
	Defaulted        []string `json:"defaulted"`
}

func newSettingsView(s settings.Settings) settingsView {
	d := s.Defaulted
	if d == nil {
		d = []string{}
	}
	return settingsView{
		SecondMassBonus:  s.SecondMassBonus,
		SecondMassPoints: s.SecondMassPoints,
		MaxPointsPerDay:  s.MaxPointsPerDay,
		CurrentSeasonID:  s.CurrentSeasonID,
		Defaulted:        d,
	}
}
