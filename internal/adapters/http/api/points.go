package api

import (
	"net/http"
	"strings"

	"github.com/okian/acolyte/internal/domain/weekly"
)

// PointsHandler serves read-only point computations.
type PointsHandler struct {
	deps PointsDependencies
}

// NewPointsHandler creates a new points handler.
func NewPointsHandler(deps PointsDependencies) *PointsHandler {
	return &PointsHandler{deps: deps}
}

// HandleSelf handles GET /points/self?event_type= for the caller.
func (h *PointsHandler) HandleSelf(w http.ResponseWriter, r *http.Request) {
	const op = "api.points_self"
	caller, _ := Caller(r.Context())
	eventType := strings.TrimSpace(r.URL.Query().Get("event_type"))
	if eventType == "" {
		eventType = "standard"
	}
	award, err := h.deps.ComputeForSelf(r.Context(), caller.Name, eventType)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newAwardView(award))
}

// HandleSchedule handles GET /points/schedule?participant=&date=&event_type=.
func (h *PointsHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.points_schedule"
	q := r.URL.Query()
	participant := strings.TrimSpace(q.Get("participant"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	if participant == "" || eventType == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	date, err := parseDate(q.Get("date"), h.deps.Today())
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	award, err := h.deps.ComputeForSchedule(r.Context(), participant, date, eventType)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newAwardView(award))
}

type weeklyCountResponse struct {
	Participant    string `json:"participant"`
	WeekStart      string `json:"week_start"`
	IncludePending bool   `json:"include_pending"`
	Count          int    `json:"count"`
}

// HandleWeeklyCount handles GET /weekly-count?participant=&week_start=&include_pending=.
// week_start may be any day of the week; it is normalized to Monday.
func (h *PointsHandler) HandleWeeklyCount(w http.ResponseWriter, r *http.Request) {
	const op = "api.weekly_count"
	q := r.URL.Query()
	participant := strings.TrimSpace(q.Get("participant"))
	if participant == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	raw := q.Get("week_start")
	if raw == "" {
		raw = "today"
	}
	start, err := parseDate(raw, h.deps.Today())
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	includePending, err := queryBool(r, op, "include_pending")
	if err != nil {
		fail(w, err)
		return
	}
	n, err := h.deps.WeeklyCount(r.Context(), participant, start, includePending)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, weeklyCountResponse{
		Participant:    participant,
		WeekStart:      formatDate(weekly.WeekStart(start)),
		IncludePending: includePending,
		Count:          n,
	})
}

type seasonCheckResponse struct {
	Date     string `json:"date"`
	InSeason bool   `json:"in_season"`
}

// HandleSeasonCheck handles GET /season/check?date=. The date defaults to today.
func (h *PointsHandler) HandleSeasonCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.season_check"
	raw := r.URL.Query().Get("date")
	if raw == "" {
		raw = "today"
	}
	date, err := parseDate(raw, h.deps.Today())
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ok, err := h.deps.InSeason(r.Context(), date)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, seasonCheckResponse{Date: formatDate(date), InSeason: ok})
}
