package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
)

// defaultScheduleDays is the look-ahead of GET /schedule without a range.
const defaultScheduleDays = 14

// AdminHandler manages participants, event types, seasons, the schedule and settings.
// Reads are public; writes require a caller and the service checks the permission table.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleListParticipants handles GET /participants.
func (h *AdminHandler) HandleListParticipants(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_participants"
	ps, err := h.deps.ListParticipants(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	out := make([]participantView, 0, len(ps))
	for _, p := range ps {
		out = append(out, participantView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type saveParticipantRequest struct {
	Role   model.Role `json:"role"`
	Active *bool      `json:"active"`
}

// HandleSaveParticipant handles PUT /participants/{name}. Active defaults to true.
func (h *AdminHandler) HandleSaveParticipant(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_participant"
	caller, _ := Caller(r.Context())
	var req saveParticipantRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	p := model.Participant{Name: strings.TrimSpace(r.PathValue("name")), Role: req.Role, Active: true}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := h.deps.SaveParticipant(r.Context(), caller, p); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if p.Role == "" {
		p.Role = model.RoleParticipant
	}
	writeJSON(w, http.StatusOK, participantView(p))
}

// HandleListEventTypes handles GET /event-types?active=true.
func (h *AdminHandler) HandleListEventTypes(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_event_types"
	activeOnly, err := queryBool(r, op, "active")
	if err != nil {
		fail(w, err)
		return
	}
	ets, err := h.deps.ListEventTypes(r.Context(), activeOnly)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	out := make([]eventTypeView, 0, len(ets))
	for _, et := range ets {
		out = append(out, newEventTypeView(et))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateEventType handles POST /event-types.
func (h *AdminHandler) HandleCreateEventType(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_event_type"
	caller, _ := Caller(r.Context())
	var req eventTypeView
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	id, err := h.deps.CreateEventType(r.Context(), caller, req.model())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	req.ID = id
	writeJSON(w, http.StatusCreated, req)
}

// HandleUpdateEventType handles PUT /event-types/{id}. Every field is replaced.
func (h *AdminHandler) HandleUpdateEventType(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_event_type"
	caller, _ := Caller(r.Context())
	id, err := pathID(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	var req eventTypeView
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	req.ID = id
	if err := h.deps.UpdateEventType(r.Context(), caller, req.model()); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// HandleListSeasons handles GET /seasons.
func (h *AdminHandler) HandleListSeasons(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_seasons"
	seasons, err := h.deps.ListSeasons(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	out := make([]seasonView, 0, len(seasons))
	for _, se := range seasons {
		out = append(out, newSeasonView(se))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateSeason handles POST /seasons.
func (h *AdminHandler) HandleCreateSeason(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_season"
	caller, _ := Caller(r.Context())
	var req seasonView
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	start, err := model.ParseDate(req.Start)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	end, err := model.ParseDate(req.End)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	se := model.Season{Name: req.Name, Start: start, End: end, Active: req.Active}
	id, err := h.deps.CreateSeason(r.Context(), caller, se)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	se.ID = id
	writeJSON(w, http.StatusCreated, newSeasonView(se))
}

// HandleDeleteSeason handles DELETE /seasons/{id}.
func (h *AdminHandler) HandleDeleteSeason(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_season"
	caller, _ := Caller(r.Context())
	id, err := pathID(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.deps.DeleteSeason(r.Context(), caller, id); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type currentSeasonRequest struct {
	ID int64 `json:"id"`
}

// HandleSetCurrentSeason handles PUT /seasons/current.
func (h *AdminHandler) HandleSetCurrentSeason(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_current_season"
	caller, _ := Caller(r.Context())
	var req currentSeasonRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	if req.ID <= 0 {
		fail(w, WrapKind(op, ErrBadRequest, errInvalidID))
		return
	}
	if err := h.deps.SetCurrentSeason(r.Context(), caller, req.ID); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// HandleListSchedule handles GET /schedule?from=&to=. Without a range it lists
// the next two weeks.
func (h *AdminHandler) HandleListSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_schedule"
	today := h.today()
	from, to := today, today.AddDate(0, 0, defaultScheduleDays)
	q := r.URL.Query()
	var err error
	if raw := q.Get("from"); raw != "" {
		if from, err = parseDate(raw, today); err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = parseDate(raw, today); err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	evs, err := h.deps.ListSchedule(r.Context(), from, to)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	out := make([]scheduleView, 0, len(evs))
	for _, ev := range evs {
		out = append(out, newScheduleView(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateSchedule handles POST /schedule.
func (h *AdminHandler) HandleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_schedule"
	caller, _ := Caller(r.Context())
	var req scheduleView
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	date, err := parseDate(req.Date, h.today())
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev := model.ScheduledEvent{Date: date, Time: req.Time, EventType: req.EventType, Notes: req.Notes}
	id, err := h.deps.CreateScheduledEvent(r.Context(), caller, ev)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	ev.ID = id
	writeJSON(w, http.StatusCreated, newScheduleView(ev))
}

// HandleDeleteSchedule handles DELETE /schedule/{id}.
func (h *AdminHandler) HandleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_schedule"
	caller, _ := Caller(r.Context())
	id, err := pathID(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.deps.DeleteScheduledEvent(r.Context(), caller, id); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSettings handles GET /settings.
func (h *AdminHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_settings"
	s, err := h.deps.Settings(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(s))
}

// HandleUpdateSettings handles PATCH /settings with a {key: value} object.
func (h *AdminHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_settings"
	caller, _ := Caller(r.Context())
	var req map[string]any
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	update := make(map[string]string, len(req))
	for k, v := range req {
		update[k] = fmt.Sprint(v)
	}
	s, err := h.deps.UpdateSettings(r.Context(), caller, update)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(s))
}

func (h *AdminHandler) today() time.Time {
	return h.deps.Today()
}
