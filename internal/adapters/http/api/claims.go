package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/acolyte/internal/adapters/export"
	"github.com/okian/acolyte/internal/domain/approval"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/weekly"
)

// Default page sizes for claim listings.
const (
	defaultClaimsLimit = 100
	maxClaimsLimit     = 1000
)

// ClaimsHandler serves the claim workflow.
type ClaimsHandler struct {
	deps ClaimsDependencies
}

// NewClaimsHandler creates a new claims handler.
func NewClaimsHandler(deps ClaimsDependencies) *ClaimsHandler {
	return &ClaimsHandler{deps: deps}
}

type submitSelfRequest struct {
	ScheduleID int64  `json:"schedule_id"`
	Notes      string `json:"notes"`
}

// HandleSubmitSelf handles POST /claims/self. An unknown schedule id answers 200 with skipped set.
func (h *ClaimsHandler) HandleSubmitSelf(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_self"
	caller, _ := Caller(r.Context())
	var req submitSelfRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	if req.ScheduleID <= 0 {
		fail(w, WrapKind(op, ErrBadRequest, errInvalidID))
		return
	}
	res, err := h.deps.SubmitSelf(r.Context(), caller, req.ScheduleID, req.Notes)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, submitStatus(res), newSubmitView(res))
}

type submitManualRequest struct {
	Participant string `json:"participant"`
	Date        string `json:"date"`
	ScheduleID  int64  `json:"schedule_id"`
	EventType   string `json:"event_type"`
	Notes       string `json:"notes"`
}

// HandleSubmitManual handles POST /claims/manual.
func (h *ClaimsHandler) HandleSubmitManual(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_manual"
	caller, _ := Caller(r.Context())
	var req submitManualRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	entry := approval.ManualEntry{
		Participant: strings.TrimSpace(req.Participant),
		EventType:   req.EventType,
		Notes:       req.Notes,
	}
	if entry.Participant == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	if req.ScheduleID > 0 {
		id := req.ScheduleID
		entry.ScheduleID = &id
	}
	if req.Date != "" {
		d, err := parseDate(req.Date, h.deps.Today())
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		entry.Date = &d
	}
	res, err := h.deps.SubmitManual(r.Context(), caller, entry)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, submitStatus(res), newSubmitView(res))
}

func submitStatus(res approval.SubmitResult) int {
	if res.Skipped || res.Resubmitted {
		return http.StatusOK
	}
	return http.StatusCreated
}

// HandleApprove handles POST /claims/{id}/approve.
func (h *ClaimsHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.approve", h.deps.Approve)
}

// HandleReject handles POST /claims/{id}/reject.
func (h *ClaimsHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.reject", h.deps.Reject)
}

func (h *ClaimsHandler) transition(w http.ResponseWriter, r *http.Request, op string,
	apply func(ctx context.Context, id int64, actor model.Participant) (model.Claim, error),
) {
	caller, _ := Caller(r.Context())
	id, err := pathID(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	c, err := apply(r.Context(), id, caller)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newClaimView(c))
}

type editRequest struct {
	Points    *int    `json:"points"`
	EventType *string `json:"event_type"`
	Notes     *string `json:"notes"`
}

// HandleEdit handles PATCH /claims/{id}.
func (h *ClaimsHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_claim"
	caller, _ := Caller(r.Context())
	id, err := pathID(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	var req editRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	c, err := h.deps.EditClaim(r.Context(), id, caller, model.ClaimEdit{
		Points:    req.Points,
		EventType: req.EventType,
		Notes:     req.Notes,
	})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newClaimView(c))
}

// HandleDelete handles DELETE /claims/{id}.
func (h *ClaimsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_claim"
	caller, _ := Caller(r.Context())
	id, err := pathID(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.deps.DeleteClaim(r.Context(), id, caller); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// claimFilter reads participant, status, week, month, from and to query parameters.
// week takes any date and selects its Monday to Sunday; month takes YYYY-MM.
func (h *ClaimsHandler) claimFilter(r *http.Request, op string) (model.ClaimFilter, error) {
	q := r.URL.Query()
	f := model.ClaimFilter{Participant: strings.TrimSpace(q.Get("participant"))}
	if st := model.Status(q.Get("status")); st != "" {
		if !st.Valid() {
			return f, WrapKind(op, ErrBadRequest, fmt.Errorf("unknown status %q", st))
		}
		f.Status = st
	}
	today := h.deps.Today()
	if raw := q.Get("week"); raw != "" {
		d, err := parseDate(raw, today)
		if err != nil {
			return f, WrapKind(op, ErrBadRequest, err)
		}
		f.From = weekly.WeekStart(d)
		f.To = f.From.AddDate(0, 0, 6)
	}
	if raw := q.Get("month"); raw != "" {
		m, err := time.Parse("2006-01", raw)
		if err != nil {
			return f, WrapKind(op, ErrBadRequest, fmt.Errorf("month must be YYYY-MM"))
		}
		f.From = m
		f.To = m.AddDate(0, 1, -1)
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if raw := q.Get(key); raw != "" {
			d, err := parseDate(raw, today)
			if err != nil {
				return f, WrapKind(op, ErrBadRequest, err)
			}
			*dst = d
		}
	}
	return f, nil
}

func limit(r *http.Request, op string) (int, error) {
	n, err := queryInt(r, op, "limit", defaultClaimsLimit)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > maxClaimsLimit {
		n = maxClaimsLimit
	}
	return n, nil
}

// HandleList handles GET /claims. Participants only see their own claims.
func (h *ClaimsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_claims"
	f, err := h.claimFilter(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	if f.Limit, err = limit(r, op); err != nil {
		fail(w, err)
		return
	}
	caller, _ := Caller(r.Context())
	claims, err := h.deps.ListClaims(r.Context(), caller, f)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newClaimViews(claims))
}

// HandlePending handles GET /claims/pending for moderators.
func (h *ClaimsHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	const op = "api.pending_claims"
	caller, _ := Caller(r.Context())
	n, err := limit(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	claims, err := h.deps.PendingClaims(r.Context(), caller, n)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newClaimViews(claims))
}

type purgeRequest struct {
	Days int `json:"days"`
}

type purgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// HandlePurge handles POST /claims/purge.
func (h *ClaimsHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	const op = "api.purge_claims"
	caller, _ := Caller(r.Context())
	var req purgeRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	n, err := h.deps.Purge(r.Context(), caller, req.Days)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{Deleted: n})
}

// HandleExport handles GET /claims/export?format=csv|xlsx with the listing filters.
// The document is buffered so a failure can still be reported as JSON.
func (h *ClaimsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_claims"
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	f, err := h.claimFilter(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	caller, _ := Caller(r.Context())
	var buf bytes.Buffer
	if err := h.deps.Export(r.Context(), caller, &buf, format, f); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename("claims")+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
