// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/acolyte/internal/adapters/export"
	"github.com/okian/acolyte/internal/domain/approval"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/scoring"
	"github.com/okian/acolyte/internal/domain/settings"
	"github.com/okian/acolyte/internal/domain/types"
	"github.com/okian/acolyte/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IdentityResolver
	PointsDependencies
	ClaimsDependencies
	LeaderboardDependencies
	AdminDependencies
	HealthChecker
	StatsProvider
}

// PointsDependencies computes awards and counts without writing.
type PointsDependencies interface {
	Today() time.Time
	ComputeForSelf(ctx context.Context, participant, eventType string) (scoring.Award, error)
	ComputeForSchedule(ctx context.Context, participant string, date time.Time, eventType string) (scoring.Award, error)
	WeeklyCount(ctx context.Context, participant string, weekStart time.Time, includePending bool) (int, error)
	InSeason(ctx context.Context, date time.Time) (bool, error)
}

// ClaimsDependencies drives the claim workflow.
type ClaimsDependencies interface {
	Today() time.Time
	SubmitSelf(ctx context.Context, actor model.Participant, scheduleID int64, notes string) (approval.SubmitResult, error)
	SubmitManual(ctx context.Context, actor model.Participant, entry approval.ManualEntry) (approval.SubmitResult, error)
	Approve(ctx context.Context, id int64, actor model.Participant) (model.Claim, error)
	Reject(ctx context.Context, id int64, actor model.Participant) (model.Claim, error)
	EditClaim(ctx context.Context, id int64, actor model.Participant, edit model.ClaimEdit) (model.Claim, error)
	DeleteClaim(ctx context.Context, id int64, actor model.Participant) error
	Purge(ctx context.Context, actor model.Participant, days int) (int64, error)
	ListClaims(ctx context.Context, actor model.Participant, f model.ClaimFilter) ([]model.Claim, error)
	PendingClaims(ctx context.Context, actor model.Participant, limit int) ([]model.Claim, error)
	Export(ctx context.Context, actor model.Participant, w io.Writer, format export.Format, f model.ClaimFilter) error
}

// LeaderboardDependencies exposes ranking reads.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int) ([]types.Entry, error)
	ParticipantStats(ctx context.Context, name string) (types.Stats, error)
}

// AdminDependencies manages participants, the catalog, seasons, the schedule and settings.
type AdminDependencies interface {
	Today() time.Time
	ListParticipants(ctx context.Context) ([]model.Participant, error)
	SaveParticipant(ctx context.Context, actor model.Participant, p model.Participant) error
	ListEventTypes(ctx context.Context, activeOnly bool) ([]model.EventType, error)
	CreateEventType(ctx context.Context, actor model.Participant, et model.EventType) (int64, error)
	UpdateEventType(ctx context.Context, actor model.Participant, et model.EventType) error
	ListSeasons(ctx context.Context) ([]model.Season, error)
	CreateSeason(ctx context.Context, actor model.Participant, se model.Season) (int64, error)
	DeleteSeason(ctx context.Context, actor model.Participant, id int64) error
	SetCurrentSeason(ctx context.Context, actor model.Participant, id int64) error
	ListSchedule(ctx context.Context, from, to time.Time) ([]model.ScheduledEvent, error)
	CreateScheduledEvent(ctx context.Context, actor model.Participant, ev model.ScheduledEvent) (int64, error)
	DeleteScheduledEvent(ctx context.Context, actor model.Participant, id int64) error
	Settings(ctx context.Context) (settings.Settings, error)
	UpdateSettings(ctx context.Context, actor model.Participant, update map[string]string) (settings.Settings, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	pointsHandler      *PointsHandler
	claimsHandler      *ClaimsHandler
	leaderboardHandler *LeaderboardHandler
	adminHandler       *AdminHandler

	identity *Identity
	limiter  *SubmitLimiter
	log      logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxLimit   int
	ratePerMin int
	burst      int
	log        logger.Logger
}

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(n int) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithSubmitRate throttles submissions per participant. perMinute 0 disables throttling.
func WithSubmitRate(perMinute, burst int) ServerOption {
	return func(c *serverConfig) {
		c.ratePerMin = perMinute
		c.burst = burst
	}
}

// WithServerLogger sets the access logger.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	cfg := serverConfig{maxLimit: defaultMaxLimit, ratePerMin: 30, burst: 5}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.Get().Named("http")
	}
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		pointsHandler:      NewPointsHandler(deps),
		claimsHandler:      NewClaimsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		adminHandler:       NewAdminHandler(deps),
		identity:           NewIdentity(deps),
		limiter:            NewSubmitLimiter(cfg.ratePerMin, cfg.burst),
		log:                cfg.log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	open := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}
	authed := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.identity.Require(h), endpoint))
	}
	throttled := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.identity.Require(s.limiter.Limit(h)), endpoint))
	}

	open("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	open("GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	open("GET /stats", "stats", s.statsHandler.HandleStats)

	authed("GET /points/self", "points_self", s.pointsHandler.HandleSelf)
	open("GET /points/schedule", "points_schedule", s.pointsHandler.HandleSchedule)
	open("GET /weekly-count", "weekly_count", s.pointsHandler.HandleWeeklyCount)
	open("GET /season/check", "season_check", s.pointsHandler.HandleSeasonCheck)

	throttled("POST /claims/self", "claims_self", s.claimsHandler.HandleSubmitSelf)
	throttled("POST /claims/manual", "claims_manual", s.claimsHandler.HandleSubmitManual)
	authed("POST /claims/{id}/approve", "claims_approve", s.claimsHandler.HandleApprove)
	authed("POST /claims/{id}/reject", "claims_reject", s.claimsHandler.HandleReject)
	authed("PATCH /claims/{id}", "claims_edit", s.claimsHandler.HandleEdit)
	authed("DELETE /claims/{id}", "claims_delete", s.claimsHandler.HandleDelete)
	authed("GET /claims", "claims_list", s.claimsHandler.HandleList)
	authed("GET /claims/pending", "claims_pending", s.claimsHandler.HandlePending)
	authed("POST /claims/purge", "claims_purge", s.claimsHandler.HandlePurge)
	authed("GET /claims/export", "claims_export", s.claimsHandler.HandleExport)

	open("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	open("GET /participants/{name}/stats", "participant_stats", s.leaderboardHandler.HandleParticipantStats)

	open("GET /participants", "participants_list", s.adminHandler.HandleListParticipants)
	authed("PUT /participants/{name}", "participants_save", s.adminHandler.HandleSaveParticipant)
	open("GET /event-types", "event_types_list", s.adminHandler.HandleListEventTypes)
	authed("POST /event-types", "event_types_create", s.adminHandler.HandleCreateEventType)
	authed("PUT /event-types/{id}", "event_types_update", s.adminHandler.HandleUpdateEventType)
	open("GET /seasons", "seasons_list", s.adminHandler.HandleListSeasons)
	authed("POST /seasons", "seasons_create", s.adminHandler.HandleCreateSeason)
	authed("DELETE /seasons/{id}", "seasons_delete", s.adminHandler.HandleDeleteSeason)
	authed("PUT /seasons/current", "seasons_current", s.adminHandler.HandleSetCurrentSeason)
	open("GET /schedule", "schedule_list", s.adminHandler.HandleListSchedule)
	authed("POST /schedule", "schedule_create", s.adminHandler.HandleCreateSchedule)
	authed("DELETE /schedule/{id}", "schedule_delete", s.adminHandler.HandleDeleteSchedule)
	open("GET /settings", "settings_get", s.adminHandler.HandleGetSettings)
	authed("PATCH /settings", "settings_update", s.adminHandler.HandleUpdateSettings)
}

// Handler wraps mux with request ids and access logging.
func (s *Server) Handler(mux http.Handler) http.Handler {
	return RequestIDMiddleware(mux, s.log)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail renders err with the status its kind maps to.
func fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func decode(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, op string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, WrapKind(op, ErrBadRequest, errInvalidID)
	}
	return id, nil
}

func queryInt(r *http.Request, op, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("%s must be a non-negative integer", key))
	}
	return n, nil
}

func queryBool(r *http.Request, op, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, WrapKind(op, ErrBadRequest, fmt.Errorf("%s must be a boolean", key))
	}
	return b, nil
}
