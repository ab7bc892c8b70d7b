package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/firmbeat/recurflow/internal/calendar"
	"github.com/firmbeat/recurflow/internal/domain"
	"github.com/firmbeat/recurflow/internal/postgres"
	"github.com/firmbeat/recurflow/internal/recur"
	redisstore "github.com/firmbeat/recurflow/internal/redis"
	"github.com/firmbeat/recurflow/pkg/telemetry"
)

const (
	defaultListLimit   = 100
	defaultPreviewLen  = 6
	maxPreviewLen      = 60
	generateRunTimeout = 2 * time.Minute
)

// GenerationRunner is the slice of the generator the API needs to serve a
// manual "generate now" trigger.
type GenerationRunner interface {
	RunOnce(ctx context.Context, now time.Time) (*domain.GenerationResult, error)
}

// REST handles HTTP requests for the admin API.
type REST struct {
	templates postgres.TemplateRepository
	schedules postgres.ScheduleRepository
	tasks     postgres.TaskRepository
	runner    GenerationRunner
	limiter   redisstore.RateLimiter
	logger    *slog.Logger
}

// NewREST creates a new REST handler.
func NewREST(
	templates postgres.TemplateRepository,
	schedules postgres.ScheduleRepository,
	tasks postgres.TaskRepository,
	runner GenerationRunner,
	limiter redisstore.RateLimiter,
	logger *slog.Logger,
) *REST {
	return &REST{
		templates: templates,
		schedules: schedules,
		tasks:     tasks,
		runner:    runner,
		limiter:   limiter,
		logger:    logger,
	}
}

// CreateTemplateRequest is the JSON body for POST /api/v1/templates.
type CreateTemplateRequest struct {
	FirmID      string   `json:"firm_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subtasks    []string `json:"subtasks,omitempty"`
	PricePaise  int64    `json:"price_paise,omitempty"`
	IsPayable   bool     `json:"is_payable,omitempty"`
}

// CreateTemplate handles POST /api/v1/templates.
func (h *REST) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.FirmID) == "" {
		writeError(w, http.StatusBadRequest, "field 'firm_id' is required")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "field 'title' is required")
		return
	}

	tmpl := &domain.TaskTemplate{
		FirmID:      req.FirmID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Subtasks:    req.Subtasks,
		PricePaise:  req.PricePaise,
		IsPayable:   req.IsPayable,
	}
	if err := h.templates.Create(r.Context(), tmpl); err != nil {
		h.logger.Error("create template", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}

	h.logger.Info("template created",
		slog.String("template_id", tmpl.ID),
		slog.String("firm_id", tmpl.FirmID),
	)
	writeJSON(w, http.StatusCreated, tmpl)
}

// GetTemplate handles GET /api/v1/templates/{id}.
func (h *REST) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.templates.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var notFound *domain.TemplateNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		h.logger.Error("get template", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to retrieve template")
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// CreateScheduleRequest is the JSON body for POST /api/v1/schedules.
// StartDate anchors the pattern: the first occurrence is the earliest date on
// or after StartDate that the pattern accepts.
type CreateScheduleRequest struct {
	FirmID     string                   `json:"firm_id"`
	TemplateID string                   `json:"template_id"`
	ClientID   *string                  `json:"client_id,omitempty"`
	AssignedTo []string                 `json:"assigned_to"`
	Pattern    domain.RecurrencePattern `json:"pattern"`
	StartDate  time.Time                `json:"start_date"`
}

// CreateSchedule handles POST /api/v1/schedules.
func (h *REST) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("api").Start(r.Context(), "api.create_schedule")
	defer span.End()

	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.FirmID) == "" {
		writeError(w, http.StatusBadRequest, "field 'firm_id' is required")
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		writeError(w, http.StatusBadRequest, "field 'template_id' is required")
		return
	}
	if req.StartDate.IsZero() {
		writeError(w, http.StatusBadRequest, "field 'start_date' is required")
		return
	}
	if err := req.Pattern.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.templates.GetByID(ctx, req.TemplateID); err != nil {
		var notFound *domain.TemplateNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusBadRequest, "template does not exist")
			return
		}
		h.logger.Error("load template", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}

	// The occurrence engine yields dates strictly after its anchor, so anchor
	// one day before the start date to let the start date itself qualify.
	first, err := recur.Next(&req.Pattern, req.StartDate.AddDate(0, 0, -1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched := &domain.RecurringSchedule{
		FirmID:             req.FirmID,
		TemplateID:         req.TemplateID,
		ClientID:           req.ClientID,
		AssignedTo:         req.AssignedTo,
		Pattern:            req.Pattern,
		NextGenerationDate: first,
		IsActive:           true,
	}
	if err := h.schedules.Create(ctx, sched); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schedule insert failed")
		h.logger.Error("create schedule", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}

	span.SetAttributes(
		attribute.String("schedule.id", sched.ID),
		attribute.String("schedule.firm_id", sched.FirmID),
	)
	telemetry.APISchedulesCreated.Inc()
	h.logger.Info("schedule created",
		slog.String("schedule_id", sched.ID),
		slog.String("firm_id", sched.FirmID),
		slog.Time("first_occurrence", first),
	)
	writeJSON(w, http.StatusCreated, sched)
}

// GetSchedule handles GET /api/v1/schedules/{id}.
func (h *REST) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.schedules.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var notFound *domain.ScheduleNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("get schedule", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to retrieve schedule")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// ListSchedules handles GET /api/v1/schedules?firm_id=...&limit=...
func (h *REST) ListSchedules(w http.ResponseWriter, r *http.Request) {
	firmID := r.URL.Query().Get("firm_id")
	if firmID == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'firm_id' is required")
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "query parameter 'limit' must be a positive integer")
			return
		}
		limit = n
	}

	scheds, err := h.schedules.ListByFirm(r.Context(), firmID, limit)
	if err != nil {
		h.logger.Error("list schedules", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if scheds == nil {
		scheds = []*domain.RecurringSchedule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": scheds})
}

// ListScheduleTasks handles GET /api/v1/schedules/{id}/tasks — the generation
// history: every task this schedule has materialized, most recent first.
func (h *REST) ListScheduleTasks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.schedules.GetByID(r.Context(), id); err != nil {
		var notFound *domain.ScheduleNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("get schedule", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "query parameter 'limit' must be a positive integer")
			return
		}
		limit = n
	}

	tasks, err := h.tasks.ListBySchedule(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("list tasks", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// ToggleScheduleRequest is the JSON body for POST /api/v1/schedules/{id}/toggle.
type ToggleScheduleRequest struct {
	Active bool `json:"is_active"`
}

// ToggleSchedule handles POST /api/v1/schedules/{id}/toggle. Re-activating a
// schedule recomputes its next occurrence from today so a long pause does not
// dump a backlog of stale occurrences on the next generation pass.
func (h *REST) ToggleSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ToggleScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if err != nil {
		var notFound *domain.ScheduleNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("get schedule", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}

	var nextGeneration *time.Time
	if req.Active && !sched.IsActive {
		now := time.Now().UTC()
		anchor := calendar.Date(now.Year(), now.Month(), now.Day()).AddDate(0, 0, -1)
		next, err := recur.Next(&sched.Pattern, anchor)
		if err != nil {
			h.logger.Error("recompute next occurrence", slog.String("schedule_id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to update schedule")
			return
		}
		nextGeneration = &next
	}

	if err := h.schedules.SetActive(r.Context(), id, req.Active, nextGeneration); err != nil {
		var notFound *domain.ScheduleNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("toggle schedule", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}

	h.logger.Info("schedule toggled",
		slog.String("schedule_id", id),
		slog.Bool("active", req.Active),
	)

	updated, err := h.schedules.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retrieve schedule")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSchedule handles DELETE /api/v1/schedules/{id}. Schedules are never
// hard-deleted: tasks already materialized keep referencing them.
func (h *REST) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sched, err := h.schedules.GetByID(r.Context(), id)
	if err != nil {
		var notFound *domain.ScheduleNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("get schedule", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	if !sched.IsActive {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.schedules.Deactivate(r.Context(), id, sched.Version); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			writeError(w, http.StatusConflict, "schedule was modified concurrently, retry")
			return
		}
		h.logger.Error("deactivate schedule", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}

	h.logger.Info("schedule deactivated", slog.String("schedule_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// PreviewRequest is the JSON body for POST /api/v1/patterns/preview.
type PreviewRequest struct {
	Pattern domain.RecurrencePattern `json:"pattern"`
	From    time.Time                `json:"from"`
	Count   int                      `json:"count,omitempty"`
}

// PreviewPattern handles POST /api/v1/patterns/preview. It returns the next
// occurrence dates without persisting anything, so the UI can show "this
// pattern fires on ..." while the user edits it.
func (h *REST) PreviewPattern(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.From.IsZero() {
		req.From = time.Now().UTC()
	}
	count := req.Count
	if count <= 0 {
		count = defaultPreviewLen
	}
	if count > maxPreviewLen {
		count = maxPreviewLen
	}

	dates, err := recur.Preview(&req.Pattern, req.From, count)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occurrences := make([]string, len(dates))
	for i, d := range dates {
		occurrences[i] = d.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, map[string]any{"occurrences": occurrences})
}

// GenerateRequest is the JSON body for POST /api/v1/generate.
type GenerateRequest struct {
	FirmID string `json:"firm_id"`
}

// Generate handles POST /api/v1/generate — the manual "generate now" trigger.
// Rate-limited per firm; the pass itself covers every due schedule, and the
// version guard makes an overlap with the cron-driven runner harmless.
func (h *REST) Generate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("api").Start(r.Context(), "api.generate_now")
	defer span.End()

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.FirmID) == "" {
		writeError(w, http.StatusBadRequest, "field 'firm_id' is required")
		return
	}
	span.SetAttributes(attribute.String("firm_id", req.FirmID))

	if h.limiter != nil {
		ok, err := h.limiter.Allow(ctx, req.FirmID)
		if err != nil {
			h.logger.Error("rate limiter", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to run generation")
			return
		}
		if !ok {
			telemetry.APIManualRuns.WithLabelValues("rate_limited").Inc()
			writeError(w, http.StatusTooManyRequests, "too many generation runs, try again later")
			return
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, generateRunTimeout)
	defer cancel()

	result, err := h.runner.RunOnce(runCtx, time.Now().UTC())
	if err != nil {
		telemetry.APIManualRuns.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation pass failed")
		h.logger.Error("manual generation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "generation run failed")
		return
	}

	telemetry.APIManualRuns.WithLabelValues("ok").Inc()
	h.logger.Info("manual generation complete",
		slog.String("firm_id", req.FirmID),
		slog.Int("created", len(result.Created)),
		slog.Int("failures", len(result.Failures)),
	)
	writeJSON(w, http.StatusOK, result)
}

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz — checks Postgres connectivity via a cheap read.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.schedules.ListDue(ctx, time.Time{}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
