package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firmbeat/recurflow/internal/calendar"
	"github.com/firmbeat/recurflow/internal/domain"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeTemplates struct {
	byID map[string]*domain.TaskTemplate
}

func (f *fakeTemplates) Create(_ context.Context, tmpl *domain.TaskTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	f.byID[tmpl.ID] = tmpl
	return nil
}

func (f *fakeTemplates) GetByID(_ context.Context, id string) (*domain.TaskTemplate, error) {
	tmpl, ok := f.byID[id]
	if !ok {
		return nil, &domain.TemplateNotFoundError{TemplateID: id}
	}
	return tmpl, nil
}

type fakeSchedules struct {
	byID map[string]*domain.RecurringSchedule
}

func (f *fakeSchedules) Create(_ context.Context, sched *domain.RecurringSchedule) error {
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}
	sched.Version = 1
	copied := *sched
	f.byID[sched.ID] = &copied
	return nil
}

func (f *fakeSchedules) GetByID(_ context.Context, id string) (*domain.RecurringSchedule, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, &domain.ScheduleNotFoundError{ScheduleID: id}
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSchedules) ListByFirm(_ context.Context, firmID string, _ int) ([]*domain.RecurringSchedule, error) {
	var out []*domain.RecurringSchedule
	for _, s := range f.byID {
		if s.FirmID == firmID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSchedules) ListDue(_ context.Context, _ time.Time) ([]*domain.RecurringSchedule, error) {
	return nil, nil
}

func (f *fakeSchedules) Advance(_ context.Context, sched *domain.RecurringSchedule, _ *domain.Task, _ time.Time, _ time.Time) error {
	return &domain.ConflictError{ScheduleID: sched.ID, Version: sched.Version}
}

func (f *fakeSchedules) Deactivate(_ context.Context, id string, expectedVersion int) error {
	s, ok := f.byID[id]
	if !ok || !s.IsActive || s.Version != expectedVersion {
		return &domain.ConflictError{ScheduleID: id, Version: expectedVersion}
	}
	s.IsActive = false
	s.Version++
	return nil
}

func (f *fakeSchedules) SetActive(_ context.Context, id string, active bool, nextGeneration *time.Time) error {
	s, ok := f.byID[id]
	if !ok {
		return &domain.ScheduleNotFoundError{ScheduleID: id}
	}
	s.IsActive = active
	if nextGeneration != nil {
		s.NextGenerationDate = *nextGeneration
	}
	s.Version++
	return nil
}

type fakeTasks struct {
	bySchedule map[string][]*domain.Task
}

func (f *fakeTasks) Create(_ context.Context, task *domain.Task) error {
	f.bySchedule[task.ScheduleID] = append(f.bySchedule[task.ScheduleID], task)
	return nil
}

func (f *fakeTasks) ListBySchedule(_ context.Context, scheduleID string, limit int) ([]*domain.Task, error) {
	tasks := f.bySchedule[scheduleID]
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

type fakeRunner struct {
	result *domain.GenerationResult
	calls  int
}

func (f *fakeRunner) RunOnce(_ context.Context, _ time.Time) (*domain.GenerationResult, error) {
	f.calls++
	return f.result, nil
}

type fakeLimiter struct {
	allow bool
}

func (f *fakeLimiter) Allow(_ context.Context, _ string) (bool, error) { return f.allow, nil }
func (f *fakeLimiter) Limit() int                                      { return 3 }

// ── helpers ──────────────────────────────────────────────────────────────────

type fixture struct {
	handler   *REST
	templates *fakeTemplates
	schedules *fakeSchedules
	tasks     *fakeTasks
	runner    *fakeRunner
	limiter   *fakeLimiter
	router    chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		templates: &fakeTemplates{byID: make(map[string]*domain.TaskTemplate)},
		schedules: &fakeSchedules{byID: make(map[string]*domain.RecurringSchedule)},
		tasks:     &fakeTasks{bySchedule: make(map[string][]*domain.Task)},
		runner:    &fakeRunner{result: &domain.GenerationResult{}},
		limiter:   &fakeLimiter{allow: true},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.handler = NewREST(f.templates, f.schedules, f.tasks, f.runner, f.limiter, logger)

	r := chi.NewRouter()
	r.Post("/api/v1/templates", f.handler.CreateTemplate)
	r.Get("/api/v1/templates/{id}", f.handler.GetTemplate)
	r.Post("/api/v1/schedules", f.handler.CreateSchedule)
	r.Get("/api/v1/schedules", f.handler.ListSchedules)
	r.Get("/api/v1/schedules/{id}", f.handler.GetSchedule)
	r.Get("/api/v1/schedules/{id}/tasks", f.handler.ListScheduleTasks)
	r.Post("/api/v1/schedules/{id}/toggle", f.handler.ToggleSchedule)
	r.Delete("/api/v1/schedules/{id}", f.handler.DeleteSchedule)
	r.Post("/api/v1/patterns/preview", f.handler.PreviewPattern)
	r.Post("/api/v1/generate", f.handler.Generate)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedTemplate(t *testing.T) *domain.TaskTemplate {
	t.Helper()
	tmpl := &domain.TaskTemplate{FirmID: "firm-1", Title: "GSTR-3B filing"}
	require.NoError(t, f.templates.Create(context.Background(), tmpl))
	return tmpl
}

func monthlyPattern(day int) domain.RecurrencePattern {
	return domain.RecurrencePattern{
		Name:    "monthly filing",
		Kind:    domain.KindMonthly,
		Monthly: &domain.MonthlyConfig{Frequency: 1, DayOfMonth: day},
		End:     domain.EndCondition{Kind: domain.EndNever},
	}
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestCreateTemplate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/templates", CreateTemplateRequest{
		FirmID: "firm-1",
		Title:  "ITR filing",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var tmpl domain.TaskTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpl))
	assert.NotEmpty(t, tmpl.ID)
	assert.Equal(t, "ITR filing", tmpl.Title)
}

func TestCreateTemplate_MissingTitle(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/templates", CreateTemplateRequest{FirmID: "firm-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSchedule_FirstOccurrenceOnStartDate(t *testing.T) {
	f := newFixture(t)
	tmpl := f.seedTemplate(t)

	// Start date is itself a valid occurrence, so it must be the first one.
	rec := f.do(t, http.MethodPost, "/api/v1/schedules", CreateScheduleRequest{
		FirmID:     "firm-1",
		TemplateID: tmpl.ID,
		AssignedTo: []string{"user-1"},
		Pattern:    monthlyPattern(15),
		StartDate:  calendar.Date(2024, time.January, 15),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sched domain.RecurringSchedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sched))
	assert.True(t, sched.NextGenerationDate.Equal(calendar.Date(2024, time.January, 15)))
	assert.True(t, sched.IsActive)
}

func TestCreateSchedule_FirstOccurrenceAfterStartDate(t *testing.T) {
	f := newFixture(t)
	tmpl := f.seedTemplate(t)

	rec := f.do(t, http.MethodPost, "/api/v1/schedules", CreateScheduleRequest{
		FirmID:     "firm-1",
		TemplateID: tmpl.ID,
		Pattern:    monthlyPattern(10),
		StartDate:  calendar.Date(2024, time.January, 15),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sched domain.RecurringSchedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sched))
	assert.True(t, sched.NextGenerationDate.Equal(calendar.Date(2024, time.February, 10)))
}

func TestCreateSchedule_InvalidPattern(t *testing.T) {
	f := newFixture(t)
	tmpl := f.seedTemplate(t)

	pattern := monthlyPattern(32) // day out of range
	rec := f.do(t, http.MethodPost, "/api/v1/schedules", CreateScheduleRequest{
		FirmID:     "firm-1",
		TemplateID: tmpl.ID,
		Pattern:    pattern,
		StartDate:  calendar.Date(2024, time.January, 1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSchedule_UnknownTemplate(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/schedules", CreateScheduleRequest{
		FirmID:     "firm-1",
		TemplateID: "missing",
		Pattern:    monthlyPattern(15),
		StartDate:  calendar.Date(2024, time.January, 1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchedule_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/schedules/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleSchedule_ReactivationRecomputesNextDate(t *testing.T) {
	f := newFixture(t)
	tmpl := f.seedTemplate(t)

	create := f.do(t, http.MethodPost, "/api/v1/schedules", CreateScheduleRequest{
		FirmID:     "firm-1",
		TemplateID: tmpl.ID,
		Pattern:    monthlyPattern(15),
		StartDate:  calendar.Date(2020, time.January, 1),
	})
	require.Equal(t, http.StatusCreated, create.Code)
	var sched domain.RecurringSchedule
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &sched))

	off := f.do(t, http.MethodPost, "/api/v1/schedules/"+sched.ID+"/toggle", ToggleScheduleRequest{Active: false})
	require.Equal(t, http.StatusOK, off.Code)

	on := f.do(t, http.MethodPost, "/api/v1/schedules/"+sched.ID+"/toggle", ToggleScheduleRequest{Active: true})
	require.Equal(t, http.StatusOK, on.Code)

	var reactivated domain.RecurringSchedule
	require.NoError(t, json.Unmarshal(on.Body.Bytes(), &reactivated))
	assert.True(t, reactivated.IsActive)
	// Not the stale 2020 date: the next occurrence is on or after today.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	assert.False(t, reactivated.NextGenerationDate.Before(today),
		"re-activation must not leave a stale next date, got %s", reactivated.NextGenerationDate)
}

func TestDeleteSchedule_Deactivates(t *testing.T) {
	f := newFixture(t)
	tmpl := f.seedTemplate(t)

	create := f.do(t, http.MethodPost, "/api/v1/schedules", CreateScheduleRequest{
		FirmID:     "firm-1",
		TemplateID: tmpl.ID,
		Pattern:    monthlyPattern(15),
		StartDate:  calendar.Date(2024, time.January, 1),
	})
	require.Equal(t, http.StatusCreated, create.Code)
	var sched domain.RecurringSchedule
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &sched))

	del := f.do(t, http.MethodDelete, "/api/v1/schedules/"+sched.ID, nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	stored, err := f.schedules.GetByID(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "delete soft-disables, never removes")

	// Deleting again is a no-op.
	again := f.do(t, http.MethodDelete, "/api/v1/schedules/"+sched.ID, nil)
	assert.Equal(t, http.StatusNoContent, again.Code)
}

func TestListScheduleTasks(t *testing.T) {
	f := newFixture(t)
	tmpl := f.seedTemplate(t)

	create := f.do(t, http.MethodPost, "/api/v1/schedules", CreateScheduleRequest{
		FirmID:     "firm-1",
		TemplateID: tmpl.ID,
		Pattern:    monthlyPattern(15),
		StartDate:  calendar.Date(2024, time.January, 1),
	})
	require.Equal(t, http.StatusCreated, create.Code)
	var sched domain.RecurringSchedule
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &sched))

	for _, due := range []time.Time{
		calendar.Date(2024, time.January, 15),
		calendar.Date(2024, time.February, 15),
	} {
		require.NoError(t, f.tasks.Create(context.Background(), &domain.Task{
			ID:         due.Format("2006-01-02"),
			FirmID:     "firm-1",
			ScheduleID: sched.ID,
			Title:      tmpl.Title,
			DueDate:    due,
		}))
	}

	rec := f.do(t, http.MethodGet, "/api/v1/schedules/"+sched.ID+"/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tasks []domain.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, sched.ID, resp.Tasks[0].ScheduleID)

	limited := f.do(t, http.MethodGet, "/api/v1/schedules/"+sched.ID+"/tasks?limit=1", nil)
	require.Equal(t, http.StatusOK, limited.Code)
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 1)
}

func TestListScheduleTasks_UnknownSchedule(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/schedules/nope/tasks", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewPattern(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/patterns/preview", PreviewRequest{
		Pattern: monthlyPattern(31),
		From:    calendar.Date(2024, time.January, 15),
		Count:   3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Occurrences []string `json:"occurrences"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31"}, resp.Occurrences)
}

func TestPreviewPattern_InvalidPattern(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/patterns/preview", PreviewRequest{
		Pattern: domain.RecurrencePattern{Kind: domain.KindMonthly}, // config missing
		From:    calendar.Date(2024, time.January, 1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)
	f.runner.result = &domain.GenerationResult{
		Created:  []string{"task-1"},
		Advanced: []string{"sched-1"},
	}

	rec := f.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{FirmID: "firm-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.runner.calls)

	var result domain.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{"task-1"}, result.Created)
}

func TestGenerate_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.allow = false

	rec := f.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{FirmID: "firm-1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 0, f.runner.calls, "a rate-limited trigger must not start a pass")
}

func TestGenerate_MissingFirmID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
