package domain

import "time"

// RecurringSchedule binds a pattern to a task template, an optional client
// and a set of assignees, and carries the mutable generation state.
//
// Version is the optimistic-concurrency token: every advance or deactivation
// is conditional on the version read, so racing runners cannot materialize
// the same occurrence twice.
type RecurringSchedule struct {
	ID                 string            `json:"id"`
	FirmID             string            `json:"firm_id"`
	TemplateID         string            `json:"template_id"`
	ClientID           *string           `json:"client_id,omitempty"`
	AssignedTo         []string          `json:"assigned_to"`
	Pattern            RecurrencePattern `json:"pattern"`
	LastGeneratedAt    *time.Time        `json:"last_generated_at,omitempty"`
	NextGenerationDate time.Time         `json:"next_generation_date"`
	IsActive           bool              `json:"is_active"`
	OccurrenceCount    int               `json:"occurrence_count"`
	Version            int               `json:"version"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// EndConditionMet reports whether the schedule has run its course as of now.
func (s *RecurringSchedule) EndConditionMet(now time.Time) bool {
	switch s.Pattern.End.Kind {
	case EndAfterOccurrences:
		return s.OccurrenceCount >= s.Pattern.End.Count
	case EndByDate:
		return s.Pattern.End.Date != nil && now.After(*s.Pattern.End.Date)
	}
	return false
}

// GenerationFailure records a schedule that could not be processed in a run.
// The schedule stays due and is retried on the next run.
type GenerationFailure struct {
	ScheduleID string `json:"schedule_id"`
	Reason     string `json:"reason"`
}

// GenerationResult summarizes one runner pass. Skipped holds schedules
// deactivated because their end condition was met.
type GenerationResult struct {
	Created  []string            `json:"created"`
	Advanced []string            `json:"advanced"`
	Skipped  []string            `json:"skipped"`
	Failures []GenerationFailure `json:"failures,omitempty"`
}
