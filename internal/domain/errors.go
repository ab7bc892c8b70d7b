package domain

import "fmt"

// InvalidPatternError is returned when a recurrence pattern is malformed or
// its populated config does not match its kind. Never silently defaulted.
type InvalidPatternError struct {
	Reason string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid recurrence pattern: %s", e.Reason)
}

// ScheduleNotFoundError is returned when a schedule ID does not exist.
type ScheduleNotFoundError struct {
	ScheduleID string
}

func (e *ScheduleNotFoundError) Error() string {
	return fmt.Sprintf("schedule not found: %s", e.ScheduleID)
}

// TemplateNotFoundError is returned when a schedule references a task
// template that was deleted or never existed.
type TemplateNotFoundError struct {
	TemplateID string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("task template not found: %s", e.TemplateID)
}

// ConflictError is returned when a version-guarded schedule update loses a
// race against another runner. Expected and benign: the loser skips the
// schedule without creating a duplicate task.
type ConflictError struct {
	ScheduleID string
	Version    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule %s changed concurrently (expected version %d)", e.ScheduleID, e.Version)
}
