package domain

import "time"

// TaskTemplate is the reusable blueprint a schedule materializes tasks from.
type TaskTemplate struct {
	ID          string    `json:"id"`
	FirmID      string    `json:"firm_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Subtasks    []string  `json:"subtasks,omitempty"`
	PricePaise  int64     `json:"price_paise,omitempty"`
	IsPayable   bool      `json:"is_payable"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task is a concrete work item materialized from a template for one
// occurrence. DueDate is the occurrence date the generator computed.
type Task struct {
	ID                  string    `json:"id"`
	FirmID              string    `json:"firm_id"`
	TemplateID          string    `json:"template_id"`
	ScheduleID          string    `json:"schedule_id"`
	ClientID            *string   `json:"client_id,omitempty"`
	AssignedTo          []string  `json:"assigned_to"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	Category            string    `json:"category,omitempty"`
	DueDate             time.Time `json:"due_date"`
	IsRecurring         bool      `json:"is_recurring"`
	RecurrencePatternID string    `json:"recurrence_pattern_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
