package kafka

import "time"

// TopicTaskGenerated carries one event per task the generator materializes.
// Keyed by task ID so replays of the same task land on the same partition.
const TopicTaskGenerated = "tasks.generated"

// TaskGeneratedEvent is the JSON payload published on TopicTaskGenerated and
// consumed by the notifier.
type TaskGeneratedEvent struct {
	TaskID     string    `json:"task_id"`
	ScheduleID string    `json:"schedule_id"`
	FirmID     string    `json:"firm_id"`
	Title      string    `json:"title"`
	ClientID   string    `json:"client_id,omitempty"`
	AssignedTo []string  `json:"assigned_to"`
	DueDate    time.Time `json:"due_date"`
}
