package model

import "time"

// Task status constants.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Reminder count bounds enforced at task creation.
const (
	MinReminderCount = 1
	MaxReminderCount = 10
)

// Task is a user-defined unit of work with a deadline and a set of
// scheduled reminders. Timestamps are milliseconds since the Unix epoch,
// the wire format shared with the remote store.
type Task struct {
	ID            int64  `json:"id" db:"id"`
	Title         string `json:"title" db:"title"`
	Description   string `json:"description" db:"description"`
	DeadlineMs    int64  `json:"deadline_ms" db:"deadline_ms"`
	ReminderCount int    `json:"reminder_count" db:"reminder_count"`
	CreatedAtMs   int64  `json:"created_at_ms" db:"created_at_ms"`
	Status        string `json:"status" db:"status"`

	// Reminders is populated by queries that load the owned reminder rows.
	Reminders []Reminder `json:"reminders,omitempty" db:"-"`
}

// Reminder is a single scheduled notification owned by a task.
// Its lifecycle is bound to the parent task (CASCADE delete), and the
// sent flag only ever transitions false -> true.
type Reminder struct {
	ID     int64 `json:"id" db:"id"`
	TaskID int64 `json:"task_id" db:"task_id"`
	TimeMs int64 `json:"time_ms" db:"time_ms"`
	Sent   bool  `json:"sent" db:"sent"`
}

// Deadline returns the task deadline as a time.Time.
func (t Task) Deadline() time.Time {
	return time.UnixMilli(t.DeadlineMs)
}

// CreatedAt returns the task creation instant as a time.Time.
func (t Task) CreatedAt() time.Time {
	return time.UnixMilli(t.CreatedAtMs)
}

// Completed reports whether the task has reached its terminal status.
func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// Time returns the scheduled delivery instant as a time.Time.
func (r Reminder) Time() time.Time {
	return time.UnixMilli(r.TimeMs)
}
