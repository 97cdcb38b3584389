package store

import (
	"context"

	"taskbot/internal/model"
)

// CreateTaskInput carries the user-supplied fields for a new task.
// Validation and reminder scheduling happen inside CreateTask.
type CreateTaskInput struct {
	Title         string
	Description   string
	DeadlineMs    int64
	ReminderCount int
}

// TaskFilter controls filtering and pagination for task queries.
type TaskFilter struct {
	Status *string // model.StatusActive, model.StatusCompleted, or nil (all)
	Limit  int
	Offset int
}

// DueReminder pairs an overdue, unsent reminder with its owning task,
// ready for delivery.
type DueReminder struct {
	Task     model.Task
	Reminder model.Reminder
}

// Repository defines the persistence contract for tasks and their
// reminders. Two adapters satisfy it: the embedded sqlite store and the
// remote live store client.
type Repository interface {
	// CreateTask validates input, schedules reminders, and persists the
	// task together with its reminders atomically. Returns the stored
	// task with reminders populated.
	CreateTask(ctx context.Context, in CreateTaskInput) (model.Task, error)

	// GetTask returns a single task with its reminders loaded.
	GetTask(ctx context.Context, id int64) (*model.Task, error)

	// ListTasks returns tasks matching the filter, reminders included.
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)

	// CountTasks returns the number of tasks matching the filter.
	CountTasks(ctx context.Context, filter TaskFilter) (int, error)

	// CompleteTask transitions a task to completed. The transition is
	// one-way; completing an already-completed task is a no-op.
	CompleteTask(ctx context.Context, id int64) error

	// DeleteTask removes a task and all of its reminders.
	DeleteTask(ctx context.Context, id int64) error

	// DueReminders returns every reminder of an active task with
	// sent=false and time_ms <= nowMs.
	DueReminders(ctx context.Context, nowMs int64) ([]DueReminder, error)

	// MarkReminderSent flips a reminder's sent flag. Idempotent: marking
	// an already-sent reminder again is a no-op.
	MarkReminderSent(ctx context.Context, reminderID int64) error

	// Subscribe registers for change events of the given kinds (all
	// kinds when none are given). The caller must Cancel the returned
	// subscription when done.
	Subscribe(kinds ...EventKind) *Subscription

	// Close releases the backing connection.
	Close() error
}
