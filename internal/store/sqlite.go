package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"taskbot/internal/model"
	"taskbot/internal/schedule"
)

// SQLiteStore implements the Repository interface using a local SQLite
// database. It is the local-persistence deployment mode; change events
// are emitted in-process through an EventHub.
type SQLiteStore struct {
	db  *sqlx.DB
	hub *EventHub

	// now is swappable in tests to pin task creation times.
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys so reminder rows cascade with their task.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, hub: NewEventHub(), now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close cancels subscriptions and closes the database connection.
func (s *SQLiteStore) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// SetNowFunc overrides the wall clock used for task creation timestamps.
// Intended for tests.
func (s *SQLiteStore) SetNowFunc(now func() time.Time) {
	s.now = now
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateTask validates input, computes the reminder schedule, and
// persists the task with its reminders in one transaction.
func (s *SQLiteStore) CreateTask(
	ctx context.Context,
	in CreateTaskInput,
) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}

	nowMs := s.now().UnixMilli()
	if in.DeadlineMs <= nowMs {
		return model.Task{}, fmt.Errorf("%w: deadline must be in the future", ErrInvalidInput)
	}

	times, err := schedule.Times(nowMs, in.DeadlineMs, in.ReminderCount)
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Task{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (title, description, deadline_ms, reminder_count, created_at_ms, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		title, in.Description, in.DeadlineMs, in.ReminderCount,
		nowMs, model.StatusActive,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("inserting task: %w", err)
	}

	taskID, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("reading task id: %w", err)
	}

	task := model.Task{
		ID:            taskID,
		Title:         title,
		Description:   in.Description,
		DeadlineMs:    in.DeadlineMs,
		ReminderCount: in.ReminderCount,
		CreatedAtMs:   nowMs,
		Status:        model.StatusActive,
	}

	for _, timeMs := range times {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO reminders (task_id, time_ms, sent) VALUES (?, ?, 0)",
			taskID, timeMs,
		)
		if err != nil {
			return model.Task{}, fmt.Errorf("inserting reminder for task %d: %w", taskID, err)
		}
		reminderID, err := res.LastInsertId()
		if err != nil {
			return model.Task{}, fmt.Errorf("reading reminder id: %w", err)
		}
		task.Reminders = append(task.Reminders, model.Reminder{
			ID:     reminderID,
			TaskID: taskID,
			TimeMs: timeMs,
		})
	}

	if err := tx.Commit(); err != nil {
		return model.Task{}, fmt.Errorf("committing task %d: %w", taskID, err)
	}

	s.hub.Publish(Event{Kind: EventTaskInserted, TaskID: taskID})
	return task, nil
}

// GetTask retrieves a single task with its reminders loaded.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task, "SELECT * FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}

	reminders, err := s.remindersForTask(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Reminders = reminders

	return &task, nil
}

// ListTasks retrieves tasks matching the filter, reminders included.
func (s *SQLiteStore) ListTasks(
	ctx context.Context,
	filter TaskFilter,
) ([]model.Task, error) {
	query := "SELECT * FROM tasks"
	var args []interface{}

	if filter.Status != nil {
		query += " WHERE status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY deadline_ms ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	for i := range tasks {
		reminders, err := s.remindersForTask(ctx, tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].Reminders = reminders
	}

	return tasks, nil
}

// CountTasks returns the number of tasks matching the filter.
func (s *SQLiteStore) CountTasks(
	ctx context.Context,
	filter TaskFilter,
) (int, error) {
	query := "SELECT COUNT(*) FROM tasks"
	var args []interface{}
	if filter.Status != nil {
		query += " WHERE status = ?"
		args = append(args, *filter.Status)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("counting tasks: %w", err)
	}
	return count, nil
}

// CompleteTask transitions a task to completed. Idempotent; the reverse
// transition does not exist.
func (s *SQLiteStore) CompleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ? WHERE id = ?",
		model.StatusCompleted, id,
	)
	if err != nil {
		return fmt.Errorf("completing task %d: %w", id, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}

	s.hub.Publish(Event{Kind: EventTaskUpdated, TaskID: id})
	return nil
}

// DeleteTask removes a task; its reminders cascade with it.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}

	s.hub.Publish(Event{Kind: EventTaskDeleted, TaskID: id})
	return nil
}

// DueReminders returns reminders of active tasks with sent=0 and
// time_ms <= nowMs, oldest first.
func (s *SQLiteStore) DueReminders(
	ctx context.Context,
	nowMs int64,
) ([]DueReminder, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT
			t.id, t.title, t.description, t.deadline_ms,
			t.reminder_count, t.created_at_ms, t.status,
			r.id, r.task_id, r.time_ms, r.sent
		FROM reminders r
		JOIN tasks t ON t.id = r.task_id
		WHERE t.status = ? AND r.sent = 0 AND r.time_ms <= ?
		ORDER BY r.time_ms ASC`,
		model.StatusActive, nowMs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying due reminders: %w", err)
	}
	defer rows.Close()

	var due []DueReminder
	for rows.Next() {
		var d DueReminder
		var sentInt int
		err := rows.Scan(
			&d.Task.ID, &d.Task.Title, &d.Task.Description, &d.Task.DeadlineMs,
			&d.Task.ReminderCount, &d.Task.CreatedAtMs, &d.Task.Status,
			&d.Reminder.ID, &d.Reminder.TaskID, &d.Reminder.TimeMs, &sentInt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning due reminder row: %w", err)
		}
		d.Reminder.Sent = sentInt != 0
		due = append(due, d)
	}

	return due, rows.Err()
}

// MarkReminderSent flips a reminder's sent flag. Marking an already-sent
// reminder again is a no-op.
func (s *SQLiteStore) MarkReminderSent(ctx context.Context, reminderID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reminders SET sent = 1 WHERE id = ?", reminderID,
	)
	if err != nil {
		return fmt.Errorf("marking reminder %d sent: %w", reminderID, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("reminder %d: %w", reminderID, ErrNotFound)
	}

	s.hub.Publish(Event{Kind: EventReminderUpdated, ReminderID: reminderID})
	return nil
}

// Subscribe registers for change events emitted by this store.
func (s *SQLiteStore) Subscribe(kinds ...EventKind) *Subscription {
	return s.hub.Subscribe(kinds...)
}

// remindersForTask loads the reminder rows owned by a task.
func (s *SQLiteStore) remindersForTask(
	ctx context.Context,
	taskID int64,
) ([]model.Reminder, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, task_id, time_ms, sent FROM reminders WHERE task_id = ? ORDER BY time_ms ASC",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying reminders for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		var r model.Reminder
		var sentInt int
		if err := rows.Scan(&r.ID, &r.TaskID, &r.TimeMs, &sentInt); err != nil {
			return nil, fmt.Errorf("scanning reminder row: %w", err)
		}
		r.Sent = sentInt != 0
		reminders = append(reminders, r)
	}

	return reminders, rows.Err()
}
