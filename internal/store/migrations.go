package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	deadline_ms    INTEGER NOT NULL,
	reminder_count INTEGER NOT NULL CHECK(reminder_count BETWEEN 1 AND 10),
	created_at_ms  INTEGER NOT NULL,
	status         TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'completed'))
);

CREATE TABLE IF NOT EXISTS reminders (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	time_ms INTEGER NOT NULL,
	sent    INTEGER NOT NULL DEFAULT 0 CHECK(sent IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_reminders_task_id ON reminders(task_id);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(sent, time_ms);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
