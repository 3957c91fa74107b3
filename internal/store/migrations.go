package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
//
// All timestamps and dates are epoch milliseconds; flags are 0/1 integers.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY NOT NULL,
	email      TEXT UNIQUE NOT NULL,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0 CHECK(is_deleted IN (0, 1))
);

CREATE TABLE IF NOT EXISTS task_lists (
	id         TEXT PRIMARY KEY NOT NULL,
	email      TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0 CHECK(is_deleted IN (0, 1)),
	server_id  TEXT UNIQUE,
	needs_sync INTEGER NOT NULL DEFAULT 1 CHECK(needs_sync IN (0, 1))
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY NOT NULL,
	list_id      TEXT NOT NULL REFERENCES task_lists(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	date         INTEGER NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0 CHECK(is_completed IN (0, 1)),
	is_expanded  INTEGER NOT NULL DEFAULT 0 CHECK(is_expanded IN (0, 1)),
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	is_deleted   INTEGER NOT NULL DEFAULT 0 CHECK(is_deleted IN (0, 1)),
	server_id    TEXT UNIQUE,
	needs_sync   INTEGER NOT NULL DEFAULT 1 CHECK(needs_sync IN (0, 1))
);

CREATE TABLE IF NOT EXISTS subtasks (
	id           TEXT PRIMARY KEY NOT NULL,
	task_id      TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	date         INTEGER,
	is_completed INTEGER NOT NULL DEFAULT 0 CHECK(is_completed IN (0, 1)),
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	is_deleted   INTEGER NOT NULL DEFAULT 0 CHECK(is_deleted IN (0, 1)),
	server_id    TEXT UNIQUE,
	needs_sync   INTEGER NOT NULL DEFAULT 1 CHECK(needs_sync IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_task_lists_email ON task_lists(email);
CREATE INDEX IF NOT EXISTS idx_task_lists_sync ON task_lists(needs_sync, is_deleted);
CREATE INDEX IF NOT EXISTS idx_tasks_list_id ON tasks(list_id);
CREATE INDEX IF NOT EXISTS idx_tasks_date ON tasks(date);
CREATE INDEX IF NOT EXISTS idx_tasks_sync ON tasks(needs_sync, is_deleted);
CREATE INDEX IF NOT EXISTS idx_subtasks_task_id ON subtasks(task_id);
CREATE INDEX IF NOT EXISTS idx_subtasks_sync ON subtasks(needs_sync, is_deleted);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
