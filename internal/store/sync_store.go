package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/remindly/internal/model"
)

// ownedBy restricts a query on a sync table to rows under the lists of one
// account. Each clause takes the e-mail as its only argument.
var ownedBy = map[model.Table]string{
	model.TableTaskLists: `email = ?`,
	model.TableTasks:     `list_id IN (SELECT id FROM task_lists WHERE email = ?)`,
	model.TableSubtasks: `task_id IN (
		SELECT t.id FROM tasks t
		INNER JOIN task_lists tl ON t.list_id = tl.id
		WHERE tl.email = ?)`,
}

// Tombstones returns the soft-deleted rows of table owned by email that
// still have a remote twin to delete.
func (s *SQLiteStore) Tombstones(ctx context.Context, table model.Table, email string) ([]Tombstone, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	var rows []Tombstone
	err := sqlx.SelectContext(ctx, s.conn(ctx), &rows, fmt.Sprintf(`
		SELECT id, server_id FROM %s
		WHERE is_deleted = 1 AND server_id IS NOT NULL AND %s
		ORDER BY updated_at, id`, table, ownedBy[table]), email)
	if err != nil {
		return nil, fmt.Errorf("querying %s tombstones: %w", table, err)
	}
	return rows, nil
}

// purgeStatements delete local-only tombstones, children first. A parent
// that still has child rows is kept so the cascade never removes a child
// tombstone whose remote delete is pending.
var purgeStatements = []struct {
	table model.Table
	query string
}{
	{model.TableSubtasks, `DELETE FROM subtasks WHERE is_deleted = 1 AND server_id IS NULL`},
	{model.TableTasks, `
		DELETE FROM tasks WHERE is_deleted = 1 AND server_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM subtasks st WHERE st.task_id = tasks.id)`},
	{model.TableTaskLists, `
		DELETE FROM task_lists WHERE is_deleted = 1 AND server_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM tasks t WHERE t.list_id = task_lists.id)`},
}

// PurgeLocalTombstones hard-deletes soft-deleted rows that never reached the
// server.
func (s *SQLiteStore) PurgeLocalTombstones(ctx context.Context) (int64, error) {
	var purged int64
	err := s.WithTx(ctx, func(ctx context.Context) error {
		for _, stmt := range purgeStatements {
			table := stmt.table
			result, err := s.conn(ctx).ExecContext(ctx, stmt.query)
			if err != nil {
				return fmt.Errorf("purging %s tombstones: %w", table, err)
			}
			n, _ := result.RowsAffected()
			purged += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// HardDelete physically removes a row. Children of the row are removed by
// the schema's cascade.
func (s *SQLiteStore) HardDelete(ctx context.Context, table model.Table, id string) error {
	if err := table.Validate(); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("hard-deleting %s %s: %w", table.Kind(), id, err)
	}
	return nil
}

// DirtyLists returns the active lists of email with unacknowledged local
// changes.
func (s *SQLiteStore) DirtyLists(ctx context.Context, email string) ([]model.TaskList, error) {
	var lists []model.TaskList
	err := sqlx.SelectContext(ctx, s.conn(ctx), &lists, `
		SELECT * FROM task_lists
		WHERE needs_sync = 1 AND is_deleted = 0 AND email = ?
		ORDER BY created_at, id`, email)
	if err != nil {
		return nil, fmt.Errorf("querying dirty task lists: %w", err)
	}
	return lists, nil
}

// DirtyTasks returns the active tasks of email with unacknowledged local
// changes, each carrying its list's server id (nil while the list is
// unsynced).
func (s *SQLiteStore) DirtyTasks(ctx context.Context, email string) ([]DirtyTask, error) {
	var tasks []DirtyTask
	err := sqlx.SelectContext(ctx, s.conn(ctx), &tasks, `
		SELECT t.*, tl.server_id AS list_server_id
		FROM tasks t
		INNER JOIN task_lists tl ON t.list_id = tl.id
		WHERE t.needs_sync = 1 AND t.is_deleted = 0 AND tl.email = ?
		ORDER BY t.created_at, t.id`, email)
	if err != nil {
		return nil, fmt.Errorf("querying dirty tasks: %w", err)
	}
	return tasks, nil
}

// DirtySubtasks returns the active subtasks of email with unacknowledged
// local changes, each carrying its task's server id (nil while the task is
// unsynced).
func (s *SQLiteStore) DirtySubtasks(ctx context.Context, email string) ([]DirtySubtask, error) {
	var subtasks []DirtySubtask
	err := sqlx.SelectContext(ctx, s.conn(ctx), &subtasks, `
		SELECT st.*, t.server_id AS task_server_id
		FROM subtasks st
		INNER JOIN tasks t ON st.task_id = t.id
		INNER JOIN task_lists tl ON t.list_id = tl.id
		WHERE st.needs_sync = 1 AND st.is_deleted = 0 AND tl.email = ?
		ORDER BY st.created_at, st.id`, email)
	if err != nil {
		return nil, fmt.Errorf("querying dirty subtasks: %w", err)
	}
	return subtasks, nil
}

// MarkSynced records a remote acknowledgement. The server id is stored only
// if the row has none yet; needs_sync is cleared only when the row has not
// been edited since it was read at readUpdatedAt.
func (s *SQLiteStore) MarkSynced(
	ctx context.Context,
	table model.Table,
	id, serverID string,
	readUpdatedAt int64,
) error {
	if err := table.Validate(); err != nil {
		return err
	}
	result, err := s.conn(ctx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET
			server_id = COALESCE(server_id, ?),
			needs_sync = CASE WHEN updated_at = ? THEN 0 ELSE needs_sync END
		WHERE id = ?`, table),
		serverID, readUpdatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("marking %s %s synced: %w", table.Kind(), id, err)
	}
	return affectedOne(result, table.Kind(), id)
}

// LocalIDByServerID maps a remote id to the local id of the row carrying it.
func (s *SQLiteStore) LocalIDByServerID(
	ctx context.Context,
	table model.Table,
	serverID string,
) (string, bool, error) {
	if err := table.Validate(); err != nil {
		return "", false, err
	}
	var id string
	err := sqlx.GetContext(ctx, s.conn(ctx), &id,
		fmt.Sprintf("SELECT id FROM %s WHERE server_id = ?", table), serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolving %s server id %s: %w", table.Kind(), serverID, err)
	}
	return id, true, nil
}

// RowSyncState returns the bookkeeping columns of a row, or nil when the row
// does not exist.
func (s *SQLiteStore) RowSyncState(
	ctx context.Context,
	table model.Table,
	id string,
) (*RowState, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	var state RowState
	err := sqlx.GetContext(ctx, s.conn(ctx), &state, fmt.Sprintf(
		"SELECT server_id, updated_at, needs_sync, is_deleted FROM %s WHERE id = ?", table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s %s sync state: %w", table.Kind(), id, err)
	}
	return &state, nil
}

// UpsertPulledList writes a remote list over the local row with the same
// id. The row becomes clean; an existing server id is never replaced.
func (s *SQLiteStore) UpsertPulledList(ctx context.Context, list model.TaskList) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO task_lists (
			id, email, name, created_at, updated_at, is_deleted, server_id, needs_sync
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted,
			server_id = COALESCE(task_lists.server_id, excluded.server_id),
			needs_sync = 0`,
		list.ID, list.Email, list.Name, list.CreatedAt, list.UpdatedAt,
		boolToInt(list.IsDeleted), list.ServerID,
	)
	if err != nil {
		return fmt.Errorf("upserting pulled task list %s: %w", list.ID, err)
	}
	return nil
}

// UpsertPulledTask writes a remote task over the local row with the same id.
// The parent list must already exist locally.
func (s *SQLiteStore) UpsertPulledTask(ctx context.Context, task model.Task) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO tasks (
			id, list_id, name, date, is_completed, is_expanded,
			created_at, updated_at, is_deleted, server_id, needs_sync
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			list_id = excluded.list_id,
			name = excluded.name,
			date = excluded.date,
			is_completed = excluded.is_completed,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted,
			server_id = COALESCE(tasks.server_id, excluded.server_id),
			needs_sync = 0`,
		task.ID, task.ListID, task.Name, task.Date,
		boolToInt(task.IsCompleted), boolToInt(task.IsExpanded),
		task.CreatedAt, task.UpdatedAt, boolToInt(task.IsDeleted), task.ServerID,
	)
	if err != nil {
		return fmt.Errorf("upserting pulled task %s: %w", task.ID, err)
	}
	return nil
}

// UpsertPulledSubtask writes a remote subtask over the local row with the
// same id. The parent task must already exist locally.
func (s *SQLiteStore) UpsertPulledSubtask(ctx context.Context, subtask model.Subtask) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO subtasks (
			id, task_id, name, date, is_completed,
			created_at, updated_at, is_deleted, server_id, needs_sync
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			task_id = excluded.task_id,
			name = excluded.name,
			date = excluded.date,
			is_completed = excluded.is_completed,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted,
			server_id = COALESCE(subtasks.server_id, excluded.server_id),
			needs_sync = 0`,
		subtask.ID, subtask.TaskID, subtask.Name, subtask.Date,
		boolToInt(subtask.IsCompleted), subtask.CreatedAt, subtask.UpdatedAt,
		boolToInt(subtask.IsDeleted), subtask.ServerID,
	)
	if err != nil {
		return fmt.Errorf("upserting pulled subtask %s: %w", subtask.ID, err)
	}
	return nil
}

// PendingBacklog counts, per table, the dirty active rows and the tombstones
// still waiting for a remote delete.
func (s *SQLiteStore) PendingBacklog(ctx context.Context) (*Backlog, error) {
	backlog := &Backlog{
		Dirty:      make(map[model.Table]int, len(model.SyncTables)),
		Tombstones: make(map[model.Table]int, len(model.SyncTables)),
	}
	for _, table := range model.SyncTables {
		var counts struct {
			Dirty      int `db:"dirty"`
			Tombstones int `db:"tombstones"`
		}
		err := sqlx.GetContext(ctx, s.conn(ctx), &counts, fmt.Sprintf(`
			SELECT
				COALESCE(SUM(CASE WHEN needs_sync = 1 AND is_deleted = 0 THEN 1 ELSE 0 END), 0) AS dirty,
				COALESCE(SUM(CASE WHEN is_deleted = 1 AND server_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS tombstones
			FROM %s`, table))
		if err != nil {
			return nil, fmt.Errorf("counting %s backlog: %w", table, err)
		}
		backlog.Dirty[table] = counts.Dirty
		backlog.Tombstones[table] = counts.Tombstones
	}
	return backlog, nil
}

// Total returns the number of rows waiting for the next push.
func (b *Backlog) Total() int {
	total := 0
	for _, n := range b.Dirty {
		total += n
	}
	for _, n := range b.Tombstones {
		total += n
	}
	return total
}
