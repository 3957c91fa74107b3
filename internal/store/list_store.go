package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/remindly/internal/model"
)

// CreateList inserts a new task list owned by list.Email. Generates a UUID
// if ID is empty. The row starts dirty and without a server id.
func (s *SQLiteStore) CreateList(
	ctx context.Context,
	list model.TaskList,
) (model.TaskList, error) {
	if strings.TrimSpace(list.Name) == "" {
		return model.TaskList{}, &model.ValidationError{Field: "name", Message: "list name cannot be empty"}
	}
	if strings.TrimSpace(list.Email) == "" {
		return model.TaskList{}, &model.ValidationError{Field: "email", Message: "user email is required to save lists"}
	}
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	now := s.nowMillis()
	if list.CreatedAt == 0 {
		list.CreatedAt = now
	}
	list.UpdatedAt = now
	list.IsDeleted = false
	list.ServerID = nil
	list.NeedsSync = true

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO task_lists (
			id, email, name, created_at, updated_at, is_deleted, server_id, needs_sync
		) VALUES (?, ?, ?, ?, ?, 0, NULL, 1)`,
		list.ID, list.Email, list.Name, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return model.TaskList{}, fmt.Errorf("creating task list: %w", err)
	}
	return list, nil
}

// RenameList changes an active list's name and marks it dirty.
func (s *SQLiteStore) RenameList(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return &model.ValidationError{Field: "name", Message: "list name cannot be empty"}
	}
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE task_lists SET
			name = ?, updated_at = MAX(?, updated_at + 1), needs_sync = 1
		WHERE id = ? AND is_deleted = 0`,
		name, s.nowMillis(), id,
	)
	if err != nil {
		return fmt.Errorf("renaming task list %s: %w", id, err)
	}
	return affectedOne(result, "task list", id)
}

// DeleteList tombstones a list together with its tasks and their subtasks.
func (s *SQLiteStore) DeleteList(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		now := s.nowMillis()
		conn := s.conn(ctx)

		result, err := conn.ExecContext(ctx, `
			UPDATE task_lists SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE id = ? AND is_deleted = 0`,
			now, id,
		)
		if err != nil {
			return fmt.Errorf("deleting task list %s: %w", id, err)
		}
		if err := affectedOne(result, "task list", id); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE subtasks SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE is_deleted = 0
			  AND task_id IN (SELECT id FROM tasks WHERE list_id = ?)`,
			now, id,
		); err != nil {
			return fmt.Errorf("deleting subtasks of list %s: %w", id, err)
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE tasks SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE is_deleted = 0 AND list_id = ?`,
			now, id,
		); err != nil {
			return fmt.Errorf("deleting tasks of list %s: %w", id, err)
		}
		return nil
	})
}

// GetListByID retrieves a single list by local id, tombstoned or not.
func (s *SQLiteStore) GetListByID(ctx context.Context, id string) (*model.TaskList, error) {
	var list model.TaskList
	err := sqlx.GetContext(ctx, s.conn(ctx), &list,
		"SELECT * FROM task_lists WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task list %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task list %s: %w", id, err)
	}
	return &list, nil
}

// GetLists returns the active lists owned by email, oldest first.
func (s *SQLiteStore) GetLists(ctx context.Context, email string) ([]model.TaskList, error) {
	var lists []model.TaskList
	err := sqlx.SelectContext(ctx, s.conn(ctx), &lists, `
		SELECT * FROM task_lists
		WHERE email = ? AND is_deleted = 0
		ORDER BY created_at, id`, email)
	if err != nil {
		return nil, fmt.Errorf("querying task lists for %s: %w", email, err)
	}
	return lists, nil
}

// Tree returns the active lists owned by email with their active tasks and
// subtasks attached.
func (s *SQLiteStore) Tree(ctx context.Context, email string) ([]model.TaskList, error) {
	lists, err := s.GetLists(ctx, email)
	if err != nil {
		return nil, err
	}

	var tasks []model.Task
	err = sqlx.SelectContext(ctx, s.conn(ctx), &tasks, `
		SELECT t.* FROM tasks t
		INNER JOIN task_lists tl ON t.list_id = tl.id
		WHERE tl.email = ? AND tl.is_deleted = 0 AND t.is_deleted = 0
		ORDER BY t.created_at, t.id`, email)
	if err != nil {
		return nil, fmt.Errorf("querying tasks for %s: %w", email, err)
	}

	subtasksByTask, err := s.activeSubtasksByTask(ctx, email)
	if err != nil {
		return nil, err
	}

	tasksByList := make(map[string][]model.Task, len(lists))
	for _, t := range tasks {
		t.Subtasks = subtasksByTask[t.ID]
		tasksByList[t.ListID] = append(tasksByList[t.ListID], t)
	}
	for i := range lists {
		lists[i].Tasks = tasksByList[lists[i].ID]
	}
	return lists, nil
}

// activeSubtasksByTask loads every active subtask below email's active
// lists and tasks, grouped by task id.
func (s *SQLiteStore) activeSubtasksByTask(
	ctx context.Context,
	email string,
) (map[string][]model.Subtask, error) {
	var subtasks []model.Subtask
	err := sqlx.SelectContext(ctx, s.conn(ctx), &subtasks, `
		SELECT st.* FROM subtasks st
		INNER JOIN tasks t ON st.task_id = t.id
		INNER JOIN task_lists tl ON t.list_id = tl.id
		WHERE tl.email = ? AND tl.is_deleted = 0
		  AND t.is_deleted = 0 AND st.is_deleted = 0
		ORDER BY st.created_at, st.id`, email)
	if err != nil {
		return nil, fmt.Errorf("querying subtasks for %s: %w", email, err)
	}

	byTask := make(map[string][]model.Subtask)
	for _, st := range subtasks {
		byTask[st.TaskID] = append(byTask[st.TaskID], st)
	}
	return byTask, nil
}

// ClearAll tombstones every list, task and subtask owned by email.
func (s *SQLiteStore) ClearAll(ctx context.Context, email string) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		now := s.nowMillis()
		conn := s.conn(ctx)

		if _, err := conn.ExecContext(ctx, `
			UPDATE subtasks SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE is_deleted = 0 AND task_id IN (
				SELECT id FROM tasks
				WHERE list_id IN (SELECT id FROM task_lists WHERE email = ?)
			)`,
			now, email,
		); err != nil {
			return fmt.Errorf("clearing subtasks: %w", err)
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE tasks SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE is_deleted = 0
			  AND list_id IN (SELECT id FROM task_lists WHERE email = ?)`,
			now, email,
		); err != nil {
			return fmt.Errorf("clearing tasks: %w", err)
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE task_lists SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE is_deleted = 0 AND email = ?`,
			now, email,
		); err != nil {
			return fmt.Errorf("clearing task lists: %w", err)
		}
		return nil
	})
}
