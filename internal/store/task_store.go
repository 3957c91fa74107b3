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

// CreateTask inserts a new task into an active list. Generates a UUID if ID
// is empty. The row starts dirty and without a server id.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if err := validateTask(task); err != nil {
		return model.Task{}, err
	}
	if _, err := s.activeList(ctx, task.ListID); err != nil {
		return model.Task{}, err
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := s.nowMillis()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task.IsDeleted = false
	task.ServerID = nil
	task.NeedsSync = true

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO tasks (
			id, list_id, name, date, is_completed, is_expanded,
			created_at, updated_at, is_deleted, server_id, needs_sync
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, 1)`,
		task.ID, task.ListID, task.Name, task.Date,
		boolToInt(task.IsCompleted), boolToInt(task.IsExpanded),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return task, nil
}

// UpdateTask overwrites the user-editable fields of an active task. A due
// date earlier than one of its active subtasks' dates is rejected before
// write.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	return s.WithTx(ctx, func(ctx context.Context) error {
		conn := s.conn(ctx)

		var latest sql.NullInt64
		if err := sqlx.GetContext(ctx, conn, &latest, `
			SELECT MAX(date) FROM subtasks
			WHERE task_id = ? AND is_deleted = 0 AND date IS NOT NULL`,
			task.ID,
		); err != nil {
			return fmt.Errorf("reading subtask dates of task %s: %w", task.ID, err)
		}
		if latest.Valid && latest.Int64 > task.Date {
			return &model.ValidationError{
				Field: "date",
				Message: fmt.Sprintf(
					"task due date cannot be before its subtasks' due dates (latest %s)",
					model.FromMillis(latest.Int64).Format("2006-01-02"),
				),
			}
		}

		result, err := conn.ExecContext(ctx, `
			UPDATE tasks SET
				name = ?, date = ?, is_completed = ?, is_expanded = ?,
				updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE id = ? AND is_deleted = 0`,
			task.Name, task.Date, boolToInt(task.IsCompleted), boolToInt(task.IsExpanded),
			s.nowMillis(), task.ID,
		)
		if err != nil {
			return fmt.Errorf("updating task %s: %w", task.ID, err)
		}
		return affectedOne(result, "task", task.ID)
	})
}

// SetTaskCompleted sets a task's completion state. Completing a task also
// completes its active subtasks.
func (s *SQLiteStore) SetTaskCompleted(ctx context.Context, id string, completed bool) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		now := s.nowMillis()
		conn := s.conn(ctx)

		result, err := conn.ExecContext(ctx, `
			UPDATE tasks SET
				is_completed = ?, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE id = ? AND is_deleted = 0`,
			boolToInt(completed), now, id,
		)
		if err != nil {
			return fmt.Errorf("completing task %s: %w", id, err)
		}
		if err := affectedOne(result, "task", id); err != nil {
			return err
		}
		if !completed {
			return nil
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE subtasks SET
				is_completed = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE task_id = ? AND is_deleted = 0 AND is_completed = 0`,
			now, id,
		); err != nil {
			return fmt.Errorf("completing subtasks of task %s: %w", id, err)
		}
		return nil
	})
}

// SetTaskExpanded persists the UI expansion flag. The flag is part of the
// row, so the row is marked dirty like any other edit.
func (s *SQLiteStore) SetTaskExpanded(ctx context.Context, id string, expanded bool) error {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE tasks SET
			is_expanded = ?, updated_at = MAX(?, updated_at + 1), needs_sync = 1
		WHERE id = ? AND is_deleted = 0`,
		boolToInt(expanded), s.nowMillis(), id,
	)
	if err != nil {
		return fmt.Errorf("expanding task %s: %w", id, err)
	}
	return affectedOne(result, "task", id)
}

// DeleteTask tombstones a task and its subtasks.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		now := s.nowMillis()
		conn := s.conn(ctx)

		result, err := conn.ExecContext(ctx, `
			UPDATE tasks SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE id = ? AND is_deleted = 0`,
			now, id,
		)
		if err != nil {
			return fmt.Errorf("deleting task %s: %w", id, err)
		}
		if err := affectedOne(result, "task", id); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE subtasks SET
				is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
			WHERE task_id = ? AND is_deleted = 0`,
			now, id,
		); err != nil {
			return fmt.Errorf("deleting subtasks of task %s: %w", id, err)
		}
		return nil
	})
}

// GetTaskByID retrieves a single task by local id, tombstoned or not.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := sqlx.GetContext(ctx, s.conn(ctx), &task, "SELECT * FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &task, nil
}

// GetTasks returns the active tasks of a list, oldest first.
func (s *SQLiteStore) GetTasks(ctx context.Context, listID string) ([]model.Task, error) {
	var tasks []model.Task
	err := sqlx.SelectContext(ctx, s.conn(ctx), &tasks, `
		SELECT * FROM tasks
		WHERE list_id = ? AND is_deleted = 0
		ORDER BY created_at, id`, listID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks of list %s: %w", listID, err)
	}
	return tasks, nil
}

// TasksBetween returns email's active tasks due in [from, to), ordered by
// due date, with their active subtasks attached.
func (s *SQLiteStore) TasksBetween(
	ctx context.Context,
	email string,
	from, to int64,
) ([]model.Task, error) {
	var tasks []model.Task
	err := sqlx.SelectContext(ctx, s.conn(ctx), &tasks, `
		SELECT t.* FROM tasks t
		INNER JOIN task_lists tl ON t.list_id = tl.id
		WHERE tl.email = ? AND tl.is_deleted = 0 AND t.is_deleted = 0
		  AND t.date >= ? AND t.date < ?
		ORDER BY t.date, t.created_at`, email, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying tasks between %d and %d: %w", from, to, err)
	}

	if len(tasks) == 0 {
		return tasks, nil
	}

	subtasksByTask, err := s.activeSubtasksByTask(ctx, email)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Subtasks = subtasksByTask[tasks[i].ID]
	}
	return tasks, nil
}

// CreateSubtask inserts a new subtask below an active task. Generates a UUID
// if ID is empty. A due date later than the parent task's is rejected before
// anything is written.
func (s *SQLiteStore) CreateSubtask(
	ctx context.Context,
	subtask model.Subtask,
) (model.Subtask, error) {
	if strings.TrimSpace(subtask.Name) == "" {
		return model.Subtask{}, &model.ValidationError{Field: "name", Message: "subtask name cannot be empty"}
	}
	parent, err := s.activeTask(ctx, subtask.TaskID)
	if err != nil {
		return model.Subtask{}, err
	}
	if err := model.ValidateSubtaskDate(subtask.Date, parent.Date); err != nil {
		return model.Subtask{}, err
	}

	if subtask.ID == "" {
		subtask.ID = uuid.New().String()
	}
	now := s.nowMillis()
	if subtask.CreatedAt == 0 {
		subtask.CreatedAt = now
	}
	subtask.UpdatedAt = now
	subtask.IsDeleted = false
	subtask.ServerID = nil
	subtask.NeedsSync = true

	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO subtasks (
			id, task_id, name, date, is_completed,
			created_at, updated_at, is_deleted, server_id, needs_sync
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, 1)`,
		subtask.ID, subtask.TaskID, subtask.Name, subtask.Date,
		boolToInt(subtask.IsCompleted), subtask.CreatedAt, subtask.UpdatedAt,
	)
	if err != nil {
		return model.Subtask{}, fmt.Errorf("creating subtask: %w", err)
	}
	return subtask, nil
}

// UpdateSubtask overwrites the user-editable fields of an active subtask,
// applying the same date rule as CreateSubtask.
func (s *SQLiteStore) UpdateSubtask(ctx context.Context, subtask model.Subtask) error {
	if strings.TrimSpace(subtask.Name) == "" {
		return &model.ValidationError{Field: "name", Message: "subtask name cannot be empty"}
	}
	current, err := s.GetSubtaskByID(ctx, subtask.ID)
	if err != nil {
		return err
	}
	parent, err := s.activeTask(ctx, current.TaskID)
	if err != nil {
		return err
	}
	if err := model.ValidateSubtaskDate(subtask.Date, parent.Date); err != nil {
		return err
	}

	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE subtasks SET
			name = ?, date = ?, is_completed = ?,
			updated_at = MAX(?, updated_at + 1), needs_sync = 1
		WHERE id = ? AND is_deleted = 0`,
		subtask.Name, subtask.Date, boolToInt(subtask.IsCompleted),
		s.nowMillis(), subtask.ID,
	)
	if err != nil {
		return fmt.Errorf("updating subtask %s: %w", subtask.ID, err)
	}
	return affectedOne(result, "subtask", subtask.ID)
}

// SetSubtaskCompleted sets a subtask's completion state.
func (s *SQLiteStore) SetSubtaskCompleted(ctx context.Context, id string, completed bool) error {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE subtasks SET
			is_completed = ?, updated_at = MAX(?, updated_at + 1), needs_sync = 1
		WHERE id = ? AND is_deleted = 0`,
		boolToInt(completed), s.nowMillis(), id,
	)
	if err != nil {
		return fmt.Errorf("completing subtask %s: %w", id, err)
	}
	return affectedOne(result, "subtask", id)
}

// DeleteSubtask tombstones a subtask.
func (s *SQLiteStore) DeleteSubtask(ctx context.Context, id string) error {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE subtasks SET
			is_deleted = 1, updated_at = MAX(?, updated_at + 1), needs_sync = 1
		WHERE id = ? AND is_deleted = 0`,
		s.nowMillis(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting subtask %s: %w", id, err)
	}
	return affectedOne(result, "subtask", id)
}

// GetSubtaskByID retrieves a single subtask by local id, tombstoned or not.
func (s *SQLiteStore) GetSubtaskByID(ctx context.Context, id string) (*model.Subtask, error) {
	var subtask model.Subtask
	err := sqlx.GetContext(ctx, s.conn(ctx), &subtask, "SELECT * FROM subtasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subtask %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting subtask %s: %w", id, err)
	}
	return &subtask, nil
}

// GetSubtasks returns the active subtasks of a task, oldest first.
func (s *SQLiteStore) GetSubtasks(ctx context.Context, taskID string) ([]model.Subtask, error) {
	var subtasks []model.Subtask
	err := sqlx.SelectContext(ctx, s.conn(ctx), &subtasks, `
		SELECT * FROM subtasks
		WHERE task_id = ? AND is_deleted = 0
		ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying subtasks of task %s: %w", taskID, err)
	}
	return subtasks, nil
}

// activeList returns the list with id if it exists and is not tombstoned.
func (s *SQLiteStore) activeList(ctx context.Context, id string) (*model.TaskList, error) {
	list, err := s.GetListByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if list.IsDeleted {
		return nil, fmt.Errorf("task list %s: %w", id, ErrNotFound)
	}
	return list, nil
}

// activeTask returns the task with id if it exists and is not tombstoned.
func (s *SQLiteStore) activeTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return task, nil
}

// validateTask checks the fields every task write requires.
func validateTask(task model.Task) error {
	if strings.TrimSpace(task.Name) == "" {
		return &model.ValidationError{Field: "name", Message: "task name cannot be empty"}
	}
	if task.Date == 0 {
		return &model.ValidationError{Field: "date", Message: "task date is required"}
	}
	return nil
}
