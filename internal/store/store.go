package store

import (
	"context"
	"database/sql"

	"github.com/nhle/remindly/internal/model"
)

// Tombstone identifies a soft-deleted row that still has a remote twin.
type Tombstone struct {
	ID       string `db:"id"`
	ServerID string `db:"server_id"`
}

// DirtyTask is a task awaiting push, joined with its list's server id.
type DirtyTask struct {
	model.Task
	ListServerID *string `db:"list_server_id"`
}

// DirtySubtask is a subtask awaiting push, joined with its task's server id.
type DirtySubtask struct {
	model.Subtask
	TaskServerID *string `db:"task_server_id"`
}

// RowState is the sync bookkeeping of a single local row.
type RowState struct {
	ServerID  *string `db:"server_id"`
	UpdatedAt int64   `db:"updated_at"`
	NeedsSync bool    `db:"needs_sync"`
	IsDeleted bool    `db:"is_deleted"`
}

// Backlog counts rows waiting for the next push, per table.
type Backlog struct {
	Dirty      map[model.Table]int
	Tombstones map[model.Table]int
}

// Store defines the persistence interface for users, task lists, tasks and
// subtasks, plus the bookkeeping the sync engine relies on.
type Store interface {
	// === Row-level access ===

	QueryAll(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error)
	QueryOne(ctx context.Context, query string, args ...interface{}) (map[string]interface{}, error)
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// === Users ===

	EnsureUser(ctx context.Context, email string) (*model.User, error)
	CurrentUser(ctx context.Context) (*model.User, error)
	DeactivateUser(ctx context.Context, email string) error

	// === Task lists ===

	CreateList(ctx context.Context, list model.TaskList) (model.TaskList, error)
	RenameList(ctx context.Context, id, name string) error
	DeleteList(ctx context.Context, id string) error
	GetListByID(ctx context.Context, id string) (*model.TaskList, error)
	GetLists(ctx context.Context, email string) ([]model.TaskList, error)
	Tree(ctx context.Context, email string) ([]model.TaskList, error)
	ClearAll(ctx context.Context, email string) error

	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	SetTaskCompleted(ctx context.Context, id string, completed bool) error
	SetTaskExpanded(ctx context.Context, id string, expanded bool) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, listID string) ([]model.Task, error)
	TasksBetween(ctx context.Context, email string, from, to int64) ([]model.Task, error)

	// === Subtasks ===

	CreateSubtask(ctx context.Context, subtask model.Subtask) (model.Subtask, error)
	UpdateSubtask(ctx context.Context, subtask model.Subtask) error
	SetSubtaskCompleted(ctx context.Context, id string, completed bool) error
	DeleteSubtask(ctx context.Context, id string) error
	GetSubtaskByID(ctx context.Context, id string) (*model.Subtask, error)
	GetSubtasks(ctx context.Context, taskID string) ([]model.Subtask, error)

	// === Sync bookkeeping ===

	Tombstones(ctx context.Context, table model.Table, email string) ([]Tombstone, error)
	PurgeLocalTombstones(ctx context.Context) (int64, error)
	HardDelete(ctx context.Context, table model.Table, id string) error
	DirtyLists(ctx context.Context, email string) ([]model.TaskList, error)
	DirtyTasks(ctx context.Context, email string) ([]DirtyTask, error)
	DirtySubtasks(ctx context.Context, email string) ([]DirtySubtask, error)
	MarkSynced(ctx context.Context, table model.Table, id, serverID string, readUpdatedAt int64) error
	LocalIDByServerID(ctx context.Context, table model.Table, serverID string) (string, bool, error)
	RowSyncState(ctx context.Context, table model.Table, id string) (*RowState, error)
	UpsertPulledList(ctx context.Context, list model.TaskList) error
	UpsertPulledTask(ctx context.Context, task model.Task) error
	UpsertPulledSubtask(ctx context.Context, subtask model.Subtask) error
	PendingBacklog(ctx context.Context) (*Backlog, error)
}

var _ Store = (*SQLiteStore)(nil)
