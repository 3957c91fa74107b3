package model

// Task is a dated item inside a TaskList.
type Task struct {
	// ID is the local identifier, stable for the row's lifetime.
	ID string `json:"id" db:"id"`

	// ServerID is the remote identifier, assigned on first successful push.
	ServerID *string `json:"server_id,omitempty" db:"server_id"`

	// ListID references the owning TaskList by local id.
	ListID string `json:"list_id" db:"list_id"`

	Name string `json:"name" db:"name"`

	// Date is the due date in epoch milliseconds.
	Date int64 `json:"date" db:"date"`

	IsCompleted bool `json:"is_completed" db:"is_completed"`

	// IsExpanded is a persisted UI flag; it travels with the row but has no
	// meaning to the sync engine.
	IsExpanded bool `json:"is_expanded" db:"is_expanded"`

	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
	IsDeleted bool  `json:"is_deleted" db:"is_deleted"`
	NeedsSync bool  `json:"needs_sync" db:"needs_sync"`

	// Subtasks is populated by tree queries only.
	Subtasks []Subtask `json:"subtasks,omitempty" db:"-"`
}

// Subtask is a child item of a Task. Its date is optional but may not be
// later than the parent task's date.
type Subtask struct {
	ID          string  `json:"id" db:"id"`
	ServerID    *string `json:"server_id,omitempty" db:"server_id"`
	TaskID      string  `json:"task_id" db:"task_id"`
	Name        string  `json:"name" db:"name"`
	Date        *int64  `json:"date,omitempty" db:"date"`
	IsCompleted bool    `json:"is_completed" db:"is_completed"`
	CreatedAt   int64   `json:"created_at" db:"created_at"`
	UpdatedAt   int64   `json:"updated_at" db:"updated_at"`
	IsDeleted   bool    `json:"is_deleted" db:"is_deleted"`
	NeedsSync   bool    `json:"needs_sync" db:"needs_sync"`
}
