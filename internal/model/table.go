package model

import "fmt"

// Table identifies one of the syncable tables.
type Table string

const (
	TableTaskLists Table = "task_lists"
	TableTasks     Table = "tasks"
	TableSubtasks  Table = "subtasks"
)

// SyncTables lists the syncable tables parents first.
var SyncTables = []Table{TableTaskLists, TableTasks, TableSubtasks}

// Validate rejects anything that is not a known syncable table. Table names
// are interpolated into SQL, so callers must validate untrusted values.
func (t Table) Validate() error {
	switch t {
	case TableTaskLists, TableTasks, TableSubtasks:
		return nil
	}
	return fmt.Errorf("unknown table %q", string(t))
}

// Kind returns the singular entity name used in logs and messages.
func (t Table) Kind() string {
	switch t {
	case TableTaskLists:
		return "task_list"
	case TableTasks:
		return "task"
	case TableSubtasks:
		return "subtask"
	}
	return string(t)
}
