package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/store"
	"github.com/nhle/remindly/tests/testutil"
)

const testEmail = "ada@example.com"

func newClockedStore(t *testing.T) (*store.SQLiteStore, *testutil.Clock) {
	t.Helper()
	s := testutil.NewTestStore(t)
	clock := testutil.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	s.SetClock(clock.Now)
	return s, clock
}

func seedTree(t *testing.T, s *store.SQLiteStore) (model.TaskList, model.Task, model.Subtask) {
	t.Helper()
	ctx := context.Background()

	list, err := s.CreateList(ctx, model.TaskList{ID: "L1", Email: testEmail, Name: "Work"})
	require.NoError(t, err)

	due := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC).UnixMilli()
	task, err := s.CreateTask(ctx, model.Task{ID: "T1", ListID: list.ID, Name: "Report", Date: due})
	require.NoError(t, err)

	subDue := due - int64(24*time.Hour/time.Millisecond)
	sub, err := s.CreateSubtask(ctx, model.Subtask{ID: "S1", TaskID: task.ID, Name: "Draft", Date: &subDue})
	require.NoError(t, err)

	return list, task, sub
}

func TestCreateList_StartsDirtyWithoutServerID(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()

	list, err := s.CreateList(ctx, model.TaskList{Email: testEmail, Name: "Home"})
	require.NoError(t, err)
	assert.NotEmpty(t, list.ID)

	got, err := s.GetListByID(ctx, list.ID)
	require.NoError(t, err)
	assert.True(t, got.NeedsSync)
	assert.Nil(t, got.ServerID)
	assert.False(t, got.IsDeleted)
	assert.Equal(t, "Home", got.Name)
}

func TestCreateList_RejectsEmptyName(t *testing.T) {
	s, _ := newClockedStore(t)

	_, err := s.CreateList(context.Background(), model.TaskList{Email: testEmail, Name: "  "})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestRenameList_BumpsUpdatedAtEvenWithinSameMillisecond(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	list, _, _ := seedTree(t, s)

	require.NoError(t, s.RenameList(ctx, list.ID, "Office"))

	got, err := s.GetListByID(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, "Office", got.Name)
	assert.Greater(t, got.UpdatedAt, list.UpdatedAt)
}

func TestRenameList_MissingRowIsNotFound(t *testing.T) {
	s, _ := newClockedStore(t)

	err := s.RenameList(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteList_TombstonesWholeSubtree(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	list, task, sub := seedTree(t, s)

	require.NoError(t, s.DeleteList(ctx, list.ID))

	gotList, err := s.GetListByID(ctx, list.ID)
	require.NoError(t, err)
	gotTask, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	gotSub, err := s.GetSubtaskByID(ctx, sub.ID)
	require.NoError(t, err)

	assert.True(t, gotList.IsDeleted)
	assert.True(t, gotTask.IsDeleted)
	assert.True(t, gotSub.IsDeleted)

	lists, err := s.GetLists(ctx, testEmail)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestTree_AssemblesActiveHierarchy(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	list, task, sub := seedTree(t, s)

	_, err := s.CreateTask(ctx, model.Task{ID: "T2", ListID: list.ID, Name: "Gone", Date: task.Date})
	require.NoError(t, err)
	require.NoError(t, s.DeleteTask(ctx, "T2"))

	tree, err := s.Tree(ctx, testEmail)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Tasks, 1)
	assert.Equal(t, task.ID, tree[0].Tasks[0].ID)
	require.Len(t, tree[0].Tasks[0].Subtasks, 1)
	assert.Equal(t, sub.ID, tree[0].Tasks[0].Subtasks[0].ID)
}

func TestCreateTask_RequiresActiveList(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	list, task, _ := seedTree(t, s)
	require.NoError(t, s.DeleteList(ctx, list.ID))

	_, err := s.CreateTask(ctx, model.Task{ListID: list.ID, Name: "Late", Date: task.Date})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateTask_RequiresDate(t *testing.T) {
	s, _ := newClockedStore(t)
	list, _, _ := seedTree(t, s)

	_, err := s.CreateTask(context.Background(), model.Task{ListID: list.ID, Name: "Undated"})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestSetTaskCompleted_CompletesSubtasks(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	_, task, sub := seedTree(t, s)

	require.NoError(t, s.SetTaskCompleted(ctx, task.ID, true))

	gotSub, err := s.GetSubtaskByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, gotSub.IsCompleted)
	assert.True(t, gotSub.NeedsSync)

	require.NoError(t, s.SetTaskCompleted(ctx, task.ID, false))
	gotSub, err = s.GetSubtaskByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, gotSub.IsCompleted, "reopening a task leaves subtasks untouched")
}

func TestCreateSubtask_DateAfterTaskIsRejectedBeforeWrite(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	_, task, _ := seedTree(t, s)

	late := task.Date + 1
	_, err := s.CreateSubtask(ctx, model.Subtask{ID: "S-late", TaskID: task.ID, Name: "Late", Date: &late})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))

	_, err = s.GetSubtaskByID(ctx, "S-late")
	assert.ErrorIs(t, err, store.ErrNotFound)

	backlog, err := s.PendingBacklog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backlog.Dirty[model.TableSubtasks])
}

func TestUpdateSubtask_DateAfterTaskLeavesRowUnchanged(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	_, task, sub := seedTree(t, s)

	serverID := "srv-s1"
	require.NoError(t, s.MarkSynced(ctx, model.TableSubtasks, sub.ID, serverID, sub.UpdatedAt))

	late := task.Date + 1
	err := s.UpdateSubtask(ctx, model.Subtask{ID: sub.ID, Name: "Draft", Date: &late})
	require.Error(t, err)

	got, err := s.GetSubtaskByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsSync)
	assert.Equal(t, *sub.Date, *got.Date)
}

func TestUpdateTask_DateBeforeSubtaskIsRejected(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	_, task, sub := seedTree(t, s)
	require.NoError(t, s.MarkSynced(ctx, model.TableTasks, task.ID, "srv-t1", task.UpdatedAt))

	early := *sub.Date - 1
	err := s.UpdateTask(ctx, model.Task{ID: task.ID, Name: "Report", Date: early})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Date, got.Date)
	assert.False(t, got.NeedsSync)

	require.NoError(t, s.UpdateTask(ctx, model.Task{ID: task.ID, Name: "Report", Date: *sub.Date}),
		"a date equal to the latest subtask date is allowed")
}

func TestUpdateTask_IgnoresUndatedAndDeletedSubtasks(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	_, task, sub := seedTree(t, s)
	_, err := s.CreateSubtask(ctx, model.Subtask{ID: "S2", TaskID: task.ID, Name: "Someday"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteSubtask(ctx, sub.ID))

	early := *sub.Date - int64(48*time.Hour/time.Millisecond)
	require.NoError(t, s.UpdateTask(ctx, model.Task{ID: task.ID, Name: "Report", Date: early}))

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, early, got.Date)
}

func TestTasksBetween_FiltersByDueDate(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	list, task, _ := seedTree(t, s)

	early := task.Date - int64(5*24*time.Hour/time.Millisecond)
	_, err := s.CreateTask(ctx, model.Task{ID: "T-early", ListID: list.ID, Name: "Early", Date: early})
	require.NoError(t, err)

	got, err := s.TasksBetween(ctx, testEmail, task.Date, task.Date+1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, task.ID, got[0].ID)
	assert.Len(t, got[0].Subtasks, 1)
}

func TestWithTx_NestedCallJoinsOuterTransaction(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		assert.True(t, store.InTx(ctx))

		_, _, beginErr := s.BeginTx(ctx)
		assert.ErrorIs(t, beginErr, store.ErrAlreadyInTransaction)

		return s.WithTx(ctx, func(ctx context.Context) error {
			_, err := s.CreateList(ctx, model.TaskList{ID: "L-tx", Email: testEmail, Name: "Tx"})
			return err
		})
	})
	require.NoError(t, err)

	_, err = s.GetListByID(ctx, "L-tx")
	assert.NoError(t, err)
}

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.CreateList(ctx, model.TaskList{ID: "L-rb", Email: testEmail, Name: "Rollback"}); err != nil {
			return err
		}
		_, err := s.CreateList(ctx, model.TaskList{ID: "L-bad", Email: testEmail, Name: ""})
		return err
	})
	require.Error(t, err)

	_, err = s.GetListByID(ctx, "L-rb")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueryHelpers(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx := context.Background()
	seedTree(t, s)

	rows, err := s.QueryAll(ctx, "SELECT id FROM tasks WHERE needs_sync = ?", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0]["id"])

	row, err := s.QueryOne(ctx, "SELECT id FROM tasks WHERE id = ?", "missing")
	require.NoError(t, err)
	assert.Nil(t, row)

	res, err := s.Execute(ctx, "UPDATE tasks SET is_expanded = 1 WHERE id = ?", "T1")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestEnsureUser_CreatesRevivesAndDeactivatesOthers(t *testing.T) {
	s, clock := newClockedStore(t)
	ctx := context.Background()

	first, err := s.EnsureUser(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, "ada", first.Name)

	clock.Advance(time.Second)
	_, err = s.EnsureUser(ctx, "bob@example.com")
	require.NoError(t, err)

	current, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", current.Email)

	clock.Advance(time.Second)
	revived, err := s.EnsureUser(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, first.ID, revived.ID)

	require.NoError(t, s.DeactivateUser(ctx, testEmail))
	_, err = s.CurrentUser(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
