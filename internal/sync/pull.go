package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/remote"
	"github.com/nhle/remindly/internal/store"
)

// Pull fetches every remote row changed since the checkpoint and merges it
// into the local store in one transaction. It never advances the
// checkpoint.
func (e *Engine) Pull(ctx context.Context, skipOffline bool) Result {
	if r := e.gate(ctx, skipOffline); r != nil {
		return *r
	}
	return e.pull(ctx)
}

func (e *Engine) pull(ctx context.Context) Result {
	since, err := e.creds.LastSync()
	if err != nil {
		return failure(fmt.Errorf("reading sync checkpoint: %w", err))
	}

	e.log.Debugw("Fetching remote changes", "since", since)
	changes, err := e.remote.Changes(ctx, since)
	if err != nil {
		e.log.Warnw("Fetching remote changes failed", "error", err)
		return failure(err)
	}

	owner, err := e.ownerEmail(ctx)
	if err != nil {
		return failure(err)
	}

	m := &merger{
		engine:  e,
		owner:   owner,
		lists:   make(map[string]string, len(changes.TaskLists)),
		tasks:   make(map[string]string, len(changes.Tasks)),
		gone:    make(map[string]bool),
		applied: make(map[model.Table]int, len(model.SyncTables)),
	}
	if err := e.store.WithTx(ctx, func(ctx context.Context) error {
		return m.merge(ctx, changes)
	}); err != nil {
		e.log.Errorw("Merging remote changes failed", "error", err)
		return failure(err)
	}

	pulled := 0
	for table, n := range m.applied {
		recordPulled(table, n)
		pulled += n
	}
	e.log.Debugw("Pull completed",
		"lists", len(changes.TaskLists),
		"tasks", len(changes.Tasks),
		"subtasks", len(changes.Subtasks),
		"applied", pulled,
	)
	return Result{Success: true, Stats: Stats{Pulled: pulled}}
}

// ownerEmail is the e-mail stamped on pulled lists that carry none.
func (e *Engine) ownerEmail(ctx context.Context) (string, error) {
	user, err := e.store.CurrentUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// merger applies one Changes response. lists and tasks map the remote ids
// seen in this response to local ids, so children resolve their parent
// without another lookup. gone holds the remote ids reported deleted.
type merger struct {
	engine  *Engine
	owner   string
	lists   map[string]string
	tasks   map[string]string
	gone    map[string]bool
	applied map[model.Table]int
}

func (m *merger) merge(ctx context.Context, changes *remote.Changes) error {
	for _, rl := range changes.TaskLists {
		if err := m.mergeList(ctx, rl); err != nil {
			return err
		}
	}
	for _, rt := range changes.Tasks {
		if err := m.mergeTask(ctx, rt); err != nil {
			return err
		}
	}
	for _, rs := range changes.Subtasks {
		if err := m.mergeSubtask(ctx, rs); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) mergeList(ctx context.Context, rl remote.RemoteList) error {
	serverID := string(rl.ID)
	if serverID == "" {
		return errors.New("remote task list without id")
	}
	if rl.IsDeleted {
		return m.dropDeleted(ctx, model.TableTaskLists, serverID, rl.LocalID)
	}
	localID, err := m.localID(ctx, model.TableTaskLists, serverID, rl.LocalID)
	if err != nil {
		return err
	}
	m.lists[serverID] = localID

	email := rl.Email
	if email == "" {
		email = m.owner
	}
	list := model.TaskList{
		ID:        localID,
		ServerID:  &serverID,
		Email:     email,
		Name:      rl.Name,
		CreatedAt: int64(rl.CreatedAt),
		UpdatedAt: int64(rl.UpdatedAt),
	}

	keep, err := m.keepLocal(ctx, model.TableTaskLists, localID, list.UpdatedAt)
	if err != nil || keep {
		return err
	}
	if err := m.engine.store.UpsertPulledList(ctx, list); err != nil {
		return err
	}
	m.applied[model.TableTaskLists]++
	return nil
}

func (m *merger) mergeTask(ctx context.Context, rt remote.RemoteTask) error {
	serverID := string(rt.ID)
	if serverID == "" {
		return errors.New("remote task without id")
	}
	if bool(rt.IsDeleted) || m.gone[string(rt.ListID)] {
		return m.dropDeleted(ctx, model.TableTasks, serverID, rt.LocalID)
	}
	listID, err := m.parent(ctx, model.TableTaskLists, m.lists, string(rt.ListID))
	if err != nil {
		return fmt.Errorf("task %s: %w", serverID, err)
	}
	localID, err := m.localID(ctx, model.TableTasks, serverID, rt.LocalID)
	if err != nil {
		return err
	}
	m.tasks[serverID] = localID

	date := int64(rt.Date)
	if date == 0 {
		date = int64(rt.CreatedAt)
	}
	task := model.Task{
		ID:          localID,
		ServerID:    &serverID,
		ListID:      listID,
		Name:        rt.Name,
		Date:        date,
		IsCompleted: bool(rt.IsCompleted),
		IsExpanded:  bool(rt.IsExpanded),
		CreatedAt:   int64(rt.CreatedAt),
		UpdatedAt:   int64(rt.UpdatedAt),
	}

	keep, err := m.keepLocal(ctx, model.TableTasks, localID, task.UpdatedAt)
	if err != nil || keep {
		return err
	}
	if err := m.engine.store.UpsertPulledTask(ctx, task); err != nil {
		return err
	}
	m.applied[model.TableTasks]++
	return nil
}

func (m *merger) mergeSubtask(ctx context.Context, rs remote.RemoteSubtask) error {
	serverID := string(rs.ID)
	if serverID == "" {
		return errors.New("remote subtask without id")
	}
	if bool(rs.IsDeleted) || m.gone[string(rs.TaskID)] {
		return m.dropDeleted(ctx, model.TableSubtasks, serverID, rs.LocalID)
	}
	taskID, err := m.parent(ctx, model.TableTasks, m.tasks, string(rs.TaskID))
	if err != nil {
		return fmt.Errorf("subtask %s: %w", serverID, err)
	}
	localID, err := m.localID(ctx, model.TableSubtasks, serverID, rs.LocalID)
	if err != nil {
		return err
	}

	subtask := model.Subtask{
		ID:          localID,
		ServerID:    &serverID,
		TaskID:      taskID,
		Name:        rs.Name,
		Date:        rs.Date.Ptr(),
		IsCompleted: bool(rs.IsCompleted),
		CreatedAt:   int64(rs.CreatedAt),
		UpdatedAt:   int64(rs.UpdatedAt),
	}

	keep, err := m.keepLocal(ctx, model.TableSubtasks, localID, subtask.UpdatedAt)
	if err != nil || keep {
		return err
	}
	if err := m.engine.store.UpsertPulledSubtask(ctx, subtask); err != nil {
		return err
	}
	m.applied[model.TableSubtasks]++
	return nil
}

// dropDeleted removes the local twin of a row the server reports deleted,
// together with its children. The server already holds the deletion, so no
// tombstone is kept and nothing is written when no local row exists.
func (m *merger) dropDeleted(ctx context.Context, table model.Table, serverID, hint string) error {
	m.gone[serverID] = true
	localID, err := m.localID(ctx, table, serverID, hint)
	if err != nil {
		return err
	}
	state, err := m.engine.store.RowSyncState(ctx, table, localID)
	if err != nil || state == nil {
		return err
	}
	if err := m.engine.store.HardDelete(ctx, table, localID); err != nil {
		return err
	}
	m.engine.log.Debugw("Removed row deleted remotely", "kind", table.Kind(), "id", localID)
	m.applied[table]++
	return nil
}

// localID picks the local row a remote row lands on: the row already
// carrying serverID, then the row named by the local id hint, then a new
// row keyed by the remote id itself.
func (m *merger) localID(ctx context.Context, table model.Table, serverID, hint string) (string, error) {
	id, ok, err := m.engine.store.LocalIDByServerID(ctx, table, serverID)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	if hint != "" {
		state, err := m.engine.store.RowSyncState(ctx, table, hint)
		if err != nil {
			return "", err
		}
		if state == nil || state.ServerID == nil || *state.ServerID == serverID {
			return hint, nil
		}
	}
	return serverID, nil
}

// parent resolves a child's remote parent reference to a local id.
func (m *merger) parent(
	ctx context.Context,
	table model.Table,
	seen map[string]string,
	serverID string,
) (string, error) {
	if id, ok := seen[serverID]; ok {
		return id, nil
	}
	id, ok, err := m.engine.store.LocalIDByServerID(ctx, table, serverID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("parent %s %q not found locally", table.Kind(), serverID)
	}
	return id, nil
}

// keepLocal reports whether a pulled row must not overwrite the local one.
// Under the remote-wins policy it never does; under last-write-wins a dirty
// local row newer than the incoming one is kept and pushed next pass.
func (m *merger) keepLocal(ctx context.Context, table model.Table, localID string, incoming int64) (bool, error) {
	if m.engine.policy != model.ConflictLastWriteWins {
		return false, nil
	}
	state, err := m.engine.store.RowSyncState(ctx, table, localID)
	if err != nil {
		return false, err
	}
	if state == nil || !state.NeedsSync || state.UpdatedAt <= incoming {
		return false, nil
	}
	m.engine.log.Infow("Keeping newer local edit over pulled row",
		"kind", table.Kind(), "id", localID,
		"local_updated_at", state.UpdatedAt, "remote_updated_at", incoming)
	return true, nil
}
