package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/remote"
)

// errTokenRejected aborts a push when the server refuses the bearer token.
var errTokenRejected = errors.New(MsgInvalidToken)

// tombstoneOrder flushes children before parents so a local hard delete
// never cascades into a child whose remote delete is still pending.
var tombstoneOrder = []model.Table{model.TableSubtasks, model.TableTasks, model.TableTaskLists}

// Push replays local changes to the server: remote deletes for tombstones,
// then creates and updates for dirty rows, parents before children. Failed
// rows stay pending for the next pass and never block their siblings. Only
// rows under the signed-in account's lists are sent.
func (e *Engine) Push(ctx context.Context, skipOffline bool) Result {
	if r := e.gate(ctx, skipOffline); r != nil {
		return *r
	}
	return e.push(ctx)
}

func (e *Engine) push(ctx context.Context) Result {
	var stats Stats

	owner, err := e.ownerEmail(ctx)
	if err != nil {
		return failure(err)
	}
	if owner == "" {
		e.log.Debugw("No signed-in account, nothing to push")
		return Result{Success: true}
	}

	steps := []func(context.Context, string, *Stats) error{
		e.flushTombstones,
		e.purgeLocalTombstones,
		e.flushLists,
		e.flushTasks,
		e.flushSubtasks,
	}
	for _, step := range steps {
		if err := step(ctx, owner, &stats); err != nil {
			if errors.Is(err, errTokenRejected) {
				return Result{Success: false, TokenError: true, Message: MsgInvalidToken, Stats: stats}
			}
			r := failure(err)
			r.Stats = stats
			return r
		}
	}

	e.log.Debugw("Push completed",
		"deleted", stats.Deleted,
		"pushed", stats.Pushed,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
	return Result{Success: true, Stats: stats}
}

func (e *Engine) flushTombstones(ctx context.Context, owner string, stats *Stats) error {
	for _, table := range tombstoneOrder {
		stones, err := e.store.Tombstones(ctx, table, owner)
		if err != nil {
			return err
		}
		if len(stones) > 0 {
			e.log.Debugw("Flushing tombstones", "table", table, "count", len(stones))
		}

		for _, stone := range stones {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := e.remote.Delete(ctx, stone.ServerID)
			switch {
			case err == nil:
			case remote.IsNotFound(err):
				e.log.Infow("Item already gone on server, deleting locally",
					"kind", table.Kind(), "server_id", stone.ServerID)
			case remote.IsTokenRejected(err):
				return errTokenRejected
			default:
				e.log.Warnw("Remote delete failed, keeping tombstone",
					"kind", table.Kind(), "id", stone.ID, "server_id", stone.ServerID, "error", err)
				recordRowFailure(table, opDelete)
				stats.Failed++
				continue
			}

			if err := e.store.HardDelete(ctx, table, stone.ID); err != nil {
				return err
			}
			recordPushed(table, opDelete)
			stats.Deleted++
		}
	}
	return nil
}

func (e *Engine) purgeLocalTombstones(ctx context.Context, _ string, _ *Stats) error {
	purged, err := e.store.PurgeLocalTombstones(ctx)
	if err != nil {
		return err
	}
	if purged > 0 {
		e.log.Debugw("Purged tombstones that never reached the server", "count", purged)
	}
	return nil
}

func (e *Engine) flushLists(ctx context.Context, owner string, stats *Stats) error {
	lists, err := e.store.DirtyLists(ctx, owner)
	if err != nil {
		return err
	}
	for _, list := range lists {
		payload := remote.ListPayload{
			ID:        wireID(list.ServerID, list.ID),
			Name:      list.Name,
			Email:     list.Email,
			CreatedAt: list.CreatedAt,
			UpdatedAt: list.UpdatedAt,
		}
		create := list.ServerID == nil
		err := e.pushRow(ctx, stats, model.TableTaskLists, list.ID, create, list.UpdatedAt,
			func(ctx context.Context) (string, error) {
				if create {
					return e.remote.CreateList(ctx, payload)
				}
				return e.remote.UpdateList(ctx, payload)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) flushTasks(ctx context.Context, owner string, stats *Stats) error {
	tasks, err := e.store.DirtyTasks(ctx, owner)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.ListServerID == nil || *task.ListServerID == "" {
			e.log.Debugw("Task waits for its list to reach the server", "id", task.ID, "list_id", task.ListID)
			stats.Skipped++
			continue
		}
		payload := remote.TaskPayload{
			ID:          wireID(task.ServerID, task.ID),
			ListID:      *task.ListServerID,
			Name:        task.Name,
			Date:        task.Date,
			IsCompleted: task.IsCompleted,
			CreatedAt:   task.CreatedAt,
			UpdatedAt:   task.UpdatedAt,
		}
		create := task.ServerID == nil
		err := e.pushRow(ctx, stats, model.TableTasks, task.ID, create, task.UpdatedAt,
			func(ctx context.Context) (string, error) {
				if create {
					return e.remote.CreateTask(ctx, payload)
				}
				return e.remote.UpdateTask(ctx, payload)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) flushSubtasks(ctx context.Context, owner string, stats *Stats) error {
	subtasks, err := e.store.DirtySubtasks(ctx, owner)
	if err != nil {
		return err
	}
	for _, sub := range subtasks {
		if sub.TaskServerID == nil || *sub.TaskServerID == "" {
			e.log.Debugw("Subtask waits for its task to reach the server", "id", sub.ID, "task_id", sub.TaskID)
			stats.Skipped++
			continue
		}
		payload := remote.SubtaskPayload{
			ID:          wireID(sub.ServerID, sub.ID),
			TaskID:      *sub.TaskServerID,
			Name:        sub.Name,
			Date:        sub.Date,
			IsCompleted: sub.IsCompleted,
			CreatedAt:   sub.CreatedAt,
			UpdatedAt:   sub.UpdatedAt,
		}
		create := sub.ServerID == nil
		err := e.pushRow(ctx, stats, model.TableSubtasks, sub.ID, create, sub.UpdatedAt,
			func(ctx context.Context) (string, error) {
				if create {
					return e.remote.CreateSubtask(ctx, payload)
				}
				return e.remote.UpdateSubtask(ctx, payload)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// pushRow sends one row and records the acknowledgement. Only a rejected
// token, a cancelled context or a local storage error stop the pass.
func (e *Engine) pushRow(
	ctx context.Context,
	stats *Stats,
	table model.Table,
	id string,
	create bool,
	readUpdatedAt int64,
	send func(ctx context.Context) (string, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	op := opUpdate
	if create {
		op = opCreate
	}

	serverID, err := send(ctx)
	if err != nil {
		if remote.IsTokenRejected(err) {
			return errTokenRejected
		}
		e.log.Warnw("Remote write failed, row stays pending",
			"kind", table.Kind(), "id", id, "op", op, "error", err)
		recordRowFailure(table, op)
		stats.Failed++
		return nil
	}

	if err := e.store.MarkSynced(ctx, table, id, serverID, readUpdatedAt); err != nil {
		return fmt.Errorf("recording %s %s acknowledgement: %w", table.Kind(), id, err)
	}
	recordPushed(table, op)
	stats.Pushed++
	return nil
}

// wireID is the id a row is known by on the server: its server id once
// assigned, its local id before that.
func wireID(serverID *string, localID string) string {
	if serverID != nil && *serverID != "" {
		return *serverID
	}
	return localID
}
