package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/theme"
)

func listsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show every list with its tasks and subtasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				email, err := e.currentEmail(ctx)
				if err != nil {
					return err
				}
				tree, err := e.store.Tree(ctx, email)
				if err != nil {
					return err
				}
				fmt.Print(renderTree(tree, e.now()))
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage task lists",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				email, err := e.currentEmail(ctx)
				if err != nil {
					return err
				}
				list, err := e.store.CreateList(ctx, model.TaskList{Email: email, Name: args[0]})
				if err != nil {
					return err
				}
				fmt.Println("Created list " + theme.HelpStyle.Render(list.ID))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <list-id> <name>",
		Short: "Rename a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				return e.store.RenameList(ctx, args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <list-id>",
		Short: "Delete a list with its tasks and subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				return e.store.DeleteList(ctx, args[0])
			})
		},
	})

	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	var addDate string
	add := &cobra.Command{
		Use:   "add <list-id> <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				date, err := parseDate(addDate, e.now())
				if err != nil {
					return err
				}
				task, err := e.store.CreateTask(ctx, model.Task{ListID: args[0], Name: args[1], Date: date})
				if err != nil {
					return err
				}
				fmt.Println("Created task " + theme.HelpStyle.Render(task.ID))
				return nil
			})
		},
	}
	add.Flags().StringVar(&addDate, "date", "", "Due date (YYYY-MM-DD, default today)")
	cmd.AddCommand(add)

	var editName, editDate string
	edit := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Change a task's name or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				task, err := e.store.GetTaskByID(ctx, args[0])
				if err != nil {
					return err
				}
				if editName != "" {
					task.Name = editName
				}
				if editDate != "" {
					if task.Date, err = parseDate(editDate, e.now()); err != nil {
						return err
					}
				}
				return e.store.UpdateTask(ctx, *task)
			})
		},
	}
	edit.Flags().StringVar(&editName, "name", "", "New name")
	edit.Flags().StringVar(&editDate, "date", "", "New due date (YYYY-MM-DD)")
	cmd.AddCommand(edit)

	cmd.AddCommand(completionCmd("done", "Mark a task completed", true, setTaskCompleted))
	cmd.AddCommand(completionCmd("undone", "Mark a task not completed", false, setTaskCompleted))

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete a task with its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				return e.store.DeleteTask(ctx, args[0])
			})
		},
	})

	return cmd
}

func subtaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtask",
		Short: "Manage subtasks",
	}

	var addDate string
	add := &cobra.Command{
		Use:   "add <task-id> <name>",
		Short: "Create a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				sub := model.Subtask{TaskID: args[0], Name: args[1]}
				if addDate != "" {
					date, err := parseDate(addDate, e.now())
					if err != nil {
						return err
					}
					sub.Date = &date
				}
				created, err := e.store.CreateSubtask(ctx, sub)
				if err != nil {
					return err
				}
				fmt.Println("Created subtask " + theme.HelpStyle.Render(created.ID))
				return nil
			})
		},
	}
	add.Flags().StringVar(&addDate, "date", "", "Due date (YYYY-MM-DD, not after the task's)")
	cmd.AddCommand(add)

	cmd.AddCommand(completionCmd("done", "Mark a subtask completed", true, setSubtaskCompleted))
	cmd.AddCommand(completionCmd("undone", "Mark a subtask not completed", false, setSubtaskCompleted))

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <subtask-id>",
		Short: "Delete a subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				return e.store.DeleteSubtask(ctx, args[0])
			})
		},
	})

	return cmd
}

func setTaskCompleted(ctx context.Context, e *env, id string, completed bool) error {
	return e.store.SetTaskCompleted(ctx, id, completed)
}

func setSubtaskCompleted(ctx context.Context, e *env, id string, completed bool) error {
	return e.store.SetSubtaskCompleted(ctx, id, completed)
}

func completionCmd(
	use, short string,
	completed bool,
	set func(ctx context.Context, e *env, id string, completed bool) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(func(ctx context.Context, e *env) error {
				return set(ctx, e, args[0], completed)
			})
		},
	}
}

func calendarCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show tasks due in a date range, grouped by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				email, err := e.currentEmail(ctx)
				if err != nil {
					return err
				}
				now := e.now()
				start, err := parseDate(from, now)
				if err != nil {
					return err
				}
				end := model.FromMillis(start).AddDate(0, 0, 7).UnixMilli()
				if to != "" {
					if end, err = parseDate(to, now); err != nil {
						return err
					}
					end = model.FromMillis(end).AddDate(0, 0, 1).UnixMilli()
				}
				tasks, err := e.store.TasksBetween(ctx, email, start, end)
				if err != nil {
					return err
				}
				fmt.Print(renderCalendar(tasks, now))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, inclusive (default a week from --from)")
	return cmd
}

// mutate runs a local edit and then tries to push it.
func mutate(fn func(ctx context.Context, e *env) error) error {
	return withEnv(func(ctx context.Context, e *env) error {
		if err := fn(ctx, e); err != nil {
			return err
		}
		e.afterChange(ctx)
		return nil
	})
}
