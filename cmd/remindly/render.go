package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/store"
	"github.com/nhle/remindly/internal/theme"
)

const dateLayout = "2006-01-02"

// parseDate reads a YYYY-MM-DD day in now's location as epoch milliseconds
// at local midnight. An empty string means today.
func parseDate(s string, now time.Time) (int64, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).UnixMilli(), nil
	}
	t, err := time.ParseInLocation(dateLayout, s, now.Location())
	if err != nil {
		return 0, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t.UnixMilli(), nil
}

// taskState classifies a task for coloring. Overdue means due before today.
func taskState(task model.Task, now time.Time) string {
	switch {
	case task.IsCompleted:
		return theme.StateDone
	case task.Date < startOfDay(now):
		return theme.StateOverdue
	}
	return theme.StateOpen
}

func startOfDay(now time.Time) int64 {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).UnixMilli()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func pendingMark(needsSync bool) string {
	if needsSync {
		return " " + theme.StateStyle(theme.StatePending).Render("*")
	}
	return ""
}

func formatDay(ms int64, loc *time.Location) string {
	return model.FromMillis(ms).In(loc).Format(dateLayout)
}

// renderTree prints lists with their tasks and subtasks. Rows not yet on
// the server are marked with an asterisk.
func renderTree(lists []model.TaskList, now time.Time) string {
	if len(lists) == 0 {
		return theme.HelpStyle.Render("No lists yet. Create one with `remindly list add <name>`.") + "\n"
	}

	var b strings.Builder
	for _, list := range lists {
		b.WriteString(theme.HeaderStyle.Render(list.Name))
		b.WriteString(pendingMark(list.NeedsSync))
		b.WriteString(" " + theme.HelpStyle.Render(list.ID) + "\n")

		for _, task := range list.Tasks {
			line := fmt.Sprintf("%s %s  %s",
				checkbox(task.IsCompleted),
				theme.StateStyle(taskState(task, now)).Render(task.Name),
				formatDay(task.Date, now.Location()))
			b.WriteString(theme.TaskStyle.Render(line))
			b.WriteString(pendingMark(task.NeedsSync))
			b.WriteString(" " + theme.HelpStyle.Render(task.ID) + "\n")

			for _, sub := range task.Subtasks {
				line := checkbox(sub.IsCompleted) + " " + sub.Name
				if sub.Date != nil {
					line += "  " + formatDay(*sub.Date, now.Location())
				}
				b.WriteString(theme.SubtaskStyle.Render(line))
				b.WriteString(pendingMark(sub.NeedsSync))
				b.WriteString(" " + theme.HelpStyle.Render(sub.ID) + "\n")
			}
		}
	}
	return b.String()
}

// renderCalendar groups tasks by due day. tasks must be ordered by date.
func renderCalendar(tasks []model.Task, now time.Time) string {
	if len(tasks) == 0 {
		return theme.HelpStyle.Render("Nothing due in this range.") + "\n"
	}

	var b strings.Builder
	day := ""
	for _, task := range tasks {
		if d := formatDay(task.Date, now.Location()); d != day {
			day = d
			b.WriteString(theme.HeaderStyle.Render(day) + "\n")
		}
		line := fmt.Sprintf("%s %s", checkbox(task.IsCompleted), theme.StateStyle(taskState(task, now)).Render(task.Name))
		if n := len(task.Subtasks); n > 0 {
			done := 0
			for _, sub := range task.Subtasks {
				if sub.IsCompleted {
					done++
				}
			}
			line += theme.HelpStyle.Render(fmt.Sprintf(" (%d/%d)", done, n))
		}
		b.WriteString(theme.TaskStyle.Render(line) + "\n")
	}
	return b.String()
}

// statusView is what the status command shows.
type statusView struct {
	User       string
	TokenValid bool
	Online     bool
	LastSync   int64
	Backlog    *store.Backlog
}

func renderStatus(v statusView) string {
	yesNo := func(ok bool) string {
		if ok {
			return "yes"
		}
		return "no"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User:        %s\n", v.User)
	fmt.Fprintf(&b, "Token valid: %s\n", yesNo(v.TokenValid))
	fmt.Fprintf(&b, "Online:      %s\n", yesNo(v.Online))
	fmt.Fprintf(&b, "Last sync:   %s\n", formatCheckpoint(v.LastSync))
	if v.Backlog != nil {
		fmt.Fprintf(&b, "Pending:     %d", v.Backlog.Total())
		for _, table := range model.SyncTables {
			fmt.Fprintf(&b, "\n  %-11s %d changed, %d deleted",
				table.Kind(), v.Backlog.Dirty[table], v.Backlog.Tombstones[table])
		}
	}
	return b.String()
}
