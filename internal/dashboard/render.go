package dashboard

import (
	"strconv"

	"github.com/ashureev/fte-dashboard/internal/backend"
)

const (
	emailIcon   = "📧"
	generalIcon = "📑"
)

// Partition splits tasks into the email subset and the general subset.
// Order within each subset follows the input.
func Partition(tasks []backend.TaskSummary) (emails, general []backend.TaskSummary) {
	for _, t := range tasks {
		if t.IsEmail() {
			emails = append(emails, t)
		} else {
			general = append(general, t)
		}
	}
	return emails, general
}

// BadgeText formats the email count badge.
func BadgeText(n int) string {
	return strconv.Itoa(n) + " New"
}

// NewTaskItem builds the rendered row for a task.
func NewTaskItem(t backend.TaskSummary) TaskItem {
	item := TaskItem{
		ID:      t.ID,
		Kind:    KindGeneral,
		Icon:    generalIcon,
		Title:   t.Title,
		Sender:  t.Sender,
		Snippet: t.Snippet,
		Time:    t.Timestamp(),
	}
	if t.IsEmail() {
		item.Kind = KindEmail
		item.Icon = emailIcon
	}
	if item.Snippet == "" {
		item.Snippet = SnippetFallback
	}
	return item
}

// BuildTaskList renders tasks, using placeholder when there are none.
func BuildTaskList(tasks []backend.TaskSummary, placeholder string) TaskList {
	list := TaskList{Items: make([]TaskItem, 0, len(tasks))}
	for _, t := range tasks {
		list.Items = append(list.Items, NewTaskItem(t))
	}
	if len(list.Items) == 0 {
		list.Placeholder = placeholder
	}
	return list
}

// BuildLogFeed renders log lines verbatim and in order.
func BuildLogFeed(lines []string) LogFeed {
	feed := LogFeed{Lines: append([]string{}, lines...)}
	if len(feed.Lines) == 0 {
		feed.Placeholder = LogPlaceholder
	}
	return feed
}

// ReplyPrefill is the chat input offered when replying to a task.
func ReplyPrefill(sender string) string {
	if sender == "" || sender == "Unknown" {
		return "write mail to "
	}
	return "write mail to " + sender + ": "
}

// Greeting returns the greeting for a local hour in [0,24).
func Greeting(hour int) string {
	switch {
	case hour < 12:
		return "Good Morning, CEO"
	case hour < 18:
		return "Good Afternoon, CEO"
	default:
		return "Good Evening, CEO"
	}
}

func toStats(s backend.Stats) Stats {
	return Stats{
		ActiveTasks:    s.ActiveTasks.String(),
		Revenue:        s.Revenue.String(),
		CompletedTasks: s.CompletedTasks.String(),
		SystemHealth:   s.SystemHealth.String(),
	}
}
