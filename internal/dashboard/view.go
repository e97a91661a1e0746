// Package dashboard holds the dashboard client: controller state, the region
// contract views implement, and the periodic poller.
package dashboard

import "time"

// Placeholder and label text shown by views.
const (
	EmailPlaceholder = "Inbox is clear."
	TaskPlaceholder  = "No pending missions."
	LogPlaceholder   = "No recent activity logged."
	SnippetFallback  = "Click to view details..."

	ArchiveIdleLabel = "Mark as Done"
	ArchiveBusyLabel = "Archiving..."
	ArchiveFailure   = "Failed to archive task: "
	UnknownError     = "Unknown error"

	ChatAck         = "Command received. I've placed the mission in your Inbox for processing."
	ChatHTTPError   = "Sorry, I had trouble communicating with the backend."
	ChatSystemError = "System error. Please ensure the API is running."
)

// View receives region updates. Each method replaces the whole region.
// Implementations must not call back into the Controller.
type View interface {
	ShowGreeting(text string)
	ShowStats(Stats)
	// ShowEmails renders the email list and its "{n} New" badge.
	ShowEmails(list TaskList, badge string)
	ShowTasks(TaskList)
	ShowLogs(LogFeed)
	ShowModal(Modal)
	ShowChat(ChatPanel)
	// Alert surfaces a blocking message to the user.
	Alert(message string)
}

// Stats is the rendered stat snapshot.
type Stats struct {
	ActiveTasks    string `json:"active_tasks"`
	Revenue        string `json:"revenue"`
	CompletedTasks string `json:"completed_tasks"`
	SystemHealth   string `json:"system_health"`
}

// TaskKind is the list a task is rendered into.
type TaskKind string

const (
	KindEmail   TaskKind = "email"
	KindGeneral TaskKind = "general"
)

// TaskItem is one rendered, clickable task row.
type TaskItem struct {
	ID      string    `json:"id"`
	Kind    TaskKind  `json:"kind"`
	Icon    string    `json:"icon"`
	Title   string    `json:"title"`
	Sender  string    `json:"sender,omitempty"`
	Snippet string    `json:"snippet"`
	Time    time.Time `json:"time"`
}

// TaskList is a rendered list region. Placeholder is set iff Items is empty
// and the list has been loaded at least once.
type TaskList struct {
	Items       []TaskItem `json:"items"`
	Placeholder string     `json:"placeholder,omitempty"`
}

// LogFeed is the rendered log region.
type LogFeed struct {
	Lines       []string `json:"lines"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// Modal is the task detail modal.
type Modal struct {
	Open         bool   `json:"open"`
	TaskID       string `json:"task_id,omitempty"`
	Title        string `json:"title"`
	From         string `json:"from"`
	Body         string `json:"body"`
	ArchiveLabel string `json:"archive_label"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one transcript entry.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ChatPanel is the chat region.
type ChatPanel struct {
	Open         bool      `json:"open"`
	BadgeVisible bool      `json:"badge_visible"`
	Input        string    `json:"input"`
	Transcript   []Message `json:"transcript"`
}

// State is a copy of every region, as last rendered.
type State struct {
	Greeting   string    `json:"greeting"`
	Stats      *Stats    `json:"stats,omitempty"`
	Emails     TaskList  `json:"emails"`
	EmailBadge string    `json:"email_badge"`
	Tasks      TaskList  `json:"tasks"`
	Logs       LogFeed   `json:"logs"`
	Modal      Modal     `json:"modal"`
	Chat       ChatPanel `json:"chat"`
}
