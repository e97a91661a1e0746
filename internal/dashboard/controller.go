package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/fte-dashboard/internal/backend"
)

// API is the backend surface the controller needs. *backend.Client
// implements it.
type API interface {
	Stats(ctx context.Context) (backend.Stats, error)
	Tasks(ctx context.Context) ([]backend.TaskSummary, error)
	TaskDetail(ctx context.Context, id string) (backend.TaskDetail, error)
	CompleteTask(ctx context.Context, id string) error
	Logs(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, message string) error
}

// Scheduler runs f once after d and returns a function that cancels it.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Controller owns every piece of dashboard state and renders it into a View.
// State writes and the matching view call happen under one lock, so the
// view and Snapshot never disagree.
type Controller struct {
	api      API
	view     View
	logger   *slog.Logger
	now      func() time.Time
	ackDelay time.Duration
	schedule Scheduler

	mu        sync.Mutex
	state     State
	sender    string // "from" of the task shown in the modal
	archiving bool
	pending   map[uint64]func() bool // scheduled acks; nil stop while registering
	nextTimer uint64
	closed    bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the wall clock used by the greeting.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithAckDelay sets the delay before the canned chat acknowledgement.
func WithAckDelay(d time.Duration) Option {
	return func(c *Controller) { c.ackDelay = d }
}

// WithScheduler replaces time.AfterFunc for delayed chat messages.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.schedule = s }
}

// New creates a controller rendering into view.
func New(api API, view View, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		view:     view,
		logger:   slog.Default(),
		now:      time.Now,
		ackDelay: 600 * time.Millisecond,
		schedule: afterFunc,
		pending:  make(map[uint64]func() bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Modal.ArchiveLabel = ArchiveIdleLabel
	c.state.Chat.BadgeVisible = true
	c.state.Chat.Transcript = []Message{}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	if c.state.Stats != nil {
		st := *c.state.Stats
		s.Stats = &st
	}
	s.Chat = c.chatLocked()
	return s
}

// Render pushes every region to the view. Used when a view mounts.
func (c *Controller) Render() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.view.ShowGreeting(c.state.Greeting)
	if c.state.Stats != nil {
		c.view.ShowStats(*c.state.Stats)
	}
	c.view.ShowEmails(c.state.Emails, c.state.EmailBadge)
	c.view.ShowTasks(c.state.Tasks)
	c.view.ShowLogs(c.state.Logs)
	c.view.ShowModal(c.state.Modal)
	c.view.ShowChat(c.chatLocked())
}

// Close cancels pending delayed chat messages. Later sends are still posted
// but no acknowledgement is scheduled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, stop := range c.pending {
		if stop != nil {
			stop()
		}
		delete(c.pending, id)
	}
}

// RefreshGreeting recomputes the greeting from the local hour.
func (c *Controller) RefreshGreeting() {
	text := Greeting(c.now().Hour())

	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.state.Greeting {
		return
	}
	c.state.Greeting = text
	c.view.ShowGreeting(text)
}

// RefreshStats fetches the stat snapshot. Failures are logged and leave
// the previous display in place.
func (c *Controller) RefreshStats(ctx context.Context) error {
	s, err := c.api.Stats(ctx)
	if err != nil {
		c.logger.Error("Failed to fetch stats", "error", err)
		return err
	}
	st := toStats(s)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Stats = &st
	c.view.ShowStats(st)
	return nil
}

// RefreshTasks fetches the task collection and re-renders both lists.
func (c *Controller) RefreshTasks(ctx context.Context) error {
	tasks, err := c.api.Tasks(ctx)
	if err != nil {
		c.logger.Error("Failed to fetch tasks", "error", err)
		return err
	}

	emails, general := Partition(tasks)
	emailList := BuildTaskList(emails, EmailPlaceholder)
	taskList := BuildTaskList(general, TaskPlaceholder)
	badge := BadgeText(len(emails))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Emails = emailList
	c.state.EmailBadge = badge
	c.state.Tasks = taskList
	c.view.ShowEmails(emailList, badge)
	c.view.ShowTasks(taskList)
	return nil
}

// RefreshLogs fetches the log feed.
func (c *Controller) RefreshLogs(ctx context.Context) error {
	lines, err := c.api.Logs(ctx)
	if err != nil {
		c.logger.Error("Failed to fetch logs", "error", err)
		return err
	}
	feed := BuildLogFeed(lines)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Logs = feed
	c.view.ShowLogs(feed)
	return nil
}

// OpenTask fetches task detail and shows it in the modal.
func (c *Controller) OpenTask(ctx context.Context, id string) error {
	detail, err := c.api.TaskDetail(ctx, id)
	if err != nil {
		c.logger.Error("Failed to fetch task detail", "task_id", id, "error", err)
		return err
	}

	title := detail.Subject
	if title == "" {
		title = id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Modal = Modal{
		Open:         true,
		TaskID:       id,
		Title:        title,
		From:         detail.From,
		Body:         detail.Body,
		ArchiveLabel: c.archiveLabelLocked(),
	}
	c.sender = detail.From
	c.view.ShowModal(c.state.Modal)
	return nil
}

// CloseModal hides the modal. Used for the close control and the backdrop.
func (c *Controller) CloseModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Modal.Open {
		return
	}
	c.state.Modal.Open = false
	c.view.ShowModal(c.state.Modal)
}

// Reply closes the modal, opens the chat panel and pre-fills a mail command
// for the open task's sender.
func (c *Controller) Reply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Modal.Open {
		return
	}
	c.state.Modal.Open = false
	c.state.Chat.Open = true
	c.state.Chat.Input = ReplyPrefill(c.sender)
	c.view.ShowModal(c.state.Modal)
	c.view.ShowChat(c.chatLocked())
}

// Archive completes the task shown in the modal. On success the modal
// closes and tasks and stats are refreshed; on failure an alert carries the
// backend detail and the modal stays open.
func (c *Controller) Archive(ctx context.Context) error {
	c.mu.Lock()
	if !c.state.Modal.Open || c.state.Modal.TaskID == "" || c.archiving {
		c.mu.Unlock()
		return nil
	}
	id := c.state.Modal.TaskID
	c.archiving = true
	c.state.Modal.ArchiveLabel = ArchiveBusyLabel
	c.view.ShowModal(c.state.Modal)
	c.mu.Unlock()

	err := c.api.CompleteTask(ctx, id)

	c.mu.Lock()
	c.archiving = false
	c.state.Modal.ArchiveLabel = ArchiveIdleLabel
	if err == nil && c.state.Modal.TaskID == id {
		c.state.Modal.Open = false
	}
	c.view.ShowModal(c.state.Modal)
	if err != nil {
		detail := backend.DetailOf(err)
		if detail == "" {
			detail = UnknownError
		}
		c.view.Alert(ArchiveFailure + detail)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Archive error", "task_id", id, "error", err)
		return err
	}

	c.logger.Info("Task archived", "task_id", id)
	_ = c.RefreshTasks(ctx)
	_ = c.RefreshStats(ctx)
	return nil
}

func (c *Controller) archiveLabelLocked() string {
	if c.archiving {
		return ArchiveBusyLabel
	}
	return ArchiveIdleLabel
}
