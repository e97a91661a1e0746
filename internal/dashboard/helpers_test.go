package dashboard

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/fte-dashboard/internal/backend"
)

type fakeAPI struct {
	mu sync.Mutex

	stats     backend.Stats
	statsErr  error
	tasks     []backend.TaskSummary
	tasksErr  error
	details   map[string]backend.TaskDetail
	detailErr error
	logs      []string
	logsErr   error

	completeErr error
	completed   []string
	chatErr     error
	chats       []string

	statsCalls int
	tasksCalls int
	logsCalls  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{details: make(map[string]backend.TaskDetail)}
}

func (f *fakeAPI) Stats(_ context.Context) (backend.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	return f.stats, f.statsErr
}

func (f *fakeAPI) Tasks(_ context.Context) ([]backend.TaskSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasksCalls++
	return append([]backend.TaskSummary(nil), f.tasks...), f.tasksErr
}

func (f *fakeAPI) TaskDetail(_ context.Context, id string) (backend.TaskDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return backend.TaskDetail{}, f.detailErr
	}
	return f.details[id], nil
}

func (f *fakeAPI) CompleteTask(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return f.completeErr
}

func (f *fakeAPI) Logs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logsCalls++
	return append([]string(nil), f.logs...), f.logsErr
}

func (f *fakeAPI) Chat(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, message)
	return f.chatErr
}

func (f *fakeAPI) calls() (stats, tasks, logs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statsCalls, f.tasksCalls, f.logsCalls
}

// recordingView keeps the last value of every region plus all alerts.
type recordingView struct {
	mu       sync.Mutex
	greeting string
	stats    *Stats
	emails   TaskList
	badge    string
	tasks    TaskList
	logs     LogFeed
	modal    Modal
	modals   []Modal
	chat     ChatPanel
	alerts   []string
}

func (v *recordingView) ShowGreeting(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.greeting = text
}

func (v *recordingView) ShowStats(s Stats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = &s
}

func (v *recordingView) ShowEmails(list TaskList, badge string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.emails = list
	v.badge = badge
}

func (v *recordingView) ShowTasks(list TaskList) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tasks = list
}

func (v *recordingView) ShowLogs(feed LogFeed) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.logs = feed
}

func (v *recordingView) ShowModal(m Modal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.modal = m
	v.modals = append(v.modals, m)
}

func (v *recordingView) ShowChat(p ChatPanel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chat = p
}

func (v *recordingView) Alert(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = append(v.alerts, message)
}

// manualScheduler collects delayed funcs so tests decide when they fire.
type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	funcs   []func()
	stopped []bool
}

func (s *manualScheduler) schedule(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.funcs)
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
	s.stopped = append(s.stopped, false)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped[i] = true
		return true
	}
}

func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	funcs := append([]func(){}, s.funcs...)
	s.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(api API, view View, opts ...Option) *Controller {
	base := []Option{WithLogger(discardLogger())}
	return New(api, view, append(base, opts...)...)
}
