// Package live renders the dashboard into browser tabs over websockets.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashureev/fte-dashboard/internal/dashboard"
)

// Region frame types. Alerts are transient and never replayed.
const (
	FrameGreeting   = "greeting"
	FrameStats      = "stats"
	FrameEmails     = "emails"
	FrameEmailBadge = "email_badge"
	FrameTasks      = "tasks"
	FrameLogs       = "logs"
	FrameModal      = "modal"
	FrameChat       = "chat"
	FrameAlert      = "alert"
	FramePong       = "pong"
)

// replayOrder is the order regions are replayed to a new tab.
var replayOrder = []string{
	FrameGreeting, FrameStats, FrameEmails, FrameEmailBadge,
	FrameTasks, FrameLogs, FrameModal, FrameChat,
}

// DefaultOutboxSize is the per-tab frame buffer.
const DefaultOutboxSize = 64

// Frame is one server-to-tab message.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Subscriber is one connected tab.
type Subscriber struct {
	ViewerID  string
	SessionID string

	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// Frames delivers encoded frames for the tab.
func (s *Subscriber) Frames() <-chan []byte { return s.frames }

// Done is closed when the subscriber is replaced or removed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// offer queues a frame without blocking. A full outbox drops the frame;
// the tab resyncs on reconnect.
func (s *Subscriber) offer(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

// Hub fans region updates out to every subscribed tab and remembers the
// last frame of each region. It implements dashboard.View.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*Subscriber // viewerID -> sessionID -> subscriber
	last   map[string][]byte
	outbox int
	logger *slog.Logger
	closed bool
}

var _ dashboard.View = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(outbox int, logger *slog.Logger) *Hub {
	if outbox < len(replayOrder)+1 {
		outbox = DefaultOutboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		active: make(map[string]map[string]*Subscriber),
		last:   make(map[string][]byte),
		outbox: outbox,
		logger: logger,
	}
}

// Subscribe registers a tab and queues the last frame of every region.
// An existing subscriber for the same viewer and session is replaced.
// After Close the returned subscriber is already done.
func (h *Hub) Subscribe(viewerID, sessionID string) *Subscriber {
	sub := &Subscriber{
		ViewerID:  viewerID,
		SessionID: sessionID,
		frames:    make(chan []byte, h.outbox),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.close()
		return sub
	}
	if _, exists := h.active[viewerID]; !exists {
		h.active[viewerID] = make(map[string]*Subscriber)
	}
	if existing, exists := h.active[viewerID][sessionID]; exists {
		existing.close()
	}
	h.active[viewerID][sessionID] = sub

	for _, region := range replayOrder {
		if frame, ok := h.last[region]; ok {
			sub.offer(frame)
		}
	}

	h.logger.Info("Dashboard tab subscribed", "viewer_id", viewerID, "session_id", sessionID)
	return sub
}

// Unsubscribe removes sub if it is still the active subscriber for its
// viewer and session.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.close()
	if sessions, ok := h.active[sub.ViewerID]; ok {
		if current, exists := sessions[sub.SessionID]; exists && current == sub {
			delete(sessions, sub.SessionID)
			if len(sessions) == 0 {
				delete(h.active, sub.ViewerID)
			}
			h.logger.Info("Dashboard tab unsubscribed", "viewer_id", sub.ViewerID, "session_id", sub.SessionID)
		}
	}
}

// Close disconnects every tab and refuses new ones. Their output loops see
// Done and close the sockets, which ends the read loops too.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	n := 0
	for viewerID, sessions := range h.active {
		for _, sub := range sessions {
			sub.close()
			n++
		}
		delete(h.active, viewerID)
	}
	h.logger.Info("Dashboard hub closed", "tabs", n)
}

// Get returns the active subscriber for a viewer and session.
func (h *Hub) Get(viewerID, sessionID string) *Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sessions, ok := h.active[viewerID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Count returns the number of connected tabs.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, sessions := range h.active {
		n += len(sessions)
	}
	return n
}

// Send queues a frame for a single subscriber.
func (h *Hub) Send(sub *Subscriber, f Frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("Failed to encode frame", "type", f.Type, "error", err)
		return false
	}
	return sub.offer(data)
}

func (h *Hub) publish(f Frame, remember bool) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("Failed to encode frame", "type", f.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if remember {
		h.last[f.Type] = data
	}
	for _, sessions := range h.active {
		for _, sub := range sessions {
			if !sub.offer(data) {
				h.logger.Debug("Dropped frame for slow tab", "type", f.Type, "viewer_id", sub.ViewerID, "session_id", sub.SessionID)
			}
		}
	}
}

// ShowGreeting implements dashboard.View.
func (h *Hub) ShowGreeting(text string) {
	h.publish(Frame{Type: FrameGreeting, Data: text}, true)
}

// ShowStats implements dashboard.View.
func (h *Hub) ShowStats(s dashboard.Stats) {
	h.publish(Frame{Type: FrameStats, Data: s}, true)
}

// ShowEmails implements dashboard.View.
func (h *Hub) ShowEmails(list dashboard.TaskList, badge string) {
	h.publish(Frame{Type: FrameEmails, Data: list}, true)
	h.publish(Frame{Type: FrameEmailBadge, Data: badge}, true)
}

// ShowTasks implements dashboard.View.
func (h *Hub) ShowTasks(list dashboard.TaskList) {
	h.publish(Frame{Type: FrameTasks, Data: list}, true)
}

// ShowLogs implements dashboard.View.
func (h *Hub) ShowLogs(feed dashboard.LogFeed) {
	h.publish(Frame{Type: FrameLogs, Data: feed}, true)
}

// ShowModal implements dashboard.View.
func (h *Hub) ShowModal(m dashboard.Modal) {
	h.publish(Frame{Type: FrameModal, Data: m}, true)
}

// ShowChat implements dashboard.View.
func (h *Hub) ShowChat(p dashboard.ChatPanel) {
	h.publish(Frame{Type: FrameChat, Data: p}, true)
}

// Alert implements dashboard.View.
func (h *Hub) Alert(message string) {
	h.publish(Frame{Type: FrameAlert, Data: map[string]string{"message": message}}, false)
}
