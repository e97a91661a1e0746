package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/fte-dashboard/internal/dashboard"
	"github.com/ashureev/fte-dashboard/internal/identity"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Actions are the user interactions a tab can trigger. *dashboard.Controller
// implements it.
type Actions interface {
	OpenTask(ctx context.Context, id string) error
	CloseModal()
	Reply()
	Archive(ctx context.Context) error
	ToggleChat()
	CloseChat()
	SetChatInput(text string)
	QueueChat(text string) (string, bool)
	PostChat(ctx context.Context, msg string) error
}

var _ Actions = (*dashboard.Controller)(nil)

// Tab-to-server message types.
const (
	ActionOpenTask      = "open_task"
	ActionCloseModal    = "close_modal"
	ActionModalBackdrop = "modal_backdrop"
	ActionReply         = "reply"
	ActionArchive       = "archive"
	ActionToggleChat    = "toggle_chat"
	ActionCloseChat     = "close_chat"
	ActionChatInput     = "chat_input"
	ActionChatSend      = "chat_send"
	ActionChatKey       = "chat_key"
	ActionPing          = "ping"
)

// inbound is a tab-to-server message.
type inbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
	Key  string `json:"key,omitempty"`
}

// WebSocketHandler serves /ws/dashboard.
type WebSocketHandler struct {
	hub           *Hub
	actions       Actions
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger

	// actionCtx outlives individual sockets so a closed tab does not abort
	// an archive or chat post it started.
	actionCtx context.Context

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewWebSocketHandler creates a new WebSocket handler. Actions run under
// ctx; cancel it on shutdown.
func NewWebSocketHandler(ctx context.Context, hub *Hub, actions Actions, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:           hub,
		actions:       actions,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
		actionCtx:     ctx,
	}
}

// Close stops starting new backend actions. Frames that arrive afterwards
// are dropped. Call it before Wait.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// Wait blocks until every dispatched action has returned.
func (h *WebSocketHandler) Wait() {
	h.inflight.Wait()
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	viewerID := identity.ViewerIDFromContext(r.Context())
	if viewerID == "" {
		viewerID = "anonymous"
	}
	sessionID := identity.SessionIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "viewer_id", viewerID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "viewer_id", viewerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "viewer_id", viewerID)
		}
	}()

	sub := h.hub.Subscribe(viewerID, sessionID)
	defer h.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: tab -> controller.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, sub)
	}()

	// Output loop: hub -> tab.
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, sub)
	}()

	wg.Wait()
	h.logger.Info("Dashboard tab disconnected", "viewer_id", viewerID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	// Same-origin tabs served by this process.
	if origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, sub *Subscriber) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "viewer_id", sub.ViewerID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "viewer_id", sub.ViewerID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Warn("Ignoring malformed dashboard message", "error", err, "viewer_id", sub.ViewerID)
			continue
		}
		h.dispatch(msg, sub)
	}
}

func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, sub *Subscriber) {
	for {
		select {
		case frame := <-sub.Frames():
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Debug("WebSocket write error", "error", err, "viewer_id", sub.ViewerID)
				}
				return
			}
		case <-sub.Done():
			// Replaced by a newer tab with the same session, or hub closed.
			if err := ws.Close(websocket.StatusGoingAway, "session closed"); err != nil {
				h.logger.Debug("Failed to close websocket", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// dispatch applies one tab message. Actions that call the backend run on
// their own goroutine so the read loop keeps draining the socket.
func (h *WebSocketHandler) dispatch(msg inbound, sub *Subscriber) {
	switch msg.Type {
	case ActionOpenTask:
		if msg.ID == "" {
			return
		}
		h.async(func(ctx context.Context) { _ = h.actions.OpenTask(ctx, msg.ID) })
	case ActionCloseModal, ActionModalBackdrop:
		h.actions.CloseModal()
	case ActionReply:
		h.actions.Reply()
	case ActionArchive:
		h.async(func(ctx context.Context) { _ = h.actions.Archive(ctx) })
	case ActionToggleChat:
		h.actions.ToggleChat()
	case ActionCloseChat:
		h.actions.CloseChat()
	case ActionChatInput:
		h.actions.SetChatInput(msg.Text)
	case ActionChatSend:
		h.sendChat(msg.Text)
	case ActionChatKey:
		if msg.Key != "Enter" {
			h.actions.SetChatInput(msg.Text)
			return
		}
		h.sendChat(msg.Text)
	case ActionPing:
		h.hub.Send(sub, Frame{Type: FramePong})
	default:
		h.logger.Debug("Unknown dashboard message", "type", msg.Type, "viewer_id", sub.ViewerID)
	}
}

// sendChat queues the message on the read loop, so the transcript follows
// the order frames arrived in, and only posts it in the background.
func (h *WebSocketHandler) sendChat(text string) {
	if !h.accepting() {
		return
	}
	text, ok := h.actions.QueueChat(text)
	if !ok {
		return
	}
	h.async(func(ctx context.Context) { _ = h.actions.PostChat(ctx, text) })
}

func (h *WebSocketHandler) accepting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

func (h *WebSocketHandler) async(fn func(ctx context.Context)) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.logger.Debug("Dropping action after shutdown")
		return
	}
	h.inflight.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.inflight.Done()
		fn(h.actionCtx)
	}()
}
