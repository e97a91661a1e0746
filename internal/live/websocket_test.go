package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/fte-dashboard/internal/backend"
	"github.com/ashureev/fte-dashboard/internal/dashboard"
	"github.com/ashureev/fte-dashboard/internal/identity"
	"github.com/coder/websocket"
	"github.com/google/go-cmp/cmp"
)

type fakeActions struct {
	calls chan string
}

func newFakeActions() *fakeActions {
	return &fakeActions{calls: make(chan string, 32)}
}

func (f *fakeActions) record(call string) { f.calls <- call }

func (f *fakeActions) OpenTask(_ context.Context, id string) error {
	f.record("open:" + id)
	return nil
}
func (f *fakeActions) CloseModal() { f.record("close_modal") }
func (f *fakeActions) Reply()      { f.record("reply") }
func (f *fakeActions) Archive(context.Context) error {
	f.record("archive")
	return nil
}
func (f *fakeActions) ToggleChat()              { f.record("toggle_chat") }
func (f *fakeActions) CloseChat()               { f.record("close_chat") }
func (f *fakeActions) SetChatInput(text string) { f.record("input:" + text) }
func (f *fakeActions) QueueChat(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	f.record("queue:" + text)
	return text, true
}
func (f *fakeActions) PostChat(_ context.Context, msg string) error {
	f.record("post:" + msg)
	return nil
}

func (f *fakeActions) next(t *testing.T) string {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched action")
		return ""
	}
}

func newTestServer(t *testing.T, hub *Hub, actions Actions) (*httptest.Server, *WebSocketHandler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewWebSocketHandler(ctx, hub, actions, "http://localhost:3000", false, testLogger())
	srv := httptest.NewServer(identity.Middleware(true)(h))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		h.Wait()
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session_id=" + sessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return f
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocket_ReplaysStateOnConnect(t *testing.T) {
	hub := NewHub(0, testLogger())
	hub.ShowGreeting("Good Evening, CEO")
	hub.ShowLogs(dashboard.LogFeed{Lines: []string{"Task A created"}})

	srv, _ := newTestServer(t, hub, newFakeActions())
	conn := dial(t, srv, "tab-1")

	if f := readFrame(t, conn); f.Type != FrameGreeting || f.Data != "Good Evening, CEO" {
		t.Errorf("first frame = %+v", f)
	}
	if f := readFrame(t, conn); f.Type != FrameLogs {
		t.Errorf("second frame = %+v", f)
	}
}

func TestWebSocket_StreamsUpdates(t *testing.T) {
	hub := NewHub(0, testLogger())
	srv, _ := newTestServer(t, hub, newFakeActions())
	conn := dial(t, srv, "tab-1")

	waitForTabs(t, hub, 1)
	hub.Alert("Failed to archive task: Task not found")

	f := readFrame(t, conn)
	if f.Type != FrameAlert {
		t.Fatalf("frame type = %q, want alert", f.Type)
	}
	data := f.Data.(map[string]any)
	if data["message"] != "Failed to archive task: Task not found" {
		t.Errorf("alert message = %v", data["message"])
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	hub := NewHub(0, testLogger())
	srv, _ := newTestServer(t, hub, newFakeActions())
	conn := dial(t, srv, "tab-1")

	send(t, conn, `{"type":"ping"}`)
	if f := readFrame(t, conn); f.Type != FramePong {
		t.Errorf("frame type = %q, want pong", f.Type)
	}
}

func TestWebSocket_DispatchesActions(t *testing.T) {
	tests := []struct {
		msg  string
		want []string
	}{
		{`{"type":"open_task","id":"t1"}`, []string{"open:t1"}},
		{`{"type":"close_modal"}`, []string{"close_modal"}},
		{`{"type":"modal_backdrop"}`, []string{"close_modal"}},
		{`{"type":"reply"}`, []string{"reply"}},
		{`{"type":"archive"}`, []string{"archive"}},
		{`{"type":"toggle_chat"}`, []string{"toggle_chat"}},
		{`{"type":"close_chat"}`, []string{"close_chat"}},
		{`{"type":"chat_input","text":"hel"}`, []string{"input:hel"}},
		{`{"type":"chat_send","text":"hello"}`, []string{"queue:hello", "post:hello"}},
		{`{"type":"chat_key","key":"a","text":"hello a"}`, []string{"input:hello a"}},
		{`{"type":"chat_key","key":"Enter","text":"hello"}`, []string{"queue:hello", "post:hello"}},
	}

	actions := newFakeActions()
	hub := NewHub(0, testLogger())
	srv, _ := newTestServer(t, hub, actions)
	conn := dial(t, srv, "tab-1")

	for _, tt := range tests {
		send(t, conn, tt.msg)
		for _, want := range tt.want {
			if got := actions.next(t); got != want {
				t.Errorf("%s dispatched %q, want %q", tt.msg, got, want)
			}
		}
	}
}

func TestWebSocket_IgnoresMalformedMessages(t *testing.T) {
	actions := newFakeActions()
	hub := NewHub(0, testLogger())
	srv, _ := newTestServer(t, hub, actions)
	conn := dial(t, srv, "tab-1")

	send(t, conn, `not json`)
	send(t, conn, `{"type":"open_task"}`)
	send(t, conn, `{"type":"bogus"}`)
	send(t, conn, `{"type":"chat_send","text":"   "}`)
	send(t, conn, `{"type":"reply"}`)

	if got := actions.next(t); got != "reply" {
		t.Errorf("first dispatched action = %q, want reply", got)
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(0, testLogger())
	srv, _ := newTestServer(t, hub, newFakeActions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %+v, want 403", resp)
	}
}

func TestWebSocket_UnsubscribesOnClose(t *testing.T) {
	hub := NewHub(0, testLogger())
	srv, _ := newTestServer(t, hub, newFakeActions())
	conn := dial(t, srv, "tab-1")

	waitForTabs(t, hub, 1)
	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Logf("close: %v", err)
	}
	waitForTabs(t, hub, 0)
}

func waitForTabs(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Count = %d, want %d", hub.Count(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// stubAPI accepts every chat post and returns empty data otherwise.
type stubAPI struct{}

func (stubAPI) Stats(context.Context) (backend.Stats, error)         { return backend.Stats{}, nil }
func (stubAPI) Tasks(context.Context) ([]backend.TaskSummary, error) { return nil, nil }
func (stubAPI) Logs(context.Context) ([]string, error)               { return nil, nil }
func (stubAPI) CompleteTask(context.Context, string) error           { return nil }
func (stubAPI) Chat(context.Context, string) error                   { return nil }
func (stubAPI) TaskDetail(context.Context, string) (backend.TaskDetail, error) {
	return backend.TaskDetail{}, nil
}

func newControllerHandler(t *testing.T) (*WebSocketHandler, *dashboard.Controller, *Subscriber) {
	t.Helper()
	hub := NewHub(0, testLogger())
	noAck := func(time.Duration, func()) func() bool { return func() bool { return true } }
	ctrl := dashboard.New(stubAPI{}, hub, dashboard.WithLogger(testLogger()), dashboard.WithScheduler(noAck))
	h := NewWebSocketHandler(context.Background(), hub, ctrl, "", true, testLogger())
	return h, ctrl, hub.Subscribe("viewer", "tab")
}

func TestDispatch_ChatKeepsArrivalOrder(t *testing.T) {
	h, ctrl, sub := newControllerHandler(t)

	var want []dashboard.Message
	for i := 0; i < 50; i++ {
		text := "message " + strconv.Itoa(i)
		h.dispatch(inbound{Type: ActionChatSend, Text: text}, sub)
		want = append(want, dashboard.Message{Role: dashboard.RoleUser, Text: text})
	}
	h.Wait()

	if diff := cmp.Diff(want, ctrl.Snapshot().Chat.Transcript); diff != "" {
		t.Errorf("transcript (-want +got):\n%s", diff)
	}
}

func TestDispatch_TypingAfterEnterIsKept(t *testing.T) {
	h, ctrl, sub := newControllerHandler(t)

	h.dispatch(inbound{Type: ActionChatKey, Key: "Enter", Text: "first"}, sub)
	h.dispatch(inbound{Type: ActionChatInput, Text: "sec"}, sub)
	h.Wait()

	if got := ctrl.Snapshot().Chat.Input; got != "sec" {
		t.Errorf("input = %q, want the text typed after Enter", got)
	}
}

func TestWebSocketHandler_CloseDropsActions(t *testing.T) {
	actions := newFakeActions()
	hub := NewHub(0, testLogger())
	h := NewWebSocketHandler(context.Background(), hub, actions, "", true, testLogger())
	sub := hub.Subscribe("viewer", "tab")

	h.Close()
	h.dispatch(inbound{Type: ActionArchive}, sub)
	h.dispatch(inbound{Type: ActionOpenTask, ID: "t1"}, sub)
	h.dispatch(inbound{Type: ActionChatSend, Text: "late"}, sub)
	h.Wait()

	select {
	case c := <-actions.calls:
		t.Errorf("action %q ran after Close", c)
	default:
	}
}

func TestWebSocket_HubCloseDisconnectsTabs(t *testing.T) {
	hub := NewHub(0, testLogger())
	srv, _ := newTestServer(t, hub, newFakeActions())
	conn := dial(t, srv, "tab-1")
	waitForTabs(t, hub, 1)

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Errorf("read error = %v, want going-away close", err)
	}
	waitForTabs(t, hub, 0)
}
