package dashboard

import (
	"context"
	"errors"
	"strings"

	"github.com/ashureev/fte-dashboard/internal/backend"
)

// ToggleChat opens or closes the chat panel and clears the notification badge.
func (c *Controller) ToggleChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Chat.Open = !c.state.Chat.Open
	c.state.Chat.BadgeVisible = false
	c.view.ShowChat(c.chatLocked())
}

// CloseChat closes the chat panel.
func (c *Controller) CloseChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Chat.Open {
		return
	}
	c.state.Chat.Open = false
	c.view.ShowChat(c.chatLocked())
}

// SetChatInput mirrors what the user typed. It does not re-render, the
// input element already shows the text.
func (c *Controller) SetChatInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Chat.Input = text
}

// KeyPress handles a key in the chat input. Enter sends text; any other key
// just records it.
func (c *Controller) KeyPress(ctx context.Context, key, text string) error {
	if key == "Enter" {
		return c.SendChat(ctx, text)
	}
	c.SetChatInput(text)
	return nil
}

// SendChat queues the message and posts it to the backend.
func (c *Controller) SendChat(ctx context.Context, text string) error {
	msg, ok := c.QueueChat(text)
	if !ok {
		return nil
	}
	return c.PostChat(ctx, msg)
}

// QueueChat appends the trimmed message to the transcript and clears the
// input. Blank messages are ignored and report false. Callers that post
// asynchronously must queue in arrival order so the transcript keeps it.
func (c *Controller) QueueChat(text string) (string, bool) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Chat.Transcript = append(c.state.Chat.Transcript, Message{Role: RoleUser, Text: msg})
	c.state.Chat.Input = ""
	c.view.ShowChat(c.chatLocked())
	return msg, true
}

// PostChat sends a queued message to the backend and appends the bot reply.
//
// A 2xx reply schedules a canned acknowledgement after the ack delay. The
// backend creates the task asynchronously; nothing here confirms it.
func (c *Controller) PostChat(ctx context.Context, msg string) error {
	err := c.api.Chat(ctx, msg)
	switch {
	case err == nil:
		c.scheduleBotMessage(ChatAck)
		return nil
	case errors.Is(err, backend.ErrStatus):
		c.logger.Warn("Chat rejected by backend", "error", err)
		c.appendBotMessage(ChatHTTPError)
	default:
		c.logger.Error("Chat error", "error", err)
		c.appendBotMessage(ChatSystemError)
	}
	return err
}

func (c *Controller) appendBotMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Chat.Transcript = append(c.state.Chat.Transcript, Message{Role: RoleBot, Text: text})
	c.view.ShowChat(c.chatLocked())
}

func (c *Controller) scheduleBotMessage(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	id := c.nextTimer
	c.nextTimer++
	c.pending[id] = nil
	c.mu.Unlock()

	stop := c.schedule(c.ackDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, live := c.pending[id]; !live {
			return
		}
		delete(c.pending, id)
		c.state.Chat.Transcript = append(c.state.Chat.Transcript, Message{Role: RoleBot, Text: text})
		c.view.ShowChat(c.chatLocked())
	})

	// f may already have run, or Close may have dropped the entry.
	c.mu.Lock()
	if _, live := c.pending[id]; live {
		c.pending[id] = stop
	}
	c.mu.Unlock()
}

// chatLocked returns the chat panel with a private copy of the transcript.
func (c *Controller) chatLocked() ChatPanel {
	p := c.state.Chat
	p.Transcript = append([]Message{}, c.state.Chat.Transcript...)
	return p
}
