package chat

import (
	"sync"
	"time"

	"github.com/zhouzirui/lumen/backend/internal/model/chat"
)

// Conversation is the per-session context handed to every chat operation.
// The lock is only ever held for in-memory work, never across a stream.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	window *Window
}

func newConversation(id string, window *Window) *Conversation {
	return &Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		window:    window,
	}
}

// Begin builds the outgoing prompt for text and records the user turn.
func (c *Conversation) Begin(text string) []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	prompt := c.window.BuildPrompt(text)
	c.window.Append(chat.UserMessage(text))
	return prompt
}

// Finalize records the assistant reply once its stream has completed.
func (c *Conversation) Finalize(reply string) {
	c.mu.Lock()
	c.window.Finalize(reply)
	c.mu.Unlock()
}

// Clear empties the history.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.window.Clear()
	c.mu.Unlock()
}

// Transcript returns a snapshot of the stored history.
func (c *Conversation) Transcript() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Messages()
}

// Session describes the conversation for the shell.
func (c *Conversation) Session() chat.Session {
	return chat.Session{ID: c.ID, CreatedAt: c.CreatedAt}
}
