package chat

import (
	"github.com/zhouzirui/lumen/backend/internal/model/chat"
)

const (
	// DefaultContextSize is how many stored messages accompany a new turn.
	DefaultContextSize = 5
	// DefaultHistoryLimit is how many messages survive a completed exchange.
	DefaultHistoryLimit = 10
)

// Window is the bounded, ordered history of one conversation. It is not safe
// for concurrent use; Conversation serializes access to it.
type Window struct {
	systemPrompt string
	contextSize  int
	historyLimit int
	messages     []chat.Message
}

// NewWindow creates an empty window. Non-positive sizes fall back to the defaults.
func NewWindow(systemPrompt string, contextSize, historyLimit int) *Window {
	if contextSize <= 0 {
		contextSize = DefaultContextSize
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Window{
		systemPrompt: systemPrompt,
		contextSize:  contextSize,
		historyLimit: historyLimit,
		messages:     make([]chat.Message, 0, historyLimit+2),
	}
}

// BuildPrompt returns the system message, the most recent stored messages and
// the new user turn. The stored history is left untouched.
func (w *Window) BuildPrompt(text string) []chat.Message {
	start := len(w.messages) - w.contextSize
	if start < 0 {
		start = 0
	}

	prompt := make([]chat.Message, 0, len(w.messages)-start+2)
	prompt = append(prompt, chat.SystemMessage(w.systemPrompt))
	prompt = append(prompt, w.messages[start:]...)
	prompt = append(prompt, chat.UserMessage(text))
	return prompt
}

// Append stores a message without pruning.
func (w *Window) Append(message chat.Message) {
	w.messages = append(w.messages, message)
}

// Finalize records a completed assistant reply and trims the oldest messages
// beyond the history limit. An empty reply is ignored.
func (w *Window) Finalize(reply string) {
	if reply == "" {
		return
	}
	w.messages = append(w.messages, chat.AssistantMessage(reply))
	if excess := len(w.messages) - w.historyLimit; excess > 0 {
		kept := make([]chat.Message, w.historyLimit, w.historyLimit+2)
		copy(kept, w.messages[excess:])
		w.messages = kept
	}
}

// Clear drops every stored message.
func (w *Window) Clear() {
	w.messages = w.messages[:0]
}

// Messages returns a copy of the stored history.
func (w *Window) Messages() []chat.Message {
	copied := make([]chat.Message, len(w.messages))
	copy(copied, w.messages)
	return copied
}

// Len reports the number of stored messages.
func (w *Window) Len() int {
	return len(w.messages)
}
