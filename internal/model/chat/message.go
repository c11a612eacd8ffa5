package chat

import "github.com/zhouzirui/lumen/backend/internal/model/search"

// Role identifies the author of a message as understood by the inference server.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are never mutated once
// created; windows only append them.
type Message struct {
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata carries structured annotations the shell can render next to an
// assistant reply.
type Metadata struct {
	ContextCheck  *string         `json:"context_check,omitempty"`
	FactsCheck    *string         `json:"facts_check,omitempty"`
	SearchCheck   *string         `json:"search_check,omitempty"`
	Reasoning     *string         `json:"reasoning,omitempty"`
	Learning      *string         `json:"learning,omitempty"`
	SearchResults []search.Result `json:"search_results,omitempty"`
}

// SystemMessage builds the synthesized system turn that prefixes every prompt.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn with an empty metadata envelope.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Metadata: &Metadata{}}
}
