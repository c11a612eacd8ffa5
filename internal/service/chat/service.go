package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/zhouzirui/lumen/backend/internal/model/chat"
)

// DefaultSessionID names the conversation the desktop shell uses when it
// does not ask for a specific one.
const DefaultSessionID = "default"

var ErrSessionNotFound = errors.New("session not found")

// Options sizes the windows of new conversations.
type Options struct {
	SystemPrompt string
	ContextSize  int
	HistoryLimit int
}

// Service keeps the in-memory conversations of this process.
type Service struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Conversation
}

// NewService creates the registry with the default conversation already open.
func NewService(opts Options) *Service {
	s := &Service{
		opts:     opts,
		sessions: make(map[string]*Conversation),
	}
	s.sessions[DefaultSessionID] = s.newConversation(DefaultSessionID)
	return s
}

func (s *Service) newConversation(id string) *Conversation {
	return newConversation(id, NewWindow(s.opts.SystemPrompt, s.opts.ContextSize, s.opts.HistoryLimit))
}

// CreateSession opens a fresh conversation with a random identifier.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	conv := s.newConversation(uuid.NewString())

	s.mu.Lock()
	s.sessions[conv.ID] = conv
	s.mu.Unlock()

	return conv.Session(), nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	conv, err := s.Conversation(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return conv.Session(), nil
}

// Conversation resolves the context object for sessionID. An empty id
// selects the default conversation.
func (s *Service) Conversation(_ context.Context, sessionID string) (*Conversation, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return conv, nil
}

// Default returns the conversation opened at startup.
func (s *Service) Default() *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[DefaultSessionID]
}

// ClearConversation empties the history of sessionID.
func (s *Service) ClearConversation(ctx context.Context, sessionID string) error {
	conv, err := s.Conversation(ctx, sessionID)
	if err != nil {
		return err
	}
	conv.Clear()
	return nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	conv, err := s.Conversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return conv.Transcript(), nil
}

// DeleteSession forgets a conversation. The default conversation is only cleared.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if sessionID == DefaultSessionID {
		conv.Clear()
		return nil
	}
	delete(s.sessions, sessionID)
	return nil
}
