package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/lumen/backend/internal/metrics"
	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/lumen/backend/internal/service/chat"
)

var (
	// ErrStartStream means the inference server could not be reached or
	// refused the request. Nothing was emitted.
	ErrStartStream = errors.New("failed to start inference stream")
	// ErrInterrupted means the stream broke after it started. The partial
	// reply is not stored.
	ErrInterrupted = errors.New("inference stream interrupted")
)

// Service runs chat turns against a streaming chat model.
type Service struct {
	chatModel model.BaseChatModel
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(chatModel model.BaseChatModel, m *metrics.Metrics) *Service {
	return &Service{
		chatModel: chatModel,
		metrics:   m,
		logger:    slog.Default().With("component", "ai"),
	}
}

// ChatStream sends text with the conversation's recent history and hands
// every reply chunk to emit as it arrives. The conversation is only locked
// while the prompt is built and again when the finished reply is stored, so
// other sessions and clears are never blocked by a stream in flight.
//
// The reply is stored only when the stream completes. An emit error means
// the consumer went away: the stream is closed, which stops the producer.
func (s *Service) ChatStream(ctx context.Context, conv *chatservice.Conversation, text string, emit func(chunk string) error) (string, error) {
	prompt := conv.Begin(text)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.chatModel.Stream(ctx, toSchemaMessages(prompt))
	if err != nil {
		s.metrics.ObserveStream(metrics.OutcomeStartFailed)
		s.logger.Error("failed to start chat stream", "session", conv.ID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrStartStream, err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.metrics.ObserveStream(metrics.OutcomeInterrupted)
			s.logger.Warn("chat stream interrupted", "session", conv.ID, "received", reply.Len(), "error", err)
			return reply.String(), fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		reply.WriteString(chunk.Content)
		if err := emit(chunk.Content); err != nil {
			s.metrics.ObserveStream(metrics.OutcomeDetached)
			s.logger.Info("chat consumer detached", "session", conv.ID, "error", err)
			return reply.String(), fmt.Errorf("deliver chunk: %w", err)
		}
		s.metrics.ChatChunk()
	}

	final := reply.String()
	conv.Finalize(final)

	s.metrics.ObserveStream(metrics.OutcomeCompleted)
	s.logger.Info("chat stream completed", "session", conv.ID, "length", len(final))
	return final, nil
}

func toSchemaMessages(messages []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Content))
		case chat.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
