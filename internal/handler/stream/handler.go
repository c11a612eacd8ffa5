package stream

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	aiService "github.com/zhouzirui/lumen/backend/internal/service/ai"
	chatService "github.com/zhouzirui/lumen/backend/internal/service/chat"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// EventChatResponse carries one reply chunk.
const EventChatResponse = "chat-response"

// Handler manages streaming chat replies via Server-Sent Events
type Handler struct {
	aiService *aiService.Service
	chatSvc   *chatService.Service
	logger    *slog.Logger
}

// New creates a new stream handler
func New(aiSvc *aiService.Service, chatSvc *chatService.Service) *Handler {
	return &Handler{
		aiService: aiSvc,
		chatSvc:   chatSvc,
		logger:    slog.Default().With("component", "stream"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleChatStream)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// DonePayload closes a successful stream.
type DonePayload struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

// ErrorPayload reports a failure after the stream started.
type ErrorPayload struct {
	Error string `json:"error"`
}

// handleChatStream 在流开始之前的失败返回普通 JSON 错误，开始之后的失败以 error 事件结束。
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var req chatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	conv, err := h.chatSvc.Conversation(ctx, req.SessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		utils.SetupSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
	}

	reply, err := h.aiService.ChatStream(ctx, conv, req.Message, func(chunk string) error {
		start()
		return utils.SendSSEEvent(w, flusher, EventChatResponse, chunk)
	})

	switch {
	case err == nil:
		start()
		if sendErr := utils.SendSSEEvent(w, flusher, utils.EventDone, DonePayload{SessionID: conv.ID, Reply: reply}); sendErr != nil {
			h.logger.Debug("client gone before done event", "session", conv.ID, "error", sendErr)
		}
	case errors.Is(err, aiService.ErrStartStream) && !started:
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, aiService.ErrStartStream), errors.Is(err, aiService.ErrInterrupted):
		start()
		if sendErr := utils.SendSSEEvent(w, flusher, utils.EventError, ErrorPayload{Error: err.Error()}); sendErr != nil {
			h.logger.Debug("client gone before error event", "session", conv.ID, "error", sendErr)
		}
	default:
		h.logger.Info("chat stream abandoned by client", "session", conv.ID, "error", err)
	}
}
