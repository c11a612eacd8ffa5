package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	searchhandler "github.com/zhouzirui/lumen/backend/internal/handler/search"
	"github.com/zhouzirui/lumen/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/lumen/backend/internal/service/chat"
	searchservice "github.com/zhouzirui/lumen/backend/internal/service/search"
)

// Commands accepted from the shell.
const (
	CommandChatStream        = "chat_stream"
	CommandClearConversation = "clear_conversation"
	CommandPerformSearch     = "perform_search"
)

// Events pushed to the shell.
const (
	EventChatResponse  = "chat-response"
	EventSearchResult  = "search-result"
	EventCommandResult = "command-result"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler 桌面壳与后端之间的命令通道。每条命令并发执行，
// 连接关闭时取消所有未完成的命令。
type WebSocketHandler struct {
	chatSvc        *chatservice.Service
	aiSvc          *ai.Service
	searchSvc      *searchservice.Client
	searchDefaults searchhandler.Defaults
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

func NewWebSocketHandler(chatSvc *chatservice.Service, aiSvc *ai.Service, searchSvc *searchservice.Client, searchDefaults searchhandler.Defaults) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:        chatSvc,
		aiSvc:          aiSvc,
		searchSvc:      searchSvc,
		searchDefaults: searchDefaults,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default().With("component", "shell"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// Command is one inbound request. ID is echoed back as requestId.
type Command struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Event is one outbound message.
type Event struct {
	Event     string `json:"event"`
	RequestID string `json:"requestId"`
	Payload   any    `json:"payload,omitempty"`
}

// CommandResult ends every command.
type CommandResult struct {
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type chatArgs struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type clearArgs struct {
	SessionID string `json:"sessionId"`
}

// peer serializes writes to one connection.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(event)
}

func (p *peer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	p := &peer{conn: conn}
	ctx, cancel := context.WithCancel(r.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go h.pingLoop(ctx, p)

	h.logger.Info("shell connected", "remote", r.RemoteAddr)

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read error", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}

		inflight.Add(1)
		go func(cmd Command) {
			defer inflight.Done()
			h.dispatch(ctx, p, cmd)
		}(cmd)
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, p *peer, cmd Command) {
	data, err := h.run(ctx, p, cmd)

	result := CommandResult{Command: cmd.Command, Data: data}
	if err != nil {
		result.Error = err.Error()
		h.logger.Debug("command failed", "command", cmd.Command, "requestId", cmd.ID, "error", err)
	}
	if sendErr := p.send(Event{Event: EventCommandResult, RequestID: cmd.ID, Payload: result}); sendErr != nil {
		h.logger.Debug("failed to deliver command result", "requestId", cmd.ID, "error", sendErr)
	}
}

func (h *WebSocketHandler) run(ctx context.Context, p *peer, cmd Command) (any, error) {
	switch cmd.Command {
	case CommandChatStream:
		return h.chatStream(ctx, p, cmd)
	case CommandClearConversation:
		var args clearArgs
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return nil, err
		}
		return nil, h.chatSvc.ClearConversation(ctx, args.SessionID)
	case CommandPerformSearch:
		return h.performSearch(ctx, p, cmd)
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.Command)
	}
}

func (h *WebSocketHandler) chatStream(ctx context.Context, p *peer, cmd Command) (any, error) {
	var args chatArgs
	if err := decodeArgs(cmd.Args, &args); err != nil {
		return nil, err
	}
	if args.Message == "" {
		return nil, errors.New("message is required")
	}

	conv, err := h.chatSvc.Conversation(ctx, args.SessionID)
	if err != nil {
		return nil, err
	}

	reply, err := h.aiSvc.ChatStream(ctx, conv, args.Message, func(chunk string) error {
		return p.send(Event{Event: EventChatResponse, RequestID: cmd.ID, Payload: chunk})
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"sessionId": conv.ID, "reply": reply}, nil
}

func (h *WebSocketHandler) performSearch(ctx context.Context, p *peer, cmd Command) (any, error) {
	var req searchhandler.Request
	if err := decodeArgs(cmd.Args, &req); err != nil {
		return nil, err
	}
	query, mode, err := h.searchDefaults.Resolve(req)
	if err != nil {
		return nil, err
	}

	stream, err := h.searchSvc.Search(ctx, query, mode)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	count := 0
	for {
		result, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return map[string]int{"count": count}, nil
		}
		if err != nil {
			return nil, err
		}
		if err := p.send(Event{Event: EventSearchResult, RequestID: cmd.ID, Payload: result}); err != nil {
			return nil, err
		}
		count++
	}
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		}
	}
}
