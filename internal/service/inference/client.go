package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/lumen/backend/internal/metrics"
)

// DefaultBuffer is how many undelivered chunks a stream holds before the
// decoder waits for the consumer.
const DefaultBuffer = 100

// Config describes how to reach the local inference server.
type Config struct {
	BaseURL       string
	Model         string
	HeaderTimeout time.Duration
	Buffer        int
}

// Client talks to an Ollama-compatible /api/chat endpoint.
type Client struct {
	baseURL    string
	model      string
	buffer     int
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

var _ model.BaseChatModel = (*Client)(nil)

// NewClient builds a client. The HTTP client has no overall timeout because
// replies are streamed for as long as the model generates; only the wait for
// response headers is bounded.
func NewClient(cfg Config, m *metrics.Metrics) *Client {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.HeaderTimeout

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		buffer:     buffer,
		httpClient: &http.Client{Transport: transport},
		metrics:    m,
		logger:     slog.Default().With("component", "inference"),
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Stream opens a streaming chat request. Failing to reach the server or a
// non-2xx status is returned before any chunk exists. Once the stream is
// open, failures arrive as an error from Recv. Closing the returned reader
// stops the decoder at its next chunk and aborts the request; cancelling ctx
// aborts a request that is waiting on the server.
func (c *Client) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: toWire(input),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	reader, writer := schema.Pipe[*schema.Message](c.buffer)
	go c.pump(cancel, resp.Body, writer)
	return reader, nil
}

func (c *Client) pump(cancel context.CancelFunc, body io.ReadCloser, writer *schema.StreamWriter[*schema.Message]) {
	defer cancel()
	defer body.Close()
	defer writer.Close()

	decoder := Decoder{OnSkip: func(line []byte, err error) {
		c.metrics.RecordSkipped()
		c.logger.Debug("skipping undecodable record", "bytes", len(line), "error", err)
	}}

	err := decoder.Decode(body, func(chunk string) bool {
		return !writer.Send(schema.AssistantMessage(chunk, nil), nil)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrDetached):
		c.logger.Debug("consumer detached, stopping stream")
	default:
		c.logger.Warn("inference stream interrupted", "error", err)
		writer.Send(nil, err)
	}
}

// Generate drains a stream into a single assistant message.
func (c *Client) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	stream, err := c.Stream(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		reply.WriteString(chunk.Content)
	}
	return schema.AssistantMessage(reply.String(), nil), nil
}

func toWire(messages []*schema.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		out = append(out, wireMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}
