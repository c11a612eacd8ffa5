package inference

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// errNoMessage marks a well-formed JSON line that is not a chat record.
var errNoMessage = errors.New("record has no message")

var (
	// ErrStreamInterrupted means the body ended or failed before the final record.
	ErrStreamInterrupted = errors.New("inference stream interrupted")
	// ErrDetached means the consumer stopped accepting chunks.
	ErrDetached = errors.New("stream consumer detached")
)

// record is one line of the /api/chat streaming response.
type record struct {
	Model   string `json:"model"`
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Decoder turns newline-delimited response records into text chunks.
// Undecodable records are dropped and the stream carries on.
type Decoder struct {
	// OnSkip, when set, is called for every record that was dropped.
	OnSkip func(line []byte, err error)
}

// Decode reads records from r until the final one and hands each fragment to
// emit. The final record's fragment is flushed through the internal buffer as
// the last chunk. emit returning false stops decoding with ErrDetached.
func (d *Decoder) Decode(r io.Reader, emit func(chunk string) bool) error {
	reader := bufio.NewReader(r)
	var buffer strings.Builder

	for {
		line, readErr := reader.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var rec record
			if err := json.Unmarshal(line, &rec); err != nil {
				d.skip(line, err)
			} else if rec.Error != "" {
				return fmt.Errorf("%w: server error: %s", ErrStreamInterrupted, rec.Error)
			} else if rec.Message == nil {
				d.skip(line, errNoMessage)
			} else if rec.Done {
				buffer.WriteString(rec.Message.Content)
				final := buffer.String()
				buffer.Reset()
				if !emit(final) {
					return ErrDetached
				}
				return nil
			} else if !emit(rec.Message.Content) {
				return ErrDetached
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return fmt.Errorf("%w: body ended before the final record", ErrStreamInterrupted)
			}
			return fmt.Errorf("%w: %v", ErrStreamInterrupted, readErr)
		}
	}
}

func (d *Decoder) skip(line []byte, err error) {
	if d.OnSkip != nil {
		d.OnSkip(line, err)
	}
}
