package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/lumen/backend/internal/model/chat"
)

func fill(w *Window, n int) {
	for i := 0; i < n; i++ {
		w.Append(chat.UserMessage(fmt.Sprintf("m%d", i)))
	}
}

func TestBuildPromptEmptyHistory(t *testing.T) {
	w := NewWindow("sys", 0, 0)

	prompt := w.BuildPrompt("hello")

	require.Len(t, prompt, 2)
	require.Equal(t, chat.RoleSystem, prompt[0].Role)
	require.Equal(t, "sys", prompt[0].Content)
	require.Equal(t, chat.UserMessage("hello"), prompt[1])
}

func TestBuildPromptBoundsHistory(t *testing.T) {
	for n := 0; n <= 12; n++ {
		w := NewWindow("sys", DefaultContextSize, DefaultHistoryLimit)
		fill(w, n)
		before := w.Messages()

		prompt := w.BuildPrompt("new")

		carried := n
		if carried > DefaultContextSize {
			carried = DefaultContextSize
		}
		require.Len(t, prompt, carried+2, "history length %d", n)
		require.Equal(t, chat.RoleSystem, prompt[0].Role)
		for _, msg := range prompt[1:] {
			require.NotEqual(t, chat.RoleSystem, msg.Role)
		}
		require.Equal(t, "new", prompt[len(prompt)-1].Content)
		if carried > 0 {
			require.Equal(t, fmt.Sprintf("m%d", n-carried), prompt[1].Content)
		}
		require.Equal(t, before, w.Messages(), "prompt building must not mutate history")
	}
}

func TestAppendDoesNotPrune(t *testing.T) {
	w := NewWindow("sys", DefaultContextSize, DefaultHistoryLimit)
	fill(w, 15)
	require.Equal(t, 15, w.Len())
}

func TestFinalizeClampsHistory(t *testing.T) {
	w := NewWindow("sys", DefaultContextSize, DefaultHistoryLimit)
	for i := 0; i < 8; i++ {
		w.Append(chat.UserMessage(fmt.Sprintf("q%d", i)))
		w.Finalize(fmt.Sprintf("a%d", i))
		require.LessOrEqual(t, w.Len(), DefaultHistoryLimit)
	}

	msgs := w.Messages()
	require.Len(t, msgs, DefaultHistoryLimit)
	require.Equal(t, "q3", msgs[0].Content)
	require.Equal(t, "a7", msgs[len(msgs)-1].Content)
	require.Equal(t, chat.RoleAssistant, msgs[len(msgs)-1].Role)
	require.NotNil(t, msgs[len(msgs)-1].Metadata)
}

func TestFinalizeEmptyReplyIsNoop(t *testing.T) {
	w := NewWindow("sys", DefaultContextSize, DefaultHistoryLimit)
	fill(w, 12)

	w.Finalize("")

	require.Equal(t, 12, w.Len())
}

func TestClear(t *testing.T) {
	w := NewWindow("sys", DefaultContextSize, DefaultHistoryLimit)
	fill(w, 4)
	w.Clear()
	require.Zero(t, w.Len())
	require.Len(t, w.BuildPrompt("x"), 2)
}

func TestConversationBeginRecordsUserTurn(t *testing.T) {
	conv := newConversation("c", NewWindow("sys", DefaultContextSize, DefaultHistoryLimit))

	prompt := conv.Begin("first")
	require.Len(t, prompt, 2)

	prompt = conv.Begin("second")
	require.Len(t, prompt, 3)
	require.Equal(t, "first", prompt[1].Content)

	conv.Finalize("reply")
	require.Len(t, conv.Transcript(), 3)
}

func TestConversationConcurrentAccess(t *testing.T) {
	conv := newConversation("c", NewWindow("sys", DefaultContextSize, DefaultHistoryLimit))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			conv.Begin(fmt.Sprintf("q%d", i))
			conv.Finalize(fmt.Sprintf("a%d", i))
		}(i)
		go func() {
			defer wg.Done()
			conv.Clear()
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, len(conv.Transcript()), DefaultHistoryLimit+1)
}
