package llm

import (
	"context"

	"github.com/radiusdt/adsight/internal/models"
)

// CompletionRequest is one call to a chat model.
type CompletionRequest struct {
	System string
	// History is replayed as alternating user and assistant turns before Prompt.
	History   []models.HistoryMessage
	Prompt    string
	MaxTokens int64
}

// Client is the interface for LLM interactions.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type turn struct {
	user bool
	text string
}

// conversation flattens history and prompt into alternating turns that start
// with the user. Empty messages are dropped and consecutive messages from the
// same role are merged.
func conversation(history []models.HistoryMessage, prompt string) []turn {
	var turns []turn
	add := func(user bool, text string) {
		if text == "" {
			return
		}
		if len(turns) == 0 && !user {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].user == user {
			turns[n-1].text += "\n\n" + text
			return
		}
		turns = append(turns, turn{user: user, text: text})
	}

	for _, h := range history {
		add(h.Role != "assistant", h.Content)
	}
	add(true, prompt)
	return turns
}
