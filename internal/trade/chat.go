package trade

import (
	"context"
	"log/slog"
	"sync"

	"tradedesk/internal/domain"
)

// chatFallback is shown as an assistant message when the chat request
// itself fails.
const chatFallback = "Error: failed to get response."

// ChatBackend is the slice of the trading API the chat flow needs.
type ChatBackend interface {
	Chat(ctx context.Context, message string) (domain.ChatResponse, error)
}

// ChatController relays messages to the assistant and keeps the transcript.
// The assistant executes trades and watchlist changes server-side; this
// controller only learns about them after the fact and triggers a portfolio
// refresh when they happened.
type ChatController struct {
	backend ChatBackend
	refresh func()
	log     *slog.Logger

	mu       sync.Mutex
	messages []domain.ChatMessage
}

func NewChatController(backend ChatBackend, refresh func(), log *slog.Logger) *ChatController {
	return &ChatController{backend: backend, refresh: refresh, log: log}
}

// Send delivers one user message and appends both it and the assistant's
// reply to the transcript. A failed request becomes a synthetic assistant
// message rather than an error. Exactly one refresh fires if the reply
// carries trades or watchlist changes; a plain conversational reply causes
// none.
func (c *ChatController) Send(ctx context.Context, text string) {
	c.append(domain.ChatMessage{Role: "user", Content: text})

	resp, err := c.backend.Chat(ctx, text)
	if err != nil {
		c.log.Warn("chat request failed", "error", err)
		c.append(domain.ChatMessage{Role: "assistant", Content: chatFallback})
		return
	}

	c.append(domain.ChatMessage{
		Role:             "assistant",
		Content:          resp.Message,
		Trades:           resp.Trades,
		WatchlistChanges: resp.WatchlistChanges,
	})

	if resp.HasSideEffects() {
		c.log.Info("chat reported side effects",
			"trades", len(resp.Trades), "watchlist_changes", len(resp.WatchlistChanges))
		c.refresh()
	}
}

// Messages returns a copy of the transcript, oldest first.
func (c *ChatController) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *ChatController) append(m domain.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
}
