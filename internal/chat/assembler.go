package chat

import (
	"github.com/fakmal/chatdelon/internal/models"
	"github.com/fakmal/chatdelon/internal/provider"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultSystemPrompt is the fixed persona sent as the first entry of
// every assembled prompt.
const DefaultSystemPrompt = "You are CHATdelon, an AI assistant created by Farhan Akmal. " +
	"You are helpful and informative, knowledgeable across many topics, and able to analyze uploaded files. " +
	"Answer according to the preceding conversation and the user's question, in the language the user writes in. " +
	"Use whatever format fits best: plain text, lists, tables or code. " +
	"Be clear, polite and professional, and above all honest and accurate. " +
	"After answering, suggest a few follow-up questions on the current topic. " +
	"If you do not know the answer, say so."

// Assembler builds the ordered message list handed to the provider:
// system prompt, the trailing window of history, then the new user turn.
type Assembler struct {
	SystemPrompt  string
	HistoryWindow int
	TokenBudget   int // prompt token ceiling, 0 disables trimming

	enc *tiktoken.Tiktoken
}

// NewAssembler builds an assembler. Token counting is best-effort: when
// the encoding cannot be loaded the budget is ignored.
func NewAssembler(systemPrompt string, historyWindow, tokenBudget int) *Assembler {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Assembler{
		SystemPrompt:  systemPrompt,
		HistoryWindow: historyWindow,
		TokenBudget:   tokenBudget,
		enc:           enc,
	}
}

// Assemble returns system + up-to-HistoryWindow prior messages in
// chronological order with their original roles + the new user message.
// The assembled list is never persisted. When a token budget is set, the
// oldest windowed entries are dropped until the prompt fits; the system
// prompt and the new user turn are always kept.
func (a *Assembler) Assemble(history []models.Message, userMessage string) []provider.Message {
	window := history
	if a.HistoryWindow > 0 && len(window) > a.HistoryWindow {
		window = window[len(window)-a.HistoryWindow:]
	}

	build := func(window []models.Message) []provider.Message {
		messages := make([]provider.Message, 0, len(window)+2)
		messages = append(messages, provider.Message{Role: models.RoleSystem, Content: a.SystemPrompt})
		for _, msg := range window {
			messages = append(messages, provider.Message{Role: msg.Role, Content: msg.Content})
		}
		return append(messages, provider.Message{Role: models.RoleUser, Content: userMessage})
	}

	messages := build(window)
	if a.TokenBudget > 0 && a.enc != nil {
		for len(window) > 0 && a.PromptTokens(messages) > a.TokenBudget {
			window = window[1:]
			messages = build(window)
		}
	}
	return messages
}

// PromptTokens counts the tokens of an assembled prompt. Returns 0 when
// the encoding is unavailable.
func (a *Assembler) PromptTokens(messages []provider.Message) int {
	if a.enc == nil {
		return 0
	}
	total := 0
	for _, msg := range messages {
		total += len(a.enc.Encode(msg.Content, nil, nil))
	}
	return total
}
