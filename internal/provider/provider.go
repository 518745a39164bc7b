// Package provider abstracts the hosted LLM vendors behind a single
// Generate capability. Adapters differ only in wire format and default
// model, never in behavior.
package provider

import (
	"context"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/models"
)

// Message is a provider-neutral chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates one text completion for an ordered chat history.
// A single synchronous call per invocation; no retry, no streaming.
type Provider interface {
	Generate(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
	Name() string
}

// validateMessages enforces the shared input contract: at least one entry,
// roles limited to system, user and assistant.
func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return apperr.New(apperr.KindValidation, "messages must not be empty")
	}
	for _, msg := range messages {
		if !models.ValidRole(msg.Role) {
			return apperr.New(apperr.KindValidation, "invalid message role %q", msg.Role)
		}
	}
	return nil
}
