package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/models"
)

// defaultSystemPrompt is substituted when no system entry is present; the
// Anthropic wire contract carries the system instruction in a dedicated
// top-level field.
const defaultSystemPrompt = "You are a helpful assistant."

// anthropicProvider adapts the Anthropic messages API. Unlike the
// OpenAI-compatible vendors, system-role entries are split out of the
// conversation turns.
type anthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

func newAnthropic(apiKey, model string) (Provider, error) {
	return &anthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}, nil
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Generate(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	turns, system := splitSystem(messages)
	if system == "" {
		system = defaultSystemPrompt
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       p.model,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    turns,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindProvider, err, "anthropic error")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if text.Len() == 0 {
		return "", apperr.New(apperr.KindProvider, "anthropic error: empty completion")
	}
	return text.String(), nil
}

// splitSystem separates system entries (concatenated for the top-level
// field) from the user/assistant turns.
func splitSystem(messages []Message) ([]anthropic.MessageParam, string) {
	turns := make([]anthropic.MessageParam, 0, len(messages))
	var system []string

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			system = append(system, msg.Content)
		case models.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return turns, strings.Join(system, "\n\n")
}
