package provider

import (
	"context"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// openAICompat serves every vendor that speaks the OpenAI chat-completions
// wire format: openai itself, deepseek and groq. Messages are sent
// verbatim with their role and content.
type openAICompat struct {
	name string
	llm  *openai.LLM
}

func newOpenAICompat(name, baseURL, apiKey, model string) (Provider, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, err, "failed to initialize %s provider", name)
	}
	return &openAICompat{name: name, llm: llm}, nil
}

func (p *openAICompat) Name() string { return p.name }

func (p *openAICompat) Generate(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.KindProvider, err, "%s error", p.name)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.KindProvider, "%s error: empty completion", p.name)
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
