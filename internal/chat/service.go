// Package chat orchestrates one request/response cycle: pull history,
// assemble the prompt, call the provider, persist both turns.
package chat

import (
	"context"
	"fmt"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/db"
	"github.com/fakmal/chatdelon/internal/models"
	"github.com/fakmal/chatdelon/internal/provider"
	"go.uber.org/zap"
)

// titleLimit bounds the default conversation title derived from the first
// user message.
const titleLimit = 50

// uploadSystemPrompt is the fixed instruction for the file-analysis call.
const uploadSystemPrompt = "Analyze the uploaded file and provide insight."

type Service struct {
	db          *db.Database
	provider    provider.Provider // nil when resolution failed at start-up
	assembler   *Assembler
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

func NewService(database *db.Database, p provider.Provider, assembler *Assembler, temperature float64, maxTokens int, logger *zap.Logger) *Service {
	return &Service{
		db:          database,
		provider:    p,
		assembler:   assembler,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Active reports whether a provider was resolved at start-up.
func (s *Service) Active() bool { return s.provider != nil }

// SendMessage runs the full chat cycle. A conversationID of zero starts a
// new conversation titled from the user message. Returns the assistant
// reply and the (possibly new) conversation id.
//
// The user message is persisted before the provider call; a mid-request
// failure leaves an orphaned trailing user message, which is acceptable
// for a chat log.
func (s *Service) SendMessage(ctx context.Context, conversationID int64, text string) (string, int64, error) {
	if s.provider == nil {
		return "", 0, apperr.New(apperr.KindConfiguration, "AI provider is not configured")
	}

	if conversationID == 0 {
		conv, err := s.db.CreateConversation(truncateTitle(text))
		if err != nil {
			return "", 0, err
		}
		conversationID = conv.ID
	} else {
		exists, err := s.db.ConversationExists(conversationID)
		if err != nil {
			return "", 0, err
		}
		if !exists {
			return "", 0, apperr.New(apperr.KindValidation, "unknown conversation id %d", conversationID)
		}
	}

	history, err := s.db.GetMessages(conversationID)
	if err != nil {
		return "", 0, err
	}

	userMsg := &models.Message{ConvID: conversationID, Role: models.RoleUser, Content: text}
	if err := s.db.AppendMessage(userMsg); err != nil {
		return "", 0, err
	}

	messages := s.assembler.Assemble(history, text)
	s.logger.Debug("assembled prompt",
		zap.Int64("conversationID", conversationID),
		zap.Int("messages", len(messages)),
		zap.Int("tokens", s.assembler.PromptTokens(messages)))

	reply, err := s.provider.Generate(ctx, messages, s.temperature, s.maxTokens)
	if err != nil {
		s.logger.Error("generation failed",
			zap.Error(err),
			zap.Int64("conversationID", conversationID),
			zap.String("provider", s.provider.Name()))
		return "", 0, err
	}

	assistantMsg := &models.Message{ConvID: conversationID, Role: models.RoleAssistant, Content: reply}
	if err := s.db.AppendMessage(assistantMsg); err != nil {
		return "", 0, err
	}

	return reply, conversationID, nil
}

// AnalyzeUpload persists the uploaded-file message and, when a provider is
// active, asks it for insight over the extracted text and persists the
// reply. Without a provider the file message is still stored and the AI
// step is skipped.
func (s *Service) AnalyzeUpload(ctx context.Context, conversationID int64, fileName, filePath, fileType, analysis string) (string, error) {
	fileMsg := &models.Message{
		ConvID:   conversationID,
		Role:     models.RoleUser,
		Content:  fmt.Sprintf("[File: %s]", fileName),
		FileName: fileName,
		FilePath: filePath,
		FileType: fileType,
		Analysis: analysis,
	}
	if err := s.db.AppendMessage(fileMsg); err != nil {
		return "", err
	}

	if s.provider == nil {
		return "", nil
	}

	messages := []provider.Message{
		{Role: models.RoleSystem, Content: uploadSystemPrompt},
		{Role: models.RoleUser, Content: fmt.Sprintf("File: %s\nContent: %s", fileName, analysis)},
	}
	reply, err := s.provider.Generate(ctx, messages, s.temperature, s.maxTokens)
	if err != nil {
		return "", err
	}

	assistantMsg := &models.Message{ConvID: conversationID, Role: models.RoleAssistant, Content: reply}
	if err := s.db.AppendMessage(assistantMsg); err != nil {
		return "", err
	}
	return reply, nil
}

// truncateTitle derives a display title from the first user message.
func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit])
}
