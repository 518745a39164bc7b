package main

import (
	"fmt"
	"net/http"

	"github.com/fakmal/chatdelon/internal/api"
	"github.com/fakmal/chatdelon/internal/chat"
	"github.com/fakmal/chatdelon/internal/config"
	"github.com/fakmal/chatdelon/internal/db"
	"github.com/fakmal/chatdelon/internal/ingest"
	"github.com/fakmal/chatdelon/internal/provider"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	database, err := db.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("driver", cfg.DBDriver))
	}
	defer database.Close()

	// Provider resolution failure is not fatal: the server keeps running
	// with the provider reported inactive, and chat requests answer 500.
	activeProvider, err := provider.Resolve(cfg)
	if err != nil {
		logger.Warn("AI provider unavailable",
			zap.Error(err),
			zap.String("provider", cfg.Provider))
		activeProvider = nil
	} else {
		logger.Info("AI provider loaded", zap.String("provider", activeProvider.Name()))
	}

	assembler := chat.NewAssembler(chat.DefaultSystemPrompt, cfg.HistoryWindow, cfg.TokenBudget)
	chatService := chat.NewService(database, activeProvider, assembler, cfg.Temperature, cfg.MaxTokens, logger)

	ingestor, err := ingest.New(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal("failed to initialize upload directory",
			zap.Error(err),
			zap.String("dir", cfg.UploadDir))
	}

	handler := api.NewHandler(database, chatService, ingestor, cfg.Provider, cfg.MaxUploadBytes, logger)

	mux := http.NewServeMux()
	handler.Routes(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("starting server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
