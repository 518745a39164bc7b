// Package api exposes the JSON surface over the chat service, the store
// and the ingestor.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/chat"
	"github.com/fakmal/chatdelon/internal/db"
	"github.com/fakmal/chatdelon/internal/ingest"
	"github.com/fakmal/chatdelon/internal/models"
	"github.com/fakmal/chatdelon/internal/provider"
	"go.uber.org/zap"
)

// conversationListLimit bounds GET /api/conversations.
const conversationListLimit = 50

type Handler struct {
	db             *db.Database
	chat           *chat.Service
	ingest         *ingest.Ingestor
	providerName   string
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewHandler(database *db.Database, chatService *chat.Service, ingestor *ingest.Ingestor, providerName string, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		db:             database,
		chat:           chatService,
		ingest:         ingestor,
		providerName:   providerName,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Routes registers every endpoint on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.HandleChat)
	mux.HandleFunc("GET /api/conversations", h.ListConversations)
	mux.HandleFunc("POST /api/conversations", h.CreateConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.DeleteConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.GetMessages)
	mux.HandleFunc("POST /api/upload", h.Upload)
	mux.HandleFunc("GET /uploads/{filename}", h.ServeUpload)
	mux.HandleFunc("GET /api/provider", h.ProviderInfo)
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	// History is accepted for compatibility with the stateless client;
	// stored conversation history takes precedence and the field is ignored
	// when a conversation id is in play.
	History []provider.Message `json:"history,omitempty"`
}

type ChatResponse struct {
	Success        bool   `json:"success"`
	Response       string `json:"response"`
	ConversationID int64  `json:"conversation_id"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		return
	}

	reply, conversationID, err := h.chat.SendMessage(r.Context(), req.ConversationID, message)
	if err != nil {
		h.logger.Error("chat request failed",
			zap.Error(err),
			zap.Int64("conversationID", req.ConversationID))
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ChatResponse{
		Success:        true,
		Response:       reply,
		ConversationID: conversationID,
	})
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.db.ListConversations(conversationListLimit)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Success       bool                  `json:"success"`
		Conversations []models.Conversation `json:"conversations"`
	}{true, conversations})
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	conv, err := h.db.CreateConversation(req.Title)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Success        bool   `json:"success"`
		ConversationID int64  `json:"conversation_id"`
		Title          string `json:"title"`
	}{true, conv.ID, conv.Title})
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
		return
	}

	if err := h.db.DeleteConversation(id); err != nil {
		h.logger.Error("failed to delete conversation", zap.Error(err), zap.Int64("conversationID", id))
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
		return
	}

	exists, err := h.db.ConversationExists(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !exists {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		return
	}

	messages, err := h.db.GetMessages(id)
	if err != nil {
		h.logger.Error("failed to get messages", zap.Error(err), zap.Int64("conversationID", id))
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Success  bool             `json:"success"`
		Messages []models.Message `json:"messages"`
	}{true, messages})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "no file provided"})
		return
	}
	defer file.Close()

	conversationID, err := strconv.ParseInt(r.FormValue("conversation_id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "conversation id is required"})
		return
	}
	exists, err := h.db.ConversationExists(conversationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !exists {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown conversation id"})
		return
	}

	storedName, storedPath, err := h.ingest.Save(header.Filename, file)
	if err != nil {
		h.respondError(w, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	analysis := ingest.ExtractText(storedPath, mimeType)

	aiResponse, err := h.chat.AnalyzeUpload(r.Context(), conversationID, storedName, storedPath, mimeType, analysis)
	if err != nil {
		h.logger.Error("upload analysis failed",
			zap.Error(err),
			zap.Int64("conversationID", conversationID),
			zap.String("filename", storedName))
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Success    bool   `json:"success"`
		Filename   string `json:"filename"`
		Analysis   string `json:"analysis"`
		AIResponse string `json:"ai_response,omitempty"`
	}{true, storedName, analysis, aiResponse})
}

func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	path := filepath.Join(h.ingest.Dir(), name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) ProviderInfo(w http.ResponseWriter, r *http.Request) {
	status := "inactive"
	if h.chat.Active() {
		status = "active"
	}
	h.writeJSON(w, http.StatusOK, struct {
		Provider string `json:"provider"`
		Status   string `json:"status"`
	}{h.providerName, status})
}

// respondError maps the error kind to a status code and surfaces the
// user-safe message. Vendor messages are embedded; credentials never are.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperr.KindOf(err) == apperr.KindValidation {
		status = http.StatusBadRequest
	}

	msg := "internal server error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Error()
	}
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
