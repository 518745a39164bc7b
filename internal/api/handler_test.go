package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/fakmal/chatdelon/internal/chat"
	"github.com/fakmal/chatdelon/internal/config"
	"github.com/fakmal/chatdelon/internal/db"
	"github.com/fakmal/chatdelon/internal/ingest"
	"github.com/fakmal/chatdelon/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Generate(context.Context, []provider.Message, float64, int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubProvider) Name() string { return "stub" }

type testServer struct {
	mux      *http.ServeMux
	database *db.Database
	uploads  string
}

func newTestServer(t *testing.T, p provider.Provider) *testServer {
	t.Helper()
	logger := zap.NewNop()

	cfg := config.Config{DBDriver: "sqlite3", DBPath: t.TempDir() + "/api.db"}
	database, err := db.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	uploads := t.TempDir()
	ingestor, err := ingest.New(uploads, logger)
	require.NoError(t, err)

	assembler := &chat.Assembler{SystemPrompt: "persona", HistoryWindow: 10}
	chatService := chat.NewService(database, p, assembler, 0.7, 3000, logger)

	handler := NewHandler(database, chatService, ingestor, "groq", 1<<20, logger)
	mux := http.NewServeMux()
	handler.Routes(mux)

	return &testServer{mux: mux, database: database, uploads: uploads}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return ts.do(t, method, path, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestChatEmptyMessage(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: "never"})

	rec := ts.doJSON(t, http.MethodPost, "/chat", map[string]string{"message": "   "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestChatInvalidBody(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: "never"})

	rec := ts.do(t, http.MethodPost, "/chat", strings.NewReader("{broken"), "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatFlow(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: "pong"})

	rec := ts.doJSON(t, http.MethodPost, "/chat", map[string]any{"message": "ping"})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[ChatResponse](t, rec)
	assert.True(t, first.Success)
	assert.Equal(t, "pong", first.Response)
	require.Positive(t, first.ConversationID)

	// A follow-up in the same conversation keeps the id.
	rec = ts.doJSON(t, http.MethodPost, "/chat", map[string]any{
		"message":         "ping again",
		"conversation_id": first.ConversationID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[ChatResponse](t, rec)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	// Four messages persisted: two user turns, two replies.
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", first.ConversationID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs struct {
		Success  bool `json:"success"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs.Messages, 4)
	assert.Equal(t, "ping", msgs.Messages[0].Content)
	assert.Equal(t, "pong", msgs.Messages[1].Content)
}

func TestChatProviderInactive(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.doJSON(t, http.MethodPost, "/chat", map[string]string{"message": "anyone?"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.False(t, resp.Success)
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: "ok"})

	// Create with no title falls back to the default.
	rec := ts.doJSON(t, http.MethodPost, "/api/conversations", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Success        bool   `json:"success"`
		ConversationID int64  `json:"conversation_id"`
		Title          string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Equal(t, db.DefaultTitle, created.Title)

	rec = ts.do(t, http.MethodGet, "/api/conversations", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Success       bool `json:"success"`
		Conversations []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Conversations, 1)

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/conversations/%d", created.ConversationID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Deleted conversations have no messages route anymore.
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", created.ConversationID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/conversations/424242/messages", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartUpload(t *testing.T, filename, content string, conversationID int64) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("conversation_id", fmt.Sprint(conversationID)))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadDisallowedExtension(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: "never"})
	conv, err := ts.database.CreateConversation("uploads")
	require.NoError(t, err)

	body, contentType := multipartUpload(t, "malware.exe", "mz", conv.ID)
	rec := ts.do(t, http.MethodPost, "/api/upload", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.False(t, resp.Success)

	entries, err := os.ReadDir(ts.uploads)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected upload must not be written")
}

func TestUploadMissingConversationID(t *testing.T) {
	ts := newTestServer(t, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := ts.do(t, http.MethodPost, "/api/upload", &buf, w.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadFlow(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: "this is a greeting"})
	conv, err := ts.database.CreateConversation("uploads")
	require.NoError(t, err)

	body, contentType := multipartUpload(t, "hello.txt", "hello upload", conv.ID)
	rec := ts.do(t, http.MethodPost, "/api/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success    bool   `json:"success"`
		Filename   string `json:"filename"`
		Analysis   string `json:"analysis"`
		AIResponse string `json:"ai_response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, strings.HasSuffix(resp.Filename, "_hello.txt"))
	assert.Equal(t, "hello upload", resp.Analysis)
	assert.Equal(t, "this is a greeting", resp.AIResponse)

	// The stored file is served back raw.
	rec = ts.do(t, http.MethodGet, "/uploads/"+resp.Filename, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello upload", rec.Body.String())
}

func TestServeUploadUnknownFile(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/uploads/nope.txt", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviderInfo(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: "ok"})

	rec := ts.do(t, http.MethodGet, "/api/provider", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Provider string `json:"provider"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "groq", resp.Provider)
	assert.Equal(t, "active", resp.Status)
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := &Handler{logger: zap.New(core)}

	rec := httptest.NewRecorder()
	h.writeJSON(rec, http.StatusOK, math.NaN()) // NaN has no JSON encoding

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "failed to encode response", logs.All()[0].Message)
}

func TestProviderInfoInactive(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/provider", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"inactive"`)
}
