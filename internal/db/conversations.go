package db

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/models"
	"go.uber.org/zap"
)

// DefaultTitle is used when a conversation is created without one.
const DefaultTitle = "New Conversation"

// CreateConversation inserts a conversation and returns it with its
// generated id. An empty title falls back to DefaultTitle.
func (d *Database) CreateConversation(title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	now := time.Now().UTC()
	res, err := d.db.Exec(
		"INSERT INTO conversations (title, created_at, updated_at) VALUES (?, ?, ?)",
		title, now, now,
	)
	if err != nil {
		d.logger.Error("failed to create conversation", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to create conversation")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to read conversation id")
	}

	return &models.Conversation{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// ListConversations returns up to limit conversations, newest-updated first.
func (d *Database) ListConversations(limit int) ([]models.Conversation, error) {
	rows, err := d.db.Query(
		"SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to list conversations")
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to scan conversation")
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to list conversations")
	}
	return conversations, nil
}

// ConversationExists reports whether the conversation id is known.
func (d *Database) ConversationExists(id int64) (bool, error) {
	var one int
	err := d.db.QueryRow("SELECT 1 FROM conversations WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindStorage, err, "failed to look up conversation %d", id)
	}
	return true, nil
}

// DeleteConversation removes the conversation and all its messages. The
// explicit two-step delete keeps the behavior identical across backends
// regardless of cascade support.
func (d *Database) DeleteConversation(id int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to delete conversation %d", id)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to delete messages of conversation %d", id)
	}
	if _, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to delete conversation %d", id)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to delete conversation %d", id)
	}
	return nil
}
