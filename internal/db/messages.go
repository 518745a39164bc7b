package db

import (
	"database/sql"
	"time"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/models"
	"go.uber.org/zap"
)

// AppendMessage inserts one immutable message row and bumps the owning
// conversation's updated_at. The message id and creation time are filled
// in on success. File name and path must be given together or not at all.
func (d *Database) AppendMessage(msg *models.Message) error {
	if !models.ValidRole(msg.Role) {
		return apperr.New(apperr.KindValidation, "invalid message role %q", msg.Role)
	}
	if (msg.FileName == "") != (msg.FilePath == "") {
		return apperr.New(apperr.KindValidation, "file name and path must be set together")
	}

	tx, err := d.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to save message")
	}
	defer tx.Rollback()

	// Timestamped after the connection is acquired so that creation time
	// and the auto-incremented id agree on insertion order.
	now := time.Now().UTC()

	res, err := tx.Exec(
		`INSERT INTO messages
			(conversation_id, role, content, file_name, file_path, file_type, analysis_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ConvID, msg.Role, msg.Content,
		nullable(msg.FileName), nullable(msg.FilePath), nullable(msg.FileType), nullable(msg.Analysis),
		now,
	)
	if err != nil {
		d.logger.Error("failed to save message",
			zap.Error(err),
			zap.Int64("conversationID", msg.ConvID),
			zap.String("role", msg.Role))
		return apperr.Wrap(apperr.KindStorage, err, "failed to save message")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to read message id")
	}

	if _, err := tx.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?", now, msg.ConvID); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to touch conversation %d", msg.ConvID)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to save message")
	}

	msg.ID = id
	msg.CreatedAt = now
	return nil
}

// GetMessages returns every message of the conversation, oldest first.
// The id tiebreak keeps the order stable when timestamps collide under
// concurrent appends.
func (d *Database) GetMessages(conversationID int64) ([]models.Message, error) {
	rows, err := d.db.Query(
		`SELECT id, conversation_id, role, content, file_name, file_path, file_type, analysis_result, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to get messages of conversation %d", conversationID)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg                                    models.Message
			fileName, filePath, fileType, analysis sql.NullString
		)
		err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content,
			&fileName, &filePath, &fileType, &analysis, &msg.CreatedAt)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to scan message")
		}
		msg.FileName = fileName.String
		msg.FilePath = filePath.String
		msg.FileType = fileType.String
		msg.Analysis = analysis.String
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to get messages of conversation %d", conversationID)
	}
	return messages, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
