package models

import "time"

// Message roles accepted by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether role is one of user, assistant or system.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one immutable turn within a conversation. FileName and
// FilePath are set together or not at all; Analysis carries the text
// extracted from an uploaded file.
type Message struct {
	ID        int64     `json:"id"`
	ConvID    int64     `json:"conversation_id"`
	Role      string    `json:"role"` // user, assistant, or system
	Content   string    `json:"content"`
	FileName  string    `json:"file_name,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	Analysis  string    `json:"analysis_result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
