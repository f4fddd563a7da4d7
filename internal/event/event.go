package event

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-core/internal/domain"
)

// Type tags a server-to-client push event.
type Type string

const (
	TypeMessageReceived      Type = "MESSAGE_RECEIVED"
	TypeUserStatusChanged    Type = "USER_STATUS_CHANGED"
	TypeUserTyping           Type = "USER_TYPING"
	TypeRemovedFromWorkspace Type = "REMOVED_FROM_WORKSPACE"
)

// Payload is the closed set of push events. Keeping the set closed gives the
// client decoder compile-time exhaustiveness instead of stringly dispatch.
type Payload interface {
	EventType() Type
}

// MessageReceived carries a persisted message, including the author snapshot
// taken at broadcast time.
type MessageReceived struct {
	MessageID       int64                 `json:"messageId"`
	ChannelID       int64                 `json:"channelId"`
	AuthorID        int64                 `json:"authorId"`
	AuthorName      string                `json:"authorName,omitempty"`
	AuthorAvatarURL string                `json:"authorAvatarUrl,omitempty"`
	AuthorStatus    domain.PresenceStatus `json:"authorStatus,omitempty"`
	Content         string                `json:"content"`
	Attachments     []AttachmentInfo      `json:"attachments,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
}

type AttachmentInfo struct {
	ID          int64  `json:"attachmentId"`
	FileName    string `json:"fileName"`
	FileURL     string `json:"fileUrl"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType,omitempty"`
}

type UserStatusChanged struct {
	UserID int64                 `json:"userId"`
	Status domain.PresenceStatus `json:"status"`
}

type UserTyping struct {
	ChannelID int64 `json:"channelId"`
	UserID    int64 `json:"userId"`
	IsTyping  bool  `json:"isTyping"`
}

type RemovedFromWorkspace struct {
	WorkspaceID int64 `json:"workspaceId"`
}

func (MessageReceived) EventType() Type      { return TypeMessageReceived }
func (UserStatusChanged) EventType() Type    { return TypeUserStatusChanged }
func (UserTyping) EventType() Type           { return TypeUserTyping }
func (RemovedFromWorkspace) EventType() Type { return TypeRemovedFromWorkspace }

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps a payload in its typed envelope.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.EventType(), err)
	}
	return json.Marshal(envelope{Type: p.EventType(), Data: data})
}

// Decode parses an envelope back into its concrete payload.
func Decode(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var p Payload
	switch env.Type {
	case TypeMessageReceived:
		p = &MessageReceived{}
	case TypeUserStatusChanged:
		p = &UserStatusChanged{}
	case TypeUserTyping:
		p = &UserTyping{}
	case TypeRemovedFromWorkspace:
		p = &RemovedFromWorkspace{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return p, nil
}
