package store

import (
	"context"
	"errors"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Message is a single chat entry. Messages are immutable once created;
// slice order is both the display order and the persisted order.
type Message struct {
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a titled, ordered message sequence owned by one user.
// An empty ID means the conversation has never been persisted.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is a listing entry without the message payload.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrPersistenceFailed wraps any storage-layer failure.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrNotFound is returned when a conversation id is unknown.
	ErrNotFound = errors.New("conversation not found")
)

// Store persists conversations. Updates have upsert semantics: the stored
// message list is fully overwritten, never incrementally appended.
type Store interface {
	SaveConversation(ctx context.Context, ownerID, title string, messages []Message) (Conversation, error)
	UpdateConversation(ctx context.Context, id string, messages []Message) error
	UpdateConversationTitle(ctx context.Context, id, title string) error
	ListConversations(ctx context.Context, ownerID string) ([]ConversationSummary, error)
	GetConversation(ctx context.Context, id string) (Conversation, error)
}
