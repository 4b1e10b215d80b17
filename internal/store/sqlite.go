package store

// SQLite-backed Store. The database is opened lazily and the schema is
// created on first use. Messages are stored as a JSON column so an update
// overwrites the whole list in one statement, matching the upsert contract.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/soloassist/soloassist-go/internal/logger"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	path string

	once    sync.Once
	db      *sql.DB
	initErr error
}

// NewSQLiteStore creates a store backed by the database at path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) init() (*sql.DB, error) {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", "file:"+s.path+"?_busy_timeout=10000&_fk=1")
		if err != nil {
			s.initErr = err
			return
		}
		if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			messages TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`); err != nil {
			s.initErr = err
			return
		}
		s.db = db
		logger.L.Info("sqlite conversation store initialized", "path", s.path)
	})
	return s.db, s.initErr
}

// SaveConversation inserts a new conversation and returns it with its id set.
func (s *SQLiteStore) SaveConversation(ctx context.Context, ownerID, title string, messages []Message) (Conversation, error) {
	db, err := s.init()
	if err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	conv := Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		OwnerID:   ownerID,
		Messages:  messages,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(conv.Messages)
	if err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner_id, title, messages, created_at) VALUES (?,?,?,?,?);`,
		conv.ID, conv.OwnerID, conv.Title, string(payload), conv.CreatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	logger.L.Debug("conversation saved", "id", conv.ID, "title", conv.Title, "messages", len(conv.Messages))
	return conv, nil
}

// UpdateConversation overwrites the stored message list for id.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, id string, messages []Message) error {
	db, err := s.init()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	res, err := db.ExecContext(ctx, `UPDATE conversations SET messages = ? WHERE id = ?;`, string(payload), id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// UpdateConversationTitle renames a stored conversation.
func (s *SQLiteStore) UpdateConversationTitle(ctx context.Context, id, title string) error {
	db, err := s.init()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	res, err := db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?;`, title, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListConversations returns the owner's conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, ownerID string) ([]ConversationSummary, error) {
	db, err := s.init()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, created_at FROM conversations WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC;`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var c ConversationSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return out, nil
}

// GetConversation returns the full conversation for id, messages included.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	db, err := s.init()
	if err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	var (
		conv    Conversation
		payload string
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, messages, created_at FROM conversations WHERE id = ?;`, id).
		Scan(&conv.ID, &conv.OwnerID, &conv.Title, &payload, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if err := json.Unmarshal([]byte(payload), &conv.Messages); err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return conv, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
