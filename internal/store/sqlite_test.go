package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "conversations.db"))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMessages() []Message {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []Message{
		{Text: "What's the weather?", Sender: SenderUser, Timestamp: base},
		{Text: "It's sunny", Sender: SenderAI, Timestamp: base.Add(2 * time.Second)},
	}
}

// TestSaveThenGet_RoundTrip: the loaded message list equals what was
// saved, order and content.
func TestSaveThenGet_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveConversation(ctx, "user-1", "Weather Inquiry", sampleMessages())
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	loaded, err := s.GetConversation(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, "Weather Inquiry", loaded.Title)
	require.Equal(t, "user-1", loaded.OwnerID)
	require.Equal(t, sampleMessages(), loaded.Messages)
}

func TestGetConversation_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetConversation(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestUpdateConversation_OverwritesMessages: update is a full overwrite,
// not an append.
func TestUpdateConversation_OverwritesMessages(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveConversation(ctx, "user-1", "t", sampleMessages())
	require.NoError(t, err)

	replacement := append(sampleMessages(), Message{
		Text: "Thanks", Sender: SenderUser,
		Timestamp: time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
	})
	require.NoError(t, s.UpdateConversation(ctx, saved.ID, replacement))

	loaded, err := s.GetConversation(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, replacement, loaded.Messages)

	require.ErrorIs(t, s.UpdateConversation(ctx, "missing", replacement), ErrNotFound)
}

func TestUpdateConversationTitle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveConversation(ctx, "user-1", "old", nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateConversationTitle(ctx, saved.ID, "new"))

	loaded, err := s.GetConversation(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, "new", loaded.Title)
}

// TestListConversations_NewestFirst also checks owner scoping.
func TestListConversations_NewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.SaveConversation(ctx, "user-1", "first", nil)
	require.NoError(t, err)
	second, err := s.SaveConversation(ctx, "user-1", "second", nil)
	require.NoError(t, err)
	_, err = s.SaveConversation(ctx, "someone-else", "other", nil)
	require.NoError(t, err)

	list, err := s.ListConversations(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)
}
