package title

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soloassist/soloassist-go/internal/store"
)

func TestGenerate_UsesBackendTitle(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate_title", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"Weather Inquiry"}`))
	}))
	defer backend.Close()

	g := NewGenerator(backend.URL, nil)
	title := g.Generate(context.Background(), []store.Message{
		{Text: "What's the weather?", Sender: store.SenderUser},
	})
	require.Equal(t, "Weather Inquiry", title)
}

func TestGenerate_BackendFailureFallsBack(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer backend.Close()

	g := NewGenerator(backend.URL, nil)
	title := g.Generate(context.Background(), []store.Message{
		{Text: "Tell me about the solar system", Sender: store.SenderUser},
	})
	require.Equal(t, "Tell me about the solar system", title)
}

// TestGenerate_RefusalFallsBack: a refusal-shaped summary is treated as a
// failure.
func TestGenerate_RefusalFallsBack(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"I'm sorry, I can't summarize that"}`))
	}))
	defer backend.Close()

	g := NewGenerator(backend.URL, nil)
	title := g.Generate(context.Background(), []store.Message{
		{Text: "hello", Sender: store.SenderUser},
	})
	require.Equal(t, "hello", title)
}

func TestFallback_NoMessages(t *testing.T) {
	require.Equal(t, "New Conversation", Fallback(nil))
	require.Equal(t, "New Conversation", Fallback([]store.Message{}))
}

// TestFallback_TruncatesLongFirstMessage: a 50-character first message is
// cut to its first 30 characters plus an ellipsis marker.
func TestFallback_TruncatesLongFirstMessage(t *testing.T) {
	text := strings.Repeat("ab", 25) // 50 characters
	got := Fallback([]store.Message{{Text: text, Sender: store.SenderUser}})
	require.Equal(t, text[:30]+"...", got)
	require.Len(t, got, 33)
}

func TestFallback_ShortMessageKeptVerbatim(t *testing.T) {
	got := Fallback([]store.Message{{Text: "short one", Sender: store.SenderUser}})
	require.Equal(t, "short one", got)
}

func TestGenerate_UnreachableBackend(t *testing.T) {
	g := NewGenerator("http://127.0.0.1:1", nil)
	title := g.Generate(context.Background(), nil)
	require.Equal(t, "New Conversation", title)
}
