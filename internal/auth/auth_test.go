package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignIn_Success(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"user-1","email":"a@b.c","access_token":"tok"}`))
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "anon-key", nil)
	user, err := c.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, "tok", user.AccessToken)
}

func TestSignIn_RejectedCredentials(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusBadRequest)
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "", nil)
	_, err := c.SignIn(context.Background(), "a@b.c", "wrong")
	require.ErrorIs(t, err, ErrAuthFailed)
}

// TestSignUp_RateLimitedLocally: the second attempt inside the window is
// rejected before any backend call.
func TestSignUp_RateLimitedLocally(t *testing.T) {
	var hits int
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"id":"user-1"}`))
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "", nil)
	_, err := c.SignUp(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, 1, hits)

	_, err = c.SignUp(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 1, hits, "rate-limited attempt must not reach the backend")
}

func TestSignUp_AllowedAfterCooldown(t *testing.T) {
	var hits int
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"id":"user-1"}`))
	}))
	defer backend.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewClient(backend.URL, "", nil)
	c.now = func() time.Time { return now }

	_, err := c.SignUp(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = c.SignUp(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrRateLimited)

	now = now.Add(2 * time.Second)
	_, err = c.SignUp(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, 2, hits)
}

// TestSignUp_BackendRateLimit: a backend 429 surfaces as an auth failure,
// not as the local rate limit.
func TestSignUp_BackendRateLimit(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "", nil)
	_, err := c.SignUp(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrAuthFailed)
	require.NotErrorIs(t, err, ErrRateLimited)
}

func TestSignOut(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/logout", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "", nil)
	require.NoError(t, c.SignOut(context.Background(), "tok"))
}
