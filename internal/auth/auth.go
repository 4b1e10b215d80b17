// Package auth is the account client for the sign-up/sign-in backend.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/soloassist/soloassist-go/internal/logger"
)

var (
	// ErrAuthFailed covers rejected credentials and backend auth errors.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrRateLimited is returned locally when a sign-up attempt lands
	// inside the cooldown window; the backend is not contacted.
	ErrRateLimited = errors.New("sign-up rate limited")
)

// ErrTooManyAttempts marks a backend-reported rate limit (HTTP 429).
var ErrTooManyAttempts = fmt.Errorf("%w: too many attempts", ErrAuthFailed)

// signUpCooldown is the minimum spacing between sign-up attempts from one
// client instance.
const signUpCooldown = 60 * time.Second

// User is an authenticated account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

// Client talks to the account backend.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client

	mu         sync.Mutex
	lastSignUp time.Time
	now        func() time.Time
}

// NewClient creates an account client for the backend at baseURL.
func NewClient(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    httpClient,
		now:     time.Now,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a new account. At most one attempt per cooldown window
// is allowed per client instance.
func (c *Client) SignUp(ctx context.Context, email, password string) (User, error) {
	c.mu.Lock()
	if since := c.now().Sub(c.lastSignUp); !c.lastSignUp.IsZero() && since < signUpCooldown {
		c.mu.Unlock()
		logger.L.Warn("sign-up attempt inside cooldown window", "since", since)
		return User{}, ErrRateLimited
	}
	c.lastSignUp = c.now()
	c.mu.Unlock()

	return c.post(ctx, "/auth/v1/signup", credentials{Email: email, Password: password})
}

// SignIn authenticates an existing account.
func (c *Client) SignIn(ctx context.Context, email, password string) (User, error) {
	return c.post(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password})
}

// SignOut ends the session for the given access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status code: %d", ErrAuthFailed, resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, creds credentials) (User, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return User{}, ErrTooManyAttempts
	}
	if resp.StatusCode >= 300 {
		return User{}, fmt.Errorf("%w: unexpected status code: %d", ErrAuthFailed, resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return user, nil
}
