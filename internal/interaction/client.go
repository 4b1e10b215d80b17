// Package interaction delivers one user input to the assistant backend and
// retrieves the paired transcription and response.
package interaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/soloassist/soloassist-go/internal/capture"
	"github.com/soloassist/soloassist-go/internal/logger"
)

// ErrInteractionFailed wraps every transport, status, and decode failure.
// Callers recover by annotating the conversation, never by inspecting the
// cause.
var ErrInteractionFailed = errors.New("interaction failed")

// Input is one user input: text or a recording, never both.
type Input struct {
	Text      string
	Recording *capture.Recording
}

// Options tune one Send.
type Options struct {
	// AudioReply asks the backend for a spoken reply.
	AudioReply bool
	// NewConversation tells the backend this input opens a conversation.
	NewConversation bool
}

// Result is the backend's paired answer for one input.
type Result struct {
	Transcription    string
	Response         string
	Audio            []byte
	CorrelationID    string
	ConversationName string
}

// Client talks to the assistant backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type processReply struct {
	Response         string `json:"response"`
	CorrelationID    string `json:"correlation_id"`
	ConversationName string `json:"conversation_name"`
}

type lastInteractionReply struct {
	Transcription string `json:"transcription"`
	Response      string `json:"response"`
}

// Send posts the input to /api/process_input. For audio replies the body is
// playable audio and the transcription/response pair comes from a second,
// dependent read keyed by the correlation id the backend attached.
func (c *Client) Send(ctx context.Context, input Input, opts Options) (Result, error) {
	if input.Recording != nil && input.Text != "" {
		return Result{}, fmt.Errorf("%w: input carries both text and audio", ErrInteractionFailed)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if input.Recording != nil {
		part, err := form.CreateFormFile("audio", "audio.wav")
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
		}
		if _, err := part.Write(input.Recording.Data); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
		}
	} else {
		if err := form.WriteField("text", input.Text); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
		}
	}
	if err := form.WriteField("audio_enabled", strconv.FormatBool(opts.AudioReply)); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}
	if err := form.WriteField("is_new_conversation", strconv.FormatBool(opts.NewConversation)); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}
	if err := form.Close(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process_input", &body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: unexpected status code: %d", ErrInteractionFailed, resp.StatusCode)
	}

	var result Result
	if opts.AudioReply {
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
		}
		result.Audio = audio
		result.CorrelationID = resp.Header.Get("X-Correlation-Id")
		result.ConversationName = resp.Header.Get("X-Conversation-Name")
	} else {
		var reply processReply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
		}
		result.Response = reply.Response
		result.CorrelationID = reply.CorrelationID
		result.ConversationName = reply.ConversationName
	}

	// Dependent read for the transcription/response pair, keyed so two
	// concurrent sessions cannot read each other's interaction.
	pair, err := c.lastInteraction(ctx, result.CorrelationID)
	if err != nil {
		return Result{}, err
	}
	result.Transcription = pair.Transcription
	result.Response = pair.Response

	logger.L.Debug("interaction complete", "correlation_id", result.CorrelationID)
	return result, nil
}

func (c *Client) lastInteraction(ctx context.Context, correlationID string) (lastInteractionReply, error) {
	endpoint := c.baseURL + "/api/get_last_interaction"
	if correlationID != "" {
		endpoint += "?correlation_id=" + url.QueryEscape(correlationID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return lastInteractionReply{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return lastInteractionReply{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return lastInteractionReply{}, fmt.Errorf("%w: unexpected status code: %d", ErrInteractionFailed, resp.StatusCode)
	}
	var reply lastInteractionReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return lastInteractionReply{}, fmt.Errorf("%w: %v", ErrInteractionFailed, err)
	}
	return reply, nil
}
