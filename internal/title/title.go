// Package title derives a short label for a new conversation.
package title

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/soloassist/soloassist-go/internal/logger"
	"github.com/soloassist/soloassist-go/internal/store"
)

const summarizePrompt = "Summarize the conversation in 5 words or fewer:\n" +
	"Be as concise as possible without losing the context of the conversation.\n" +
	"Your goal is to extract the key point of the conversation."

// fallbackTitle labels a conversation that has no usable first message.
const fallbackTitle = "New Conversation"

// maxFallbackRunes bounds the first-message fallback label.
const maxFallbackRunes = 30

// refusalPrefixes mark summaries that are refusals rather than titles.
var refusalPrefixes = []string{
	"i'm sorry",
	"i am sorry",
	"i cannot",
	"i can't",
	"sorry,",
}

// Generator produces conversation titles through the summarization
// endpoint, falling back to a deterministic label on any failure.
type Generator struct {
	baseURL string
	http    *http.Client
}

// NewGenerator creates a generator against the backend at baseURL.
func NewGenerator(baseURL string, httpClient *http.Client) *Generator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Generator{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type titleRequest struct {
	Prompt   string         `json:"prompt"`
	Messages []titleMessage `json:"messages"`
}

type titleMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type titleReply struct {
	Title string `json:"title"`
}

// Generate returns a label for the messages. It never fails: any backend
// error, malformed reply, or refusal-shaped summary degrades to Fallback.
func (g *Generator) Generate(ctx context.Context, messages []store.Message) string {
	title, err := g.summarize(ctx, messages)
	if err != nil {
		logger.L.Warn("title generation failed, using fallback", "error", err)
		return Fallback(messages)
	}
	title = strings.TrimSpace(title)
	if title == "" || isRefusal(title) {
		logger.L.Warn("title generation returned unusable summary, using fallback", "title", title)
		return Fallback(messages)
	}
	return title
}

func (g *Generator) summarize(ctx context.Context, messages []store.Message) (string, error) {
	req := titleRequest{Prompt: summarizePrompt}
	for _, m := range messages {
		req.Messages = append(req.Messages, titleMessage{Sender: string(m.Sender), Text: m.Text})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate_title", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var reply titleReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", err
	}
	return reply.Title, nil
}

func isRefusal(title string) bool {
	lower := strings.ToLower(title)
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Fallback derives a deterministic label: the first message truncated to
// 30 runes with an ellipsis marker, or "New Conversation" when there are
// no messages.
func Fallback(messages []store.Message) string {
	if len(messages) == 0 {
		return fallbackTitle
	}
	text := messages[0].Text
	if text == "" {
		return fallbackTitle
	}
	runes := []rune(text)
	if len(runes) > maxFallbackRunes {
		return string(runes[:maxFallbackRunes]) + "..."
	}
	return text
}
