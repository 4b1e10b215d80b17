// Package assistant is the backend the chat client talks to: it accepts
// text or audio input, runs the transcribe/think/speak pipeline, and keeps
// a bounded trail of previous interactions for prompt context.
package assistant

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/soloassist/soloassist-go/internal/config"
	"github.com/soloassist/soloassist-go/internal/logger"
)

// defaultTitle is returned when there is nothing to summarize.
const defaultTitle = "New Conversation"

// interactionPair is the transcription/response record for one processed
// input, addressable by correlation id so concurrent clients never read
// each other's interaction.
type interactionPair struct {
	Transcription string `json:"transcription"`
	Response      string `json:"response"`
}

// Server exposes the assistant over HTTP.
type Server struct {
	engine Engine
	cfg    config.AssistantConfig

	mu        sync.Mutex
	trail     []Interaction
	ledger    map[string]interactionPair
	ledgerIDs []string
	lastID    string
}

// NewServer creates the HTTP backend around an engine.
func NewServer(engine Engine, cfg config.AssistantConfig) *Server {
	if cfg.TrailCutoff <= 0 {
		cfg.TrailCutoff = 30
	}
	return &Server{engine: engine, cfg: cfg, ledger: make(map[string]interactionPair)}
}

// Routes returns the backend's HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/process_input", s.handleProcessInput)
	mux.HandleFunc("GET /api/get_last_interaction", s.handleGetLastInteraction)
	mux.HandleFunc("POST /api/generate_title", s.handleGenerateTitle)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleProcessInput(w http.ResponseWriter, r *http.Request) {
	logger.L.Info("process_input request")
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	audioEnabled := strings.EqualFold(r.FormValue("audio_enabled"), "true")
	isNewConversation := strings.EqualFold(r.FormValue("is_new_conversation"), "true")

	var userInput string
	if file, header, err := r.FormFile("audio"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "unreadable audio")
			return
		}
		transcription, trErr := s.engine.Transcribe(r.Context(), data, header.Filename)
		if trErr != nil {
			logger.L.Error("transcription failed", "error", trErr)
			writeError(w, http.StatusInternalServerError, "an error occurred during processing")
			return
		}
		logger.L.Info("transcription complete", "text", transcription)
		userInput = transcription
	} else if text := r.FormValue("text"); text != "" {
		userInput = text
	} else {
		writeError(w, http.StatusBadRequest, "no input provided")
		return
	}

	s.mu.Lock()
	previous := make([]Interaction, len(s.trail))
	copy(previous, s.trail)
	s.mu.Unlock()

	prompt := buildPrompt(s.cfg.AssistantName, s.cfg.CompanionName, userInput, previous)
	response, err := s.engine.Think(r.Context(), prompt)
	if err != nil {
		logger.L.Error("completion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "an error occurred during processing")
		return
	}

	correlationID := uuid.NewString()
	s.mu.Lock()
	s.trail = append(s.trail,
		Interaction{Role: roleHuman, Content: userInput},
		Interaction{Role: roleAssistant, Content: response})
	if len(s.trail) > s.cfg.TrailCutoff {
		s.trail = s.trail[len(s.trail)-s.cfg.TrailCutoff:]
	}
	s.ledger[correlationID] = interactionPair{Transcription: userInput, Response: response}
	s.ledgerIDs = append(s.ledgerIDs, correlationID)
	// The ledger follows the trail's cutoff so it stays bounded too.
	for len(s.ledgerIDs) > s.cfg.TrailCutoff {
		delete(s.ledger, s.ledgerIDs[0])
		s.ledgerIDs = s.ledgerIDs[1:]
	}
	s.lastID = correlationID
	s.mu.Unlock()

	var conversationName string
	if isNewConversation {
		name, nameErr := s.engine.Think(r.Context(), buildNamingPrompt(userInput+"\n"+response))
		if nameErr != nil {
			logger.L.Warn("conversation naming failed", "error", nameErr)
		} else {
			conversationName = clampTitle(name)
		}
	}

	if audioEnabled {
		audio, speakErr := s.engine.Speak(r.Context(), response)
		if speakErr != nil {
			logger.L.Error("speech synthesis failed", "error", speakErr)
			writeError(w, http.StatusInternalServerError, "an error occurred during processing")
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("X-Correlation-Id", correlationID)
		if conversationName != "" {
			w.Header().Set("X-Conversation-Name", conversationName)
		}
		if _, err := w.Write(audio); err != nil {
			logger.L.Warn("audio write failed", "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"response":          response,
		"correlation_id":    correlationID,
		"conversation_name": conversationName,
	})
}

func (s *Server) handleGetLastInteraction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.URL.Query().Get("correlation_id")
	if id == "" {
		// Legacy behavior: the latest pair, whoever produced it.
		id = s.lastID
	}
	pair, ok := s.ledger[id]
	if !ok {
		writeError(w, http.StatusNotFound, "no interactions available")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type generateTitleRequest struct {
	Prompt   string `json:"prompt"`
	Messages []struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
	} `json:"messages"`
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	var req generateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.L.Warn("generate_title decode failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"title": defaultTitle})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"title": defaultTitle})
		return
	}

	parts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, m.Sender+": "+m.Text)
	}
	conversation := strings.TrimSpace(strings.Join(parts, " "))
	if conversation == "" {
		writeJSON(w, http.StatusOK, map[string]string{"title": defaultTitle})
		return
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Summarize the conversation in 5 words or fewer:"
	}
	title, err := s.engine.Think(r.Context(), prompt+"\n\n"+conversation)
	if err != nil {
		logger.L.Error("title generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate title")
		return
	}

	title = clampTitle(title)
	logger.L.Info("generated title", "title", title)
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}
