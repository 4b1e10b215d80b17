// Package session is the conversation orchestrator: it owns the active
// message sequence, decides when a conversation is created vs. updated,
// drives title generation, and reconciles state with backend results.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/soloassist/soloassist-go/internal/auth"
	"github.com/soloassist/soloassist-go/internal/capture"
	"github.com/soloassist/soloassist-go/internal/interaction"
	"github.com/soloassist/soloassist-go/internal/logger"
	"github.com/soloassist/soloassist-go/internal/store"
)

// FSM states
type FSMState stateless.State

var (
	StateUnauthenticated    FSMState = "Unauthenticated"
	StateNoConversation     FSMState = "NoConversation"
	StateActiveConversation FSMState = "ActiveConversation"
)

// FSM triggers
type FSMTrigger stateless.Trigger

var (
	TriggerSignedIn             FSMTrigger = "SignedIn"
	TriggerSignedOut            FSMTrigger = "SignedOut"
	TriggerNewConversation      FSMTrigger = "NewConversation"
	TriggerConversationSelected FSMTrigger = "ConversationSelected"
	TriggerConversationSaved    FSMTrigger = "ConversationSaved"
)

var (
	// ErrNotAuthenticated guards operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoAuthBackend is returned for sign-in/up when the session runs
	// in anonymous mode.
	ErrNoAuthBackend = errors.New("no auth backend configured")
	// ErrNoActiveConversation guards operations on a persisted
	// conversation when none is active.
	ErrNoActiveConversation = errors.New("no active conversation")
	// ErrAlreadyAuthenticated is returned for sign-in/up while a user is
	// already attached; sign out first.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
)

// anonymousOwner identifies conversations created without an auth backend.
const anonymousOwner = "anonymous"

// errorMessageText is what the user sees when an interaction fails.
const errorMessageText = "Error: Unable to process input. Please try again."

// Interactor delivers one input to the assistant backend.
type Interactor interface {
	Send(ctx context.Context, input interaction.Input, opts interaction.Options) (interaction.Result, error)
}

// Titler labels a new conversation; it must never fail.
type Titler interface {
	Generate(ctx context.Context, messages []store.Message) string
}

// Authenticator is the account backend boundary.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (auth.User, error)
	SignIn(ctx context.Context, email, password string) (auth.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Recorder is the microphone boundary.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (capture.Recording, error)
	State() capture.State
	Close() error
}

// Player is the speaker boundary for spoken replies.
type Player interface {
	Play(ctx context.Context, data []byte) error
}

// Deps wires a Session. Interactor, Titler and Store are required; Auth
// nil selects anonymous mode; Recorder nil disables voice input; Player
// nil discards reply audio.
type Deps struct {
	Interactor Interactor
	Titler     Titler
	Store      store.Store
	Auth       Authenticator
	Recorder   Recorder
	Player     Player
	// AudioReply asks the backend for spoken replies. It is the initial
	// setting; SetAudioReply toggles it at runtime.
	AudioReply bool
}

// Session is the conversation state machine. All mutations of the message
// buffer go through apply, so no partial update is ever observable, and
// overlapping sends are queued behind sendMu in arrival order.
type Session struct {
	deps Deps
	fsm  *stateless.StateMachine

	// sendMu serializes SendUserInput; a second send issued before the
	// first completes is processed strictly after it.
	sendMu sync.Mutex

	mu         sync.Mutex
	user       auth.User
	ownerID    string
	active     store.Conversation
	pending    bool
	audioReply bool
}

// New creates a session. Without an auth backend it starts authenticated
// as the anonymous owner.
func New(deps Deps) *Session {
	initial := StateUnauthenticated
	ownerID := ""
	if deps.Auth == nil {
		initial = StateNoConversation
		ownerID = anonymousOwner
	}

	fsm := stateless.NewStateMachine(initial)
	fsm.Configure(StateUnauthenticated).
		Permit(TriggerSignedIn, StateNoConversation)
	fsm.Configure(StateNoConversation).
		Permit(TriggerConversationSelected, StateActiveConversation).
		Permit(TriggerConversationSaved, StateActiveConversation).
		Permit(TriggerSignedOut, StateUnauthenticated).
		PermitReentry(TriggerNewConversation)
	fsm.Configure(StateActiveConversation).
		Permit(TriggerNewConversation, StateNoConversation).
		PermitReentry(TriggerConversationSelected).
		Permit(TriggerSignedOut, StateUnauthenticated)

	return &Session{deps: deps, fsm: fsm, ownerID: ownerID, audioReply: deps.AudioReply}
}

// State returns the current lifecycle state.
func (s *Session) State() FSMState {
	return FSMState(s.fsm.MustState())
}

// Pending reports whether a send is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// AudioReply reports whether spoken replies are requested.
func (s *Session) AudioReply() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioReply
}

// SetAudioReply toggles spoken replies for subsequent sends.
func (s *Session) SetAudioReply(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioReply = on
}

// Messages returns a snapshot of the message buffer.
func (s *Session) Messages() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Message, len(s.active.Messages))
	copy(out, s.active.Messages)
	return out
}

// Active returns a snapshot of the working conversation.
func (s *Session) Active() store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.active
	conv.Messages = make([]store.Message, len(s.active.Messages))
	copy(conv.Messages, s.active.Messages)
	return conv
}

// apply runs one authoritative state mutation under the session lock.
func (s *Session) apply(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Session) authenticated() bool {
	return s.State() != StateUnauthenticated
}

// SignIn authenticates against the account backend.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	if s.deps.Auth == nil {
		return ErrNoAuthBackend
	}
	if s.authenticated() {
		return ErrAlreadyAuthenticated
	}
	user, err := s.deps.Auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	s.apply(func() {
		s.user = user
		s.ownerID = user.ID
	})
	if err := s.fsm.Fire(TriggerSignedIn); err != nil {
		logger.L.Warn("sign-in transition ignored", "error", err)
	}
	logger.L.Info("signed in", "user", user.ID)
	return nil
}

// SignUp registers an account; on success the session adopts it. The rate
// limit for repeated attempts lives in the auth client.
func (s *Session) SignUp(ctx context.Context, email, password string) error {
	if s.deps.Auth == nil {
		return ErrNoAuthBackend
	}
	if s.authenticated() {
		return ErrAlreadyAuthenticated
	}
	user, err := s.deps.Auth.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	s.apply(func() {
		s.user = user
		s.ownerID = user.ID
	})
	if err := s.fsm.Fire(TriggerSignedIn); err != nil {
		logger.L.Warn("sign-up transition ignored", "error", err)
	}
	logger.L.Info("signed up", "user", user.ID)
	return nil
}

// SignOut ends the authenticated session and clears the working state.
func (s *Session) SignOut(ctx context.Context) error {
	if s.deps.Auth == nil {
		return ErrNoAuthBackend
	}
	if !s.authenticated() {
		return ErrNotAuthenticated
	}
	token := s.user.AccessToken
	if err := s.deps.Auth.SignOut(ctx, token); err != nil {
		logger.L.Warn("backend sign-out failed", "error", err)
	}
	s.apply(func() {
		s.user = auth.User{}
		s.ownerID = ""
		s.active = store.Conversation{}
	})
	return s.fsm.Fire(TriggerSignedOut)
}

// NewConversation clears the active conversation and message buffer.
func (s *Session) NewConversation() error {
	if !s.authenticated() {
		return ErrNotAuthenticated
	}
	s.apply(func() {
		s.active = store.Conversation{}
	})
	return s.fsm.Fire(TriggerNewConversation)
}

// SelectConversation loads the full history for id and makes it active.
// On failure the session state is unchanged.
func (s *Session) SelectConversation(ctx context.Context, id string) error {
	if !s.authenticated() {
		return ErrNotAuthenticated
	}
	conv, err := s.deps.Store.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	s.apply(func() {
		s.active = conv
	})
	return s.fsm.Fire(TriggerConversationSelected)
}

// RenameConversation retitles the active, persisted conversation.
func (s *Session) RenameConversation(ctx context.Context, newTitle string) error {
	if !s.authenticated() {
		return ErrNotAuthenticated
	}
	id := s.Active().ID
	if id == "" {
		return ErrNoActiveConversation
	}
	if err := s.deps.Store.UpdateConversationTitle(ctx, id, newTitle); err != nil {
		return err
	}
	s.apply(func() {
		s.active.Title = newTitle
	})
	return nil
}

// ListConversations lists the owner's persisted conversations, newest
// first.
func (s *Session) ListConversations(ctx context.Context) ([]store.ConversationSummary, error) {
	if !s.authenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.deps.Store.ListConversations(ctx, s.ownerID)
}

// SendUserInput sends one text input. The user message is appended before
// any network call; a backend failure appends exactly one system message
// and leaves everything else untouched.
func (s *Session) SendUserInput(ctx context.Context, text string) error {
	if !s.authenticated() {
		return ErrNotAuthenticated
	}
	return s.send(ctx, interaction.Input{Text: text})
}

// StartRecording begins voice capture. Capture commands are instantaneous
// device actions and are not queued behind in-flight sends.
func (s *Session) StartRecording(ctx context.Context) error {
	if s.deps.Recorder == nil {
		return capture.ErrDeviceUnavailable
	}
	if !s.authenticated() {
		return ErrNotAuthenticated
	}
	return s.deps.Recorder.Start(ctx)
}

// StopAndSend ends the capture and sends the recording as the user input.
// The transcribed user message and the AI reply are appended together when
// the combined response arrives.
func (s *Session) StopAndSend(ctx context.Context) error {
	if s.deps.Recorder == nil {
		return capture.ErrDeviceUnavailable
	}
	if !s.authenticated() {
		return ErrNotAuthenticated
	}
	rec, err := s.deps.Recorder.Stop()
	if err != nil {
		return err
	}
	return s.send(ctx, interaction.Input{Recording: &rec})
}

func (s *Session) send(ctx context.Context, input interaction.Input) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.apply(func() { s.pending = true })
	defer s.apply(func() { s.pending = false })

	// Optimistic append: the user sees their own text even if the backend
	// fails. Voice input has no text yet; its user message is appended
	// with the transcription once the pair arrives.
	if input.Recording == nil {
		s.apply(func() {
			s.active.Messages = append(s.active.Messages, store.Message{
				Text: input.Text, Sender: store.SenderUser, Timestamp: time.Now().UTC(),
			})
		})
	}

	isNew := s.Active().ID == ""
	result, err := s.deps.Interactor.Send(ctx, input, interaction.Options{
		AudioReply:      s.AudioReply(),
		NewConversation: isNew,
	})
	if err != nil {
		logger.L.Error("interaction failed", "error", err)
		s.apply(func() {
			s.active.Messages = append(s.active.Messages, store.Message{
				Text: errorMessageText, Sender: store.SenderSystem, Timestamp: time.Now().UTC(),
			})
		})
		return err
	}

	// Both halves of the pair land in one mutation, so the user message
	// always immediately precedes its AI reply.
	s.apply(func() {
		now := time.Now().UTC()
		if input.Recording != nil {
			s.active.Messages = append(s.active.Messages, store.Message{
				Text: result.Transcription, Sender: store.SenderUser, Timestamp: now,
			})
		}
		s.active.Messages = append(s.active.Messages, store.Message{
			Text: result.Response, Sender: store.SenderAI, Timestamp: now,
		})
	})

	if len(result.Audio) > 0 && s.deps.Player != nil {
		if err := s.deps.Player.Play(ctx, result.Audio); err != nil {
			logger.L.Warn("audio playback failed", "error", err)
		}
	}

	s.persist(ctx, result.ConversationName)
	return nil
}

// persist saves the working conversation: a new one on the first
// successful exchange, a full-overwrite update afterwards. Failures leave
// the messages in memory, visible but unsaved; there is no silent retry.
// backendTitle is the name the backend picked for a new conversation; when
// empty the title generator decides.
func (s *Session) persist(ctx context.Context, backendTitle string) {
	snapshot := s.Active()
	if snapshot.ID == "" {
		title := backendTitle
		if title == "" {
			title = s.deps.Titler.Generate(ctx, snapshot.Messages)
		}
		conv, err := s.deps.Store.SaveConversation(ctx, s.ownerID, title, snapshot.Messages)
		if err != nil {
			logger.L.Error("conversation save failed; keeping messages in memory", "error", err)
			return
		}
		s.apply(func() {
			s.active.ID = conv.ID
			s.active.Title = conv.Title
			s.active.OwnerID = conv.OwnerID
			s.active.CreatedAt = conv.CreatedAt
		})
		if err := s.fsm.Fire(TriggerConversationSaved); err != nil {
			logger.L.Warn("saved transition ignored", "error", err)
		}
		logger.L.Info("conversation created", "id", conv.ID, "title", conv.Title)
		return
	}

	if err := s.deps.Store.UpdateConversation(ctx, snapshot.ID, snapshot.Messages); err != nil {
		logger.L.Error("conversation update failed; keeping messages in memory", "id", snapshot.ID, "error", err)
	}
}

// Close releases the capture device.
func (s *Session) Close() error {
	if s.deps.Recorder == nil {
		return nil
	}
	return s.deps.Recorder.Close()
}
