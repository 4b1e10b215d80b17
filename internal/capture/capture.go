// Package capture owns the microphone handle and turns start/stop pairs
// into discrete recordings.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/soloassist/soloassist-go/internal/logger"
)

// State is the capture lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

var (
	// ErrDeviceUnavailable means no audio input device could be acquired.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	// ErrInvalidState means Stop was called while not recording.
	ErrInvalidState = errors.New("invalid capture state")
)

// Recording is one completed capture, consumed exactly once by the
// interaction client.
type Recording struct {
	Data []byte
	MIME string
}

// Device acquires an audio input. The returned Handle stays open until
// closed and can run any number of sequential captures.
type Device interface {
	Open(ctx context.Context) (Handle, error)
}

// Handle is an acquired audio input device.
type Handle interface {
	// Record begins one capture and returns its chunk stream.
	Record(ctx context.Context) (Stream, error)
	// Close releases the device.
	Close() error
}

// Stream is one in-progress capture.
type Stream interface {
	// Chunks delivers encoded audio data; the channel closes after Stop.
	Chunks() <-chan []byte
	// Stop ends the capture.
	Stop() error
}

// Session coordinates one device across repeated start/stop cycles. The
// device is opened lazily on the first Start and held until Close.
type Session struct {
	device Device
	mime   string

	mu     sync.Mutex
	state  State
	handle Handle
	stream Stream
	chunks [][]byte
	done   chan struct{}
}

// NewSession creates a capture session. mime labels the recordings the
// device produces.
func NewSession(device Device, mime string) *Session {
	return &Session{device: device, mime: mime, state: StateIdle}
}

// State returns the current capture state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a capture. Starting while already recording is logged and
// ignored. A device that cannot be acquired yields ErrDeviceUnavailable
// and leaves the session idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		logger.L.Warn("capture already recording, start ignored")
		return nil
	}

	if s.handle == nil {
		handle, err := s.device.Open(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		s.handle = handle
	}

	stream, err := s.handle.Record(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.stream = stream
	s.chunks = nil
	s.done = make(chan struct{})
	go s.collect(stream.Chunks(), s.done)

	s.state = StateRecording
	logger.L.Debug("capture started")
	return nil
}

func (s *Session) collect(chunks <-chan []byte, done chan struct{}) {
	defer close(done)
	for chunk := range chunks {
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.mu.Unlock()
	}
}

// Stop ends the current capture and returns the assembled Recording.
// Stopping while idle returns ErrInvalidState and changes nothing.
func (s *Session) Stop() (Recording, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return Recording{}, ErrInvalidState
	}
	stream := s.stream
	done := s.done
	s.mu.Unlock()

	if err := stream.Stop(); err != nil {
		logger.L.Warn("capture stream stop failed", "error", err)
	}
	// The chunk channel closes once the device stops delivering; wait so
	// the recording includes everything observed since Start.
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}
	s.chunks = nil
	s.stream = nil
	s.state = StateIdle
	logger.L.Debug("capture stopped", "bytes", len(data))
	return Recording{Data: data, MIME: s.mime}, nil
}

// Close releases the device handle. Safe on every exit path, including
// after a failed Start or while recording.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateRecording && s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			logger.L.Warn("capture stream stop failed during close", "error", err)
		}
	}
	handle := s.handle
	s.handle = nil
	s.stream = nil
	s.state = StateIdle
	s.mu.Unlock()

	if handle == nil {
		return nil
	}
	return handle.Close()
}
