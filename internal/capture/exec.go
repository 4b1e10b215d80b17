package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/soloassist/soloassist-go/internal/logger"
)

// stopGrace is how long a capture process gets to exit after the
// interrupt before it is killed.
var stopGrace = 3 * time.Second

// ExecDevice records through an external capture command (arecord, sox,
// ffmpeg) that writes encoded audio to stdout. Each capture runs one
// process; Stop interrupts it and drains whatever it flushed.
type ExecDevice struct {
	Command string
	Args    []string
}

// Open verifies the capture command exists. The returned handle spawns one
// process per Record call.
func (d *ExecDevice) Open(ctx context.Context) (Handle, error) {
	path, err := exec.LookPath(d.Command)
	if err != nil {
		return nil, fmt.Errorf("capture command %q not found: %w", d.Command, err)
	}
	return &execHandle{path: path, args: d.Args}, nil
}

type execHandle struct {
	path string
	args []string
}

func (h *execHandle) Record(ctx context.Context) (Stream, error) {
	cmd := exec.CommandContext(ctx, h.path, h.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	s := &execStream{cmd: cmd, chunks: make(chan []byte, 16), exited: make(chan struct{})}
	go func() {
		defer close(s.exited)
		defer close(s.chunks)
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.chunks <- chunk
			}
			if err != nil {
				break
			}
		}
		if err := cmd.Wait(); err != nil {
			// Expected after the interrupt that ends a capture.
			logger.L.Debug("capture process exited", "error", err)
		}
	}()
	return s, nil
}

func (h *execHandle) Close() error { return nil }

type execStream struct {
	cmd    *exec.Cmd
	chunks chan []byte
	exited chan struct{}
}

func (s *execStream) Chunks() <-chan []byte { return s.chunks }

// Stop interrupts the capture process and, if it does not exit within
// stopGrace, kills it so the chunk stream always terminates.
func (s *execStream) Stop() error {
	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		logger.L.Debug("capture interrupt failed", "error", err)
	}
	select {
	case <-s.exited:
		return nil
	case <-time.After(stopGrace):
		logger.L.Warn("capture process did not exit after interrupt, killing it")
		return s.cmd.Process.Kill()
	}
}
