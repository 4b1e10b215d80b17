// Package playback plays spoken assistant replies through an external
// player command.
package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// ExecPlayer pipes reply audio to a configured player command that reads
// from stdin (mpg123 -, ffplay -, play -t mp3 -).
type ExecPlayer struct {
	Command string
	Args    []string
}

// Play runs one player process over the audio and waits for it to finish.
func (p *ExecPlayer) Play(ctx context.Context, data []byte) error {
	path, err := exec.LookPath(p.Command)
	if err != nil {
		return fmt.Errorf("player command %q not found: %w", p.Command, err)
	}
	cmd := exec.CommandContext(ctx, path, p.Args...)
	cmd.Stdin = bytes.NewReader(data)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("player failed: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}
