package playback

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecPlayer_Play(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	player := &ExecPlayer{Command: "cat"}
	require.NoError(t, player.Play(context.Background(), []byte("mp3 bytes")))
}

func TestExecPlayer_CommandNotFound(t *testing.T) {
	player := &ExecPlayer{Command: "definitely-not-a-player-binary"}
	err := player.Play(context.Background(), []byte("mp3"))
	require.Error(t, err)
}

func TestExecPlayer_PlayerFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	player := &ExecPlayer{Command: "false"}
	err := player.Play(context.Background(), []byte("mp3"))
	require.Error(t, err)
}
