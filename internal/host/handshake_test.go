package host

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeArgvRoundTrip(t *testing.T) {
	hs := Handshake{
		ExtraFileCount: 4,
		BootstrapFD:    0,
		ProgramFD:      3,
		PipeOutFD:      4,
		PipeInFD:       5,
		StatusFD:       6,
		UserArgv:       []string{"--flag", "value"},
	}

	argv := hs.Argv()
	parsed, err := ParseHandshake(argv)
	require.NoError(t, err)

	require.Equal(t, hs.ExtraFileCount, parsed.ExtraFileCount)
	require.Equal(t, hs.ProgramFD, parsed.ProgramFD)
	require.Equal(t, hs.PipeOutFD, parsed.PipeOutFD)
	require.Equal(t, hs.PipeInFD, parsed.PipeInFD)
	require.Equal(t, hs.StatusFD, parsed.StatusFD)
	require.Equal(t, hs.UserArgv, parsed.UserArgv)
}

func TestHandshakeWithExtraFDs(t *testing.T) {
	hs := Handshake{
		ExtraFileCount: 6,
		BootstrapFD:    0,
		ProgramFD:      3,
		PipeOutFD:      4,
		PipeInFD:       5,
		StatusFD:       6,
		ExtraFDs:       []int{7, 8},
		UserArgv:       []string{"positional"},
	}

	argv := hs.Argv()
	parsed, err := ParseHandshake(argv)
	require.NoError(t, err)
	require.Equal(t, []int{7, 8}, parsed.ExtraFDs)
	require.Equal(t, []string{"positional"}, parsed.UserArgv)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	require.Equal(t, "jumpgo-child", cfg.ChildBinary)
	require.NotZero(t, cfg.StartTimeout)
}
