package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid input", input: "open Server 1006 buy EURUSD 1", wantErr: false},
		{name: "command chaining", input: "dealers; rm -rf /", wantErr: true},
		{name: "and chaining", input: "dealers && ls", wantErr: true},
		{name: "path traversal attempt", input: "../../../etc/passwd", wantErr: true},
		{name: "empty input", input: "", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMaliciousInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("  OPEN Server 1006  buy EURUSD 0.5 ")
	require.NoError(t, err)
	assert.Equal(t, "open", cmd.Name)
	assert.Equal(t, []string{"Server", "1006", "buy", "EURUSD", "0.5"}, cmd.Args)

	login, err := cmd.Int32(1)
	require.NoError(t, err)
	assert.Equal(t, int32(1006), login)

	vol, err := cmd.Float(4)
	require.NoError(t, err)
	assert.Equal(t, 0.5, vol)

	_, err = cmd.Int32(2)
	assert.Error(t, err)
	assert.Error(t, cmd.Want(6, "<dealer> <login> <side> <symbol> <volume>"))
	assert.NoError(t, cmd.Want(5, ""))

	empty, err := ParseCommand("   ")
	require.NoError(t, err)
	assert.Empty(t, empty.Name)

	_, err = ParseCommand("status Server 1 || true")
	assert.ErrorIs(t, err, ErrMaliciousInput)
}
