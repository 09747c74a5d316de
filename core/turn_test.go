package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"system":      RoleSystem,
		"User":        RoleUser,
		" assistant ": RoleAssistant,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseRole("tool")
	assert.Error(t, err)
}

func TestSeqRange(t *testing.T) {
	assert.Equal(t, 4, SeqRange{First: 3, Last: 6}.Len())
	assert.Equal(t, 0, SeqRange{First: 6, Last: 3}.Len())
	assert.Equal(t, "3-6", SeqRange{First: 3, Last: 6}.String())
}
