package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/becomeliminal/nim-memory/engine"
)

func TestNormalizeQuotes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"“Hi,” she said", `"Hi," she said`},
		{"it’s ‘fine’", "it's 'fine'"},
		{"wait—no – maybe―yes", "wait-no - maybe-yes"},
		{"so…", "so..."},
		{"5′ 11″", `5' 11"`},
		{"plain ascii", "plain ascii"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.NormalizeQuotes(tt.in))
	}
}

func TestPersona_Render(t *testing.T) {
	p := engine.Persona{
		AIName:       "Vexa",
		UserName:     "Sam",
		SystemPrompt: "User is $USER_NAME. You are ${AI_NAME}. Costs $5 and $OTHER.",
	}
	assert.Equal(t, "User is Sam. You are Vexa. Costs $5 and $OTHER.", p.Render())

	def := engine.DefaultPersona.Render()
	assert.Contains(t, def, "User is User. You are Vexa")
	assert.NotContains(t, def, "$")

	assert.Equal(t, engine.Persona{AIName: "A", UserName: "B"}.Render(),
		engine.Persona{AIName: "A", UserName: "B", SystemPrompt: engine.DefaultSystemPrompt}.Render())
}
