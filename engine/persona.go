package engine

import "strings"

// DefaultSystemPrompt is the persona template used when none is configured.
const DefaultSystemPrompt = "User is $USER_NAME. You are $AI_NAME, an AI companion created by $USER_NAME. " +
	"You speak casually and try to be brief. You are inquisitive but don't offer to help or assist."

// Persona names the two parties and carries the system prompt template.
type Persona struct {
	AIName       string `yaml:"ai_name"`
	UserName     string `yaml:"user_name"`
	SystemPrompt string `yaml:"system_prompt"`
}

// DefaultPersona is used when no persona is configured.
var DefaultPersona = Persona{
	AIName:       "Vexa",
	UserName:     "User",
	SystemPrompt: DefaultSystemPrompt,
}

// Render substitutes $USER_NAME and $AI_NAME (or ${USER_NAME}, ${AI_NAME})
// in the template. Other $ sequences are left alone.
func (p Persona) Render() string {
	tmpl := p.SystemPrompt
	if tmpl == "" {
		tmpl = DefaultSystemPrompt
	}
	return strings.NewReplacer(
		"${USER_NAME}", p.UserName,
		"${AI_NAME}", p.AIName,
		"$USER_NAME", p.UserName,
		"$AI_NAME", p.AIName,
	).Replace(tmpl)
}
