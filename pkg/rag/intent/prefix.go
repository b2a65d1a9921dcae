package intent

import (
	"strings"

	"ai-assistant-be/internal/entity"
)

// Routing prefixes, matched case-insensitively on the latest user message.
const (
	PrefixTech    = "/tech"
	PrefixSales   = "/sales"
	PrefixSupport = "/support"
	PrefixDefault = "/default"
)

var prefixIntents = []struct {
	prefix string
	intent string
}{
	{PrefixSupport, entity.PersonaSupport},
	{PrefixDefault, entity.PersonaDefault},
	{PrefixSales, entity.PersonaSales},
	{PrefixTech, entity.PersonaTechnical},
}

// ParsedPrompt is a user message split into its routing prefix and text.
type ParsedPrompt struct {
	OriginalPrompt string
	CleanPrompt    string
	Intent         string // empty when no prefix matched
}

// ParsePrefix extracts a routing prefix. A prefix only counts when it is
// followed by whitespace or ends the message, so "/technical" is plain text.
func ParsePrefix(prompt string) ParsedPrompt {
	trimmed := strings.TrimSpace(prompt)
	lower := strings.ToLower(trimmed)

	for _, p := range prefixIntents {
		if !strings.HasPrefix(lower, p.prefix) {
			continue
		}
		rest := trimmed[len(p.prefix):]
		if rest != "" && rest[0] != ' ' && rest[0] != '\n' && rest[0] != '\t' {
			continue
		}
		return ParsedPrompt{
			OriginalPrompt: prompt,
			CleanPrompt:    strings.TrimSpace(rest),
			Intent:         p.intent,
		}
	}

	return ParsedPrompt{OriginalPrompt: prompt, CleanPrompt: prompt}
}

// IsEmpty returns true if the clean prompt is empty
func (p ParsedPrompt) IsEmpty() bool {
	return strings.TrimSpace(p.CleanPrompt) == ""
}
