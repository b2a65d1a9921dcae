package knowledge

import (
	"fmt"
	"math"
	"strings"

	"ai-assistant-be/internal/entity"
)

const NoResultsSentinel = "No relevant information found in the knowledge base."

// FormatForPrompt renders passages as a numbered block for the model.
func FormatForPrompt(passages []entity.KnowledgePassage) string {
	if len(passages) == 0 {
		return NoResultsSentinel
	}

	var sb strings.Builder
	sb.WriteString("Relevant information from the knowledge base:\n")
	for i, p := range passages {
		title := p.SourceTitle
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, title)
		if p.SourceUrl != "" {
			fmt.Fprintf(&sb, "   Source: %s\n", p.SourceUrl)
		}
		fmt.Fprintf(&sb, "   %s\n", strings.TrimSpace(p.Content))
		fmt.Fprintf(&sb, "   (Relevance: %d%%)\n", int(math.Round(p.Similarity*100)))
	}
	return sb.String()
}
