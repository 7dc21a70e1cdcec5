package retrieval

import (
	"strings"

	"github.com/starford/lore/internal/models"
)

const preamble = `You are a helpful assistant answering questions about the user's personal notes.
Use only the notes below as your source. If they do not contain the answer, say so.`

// BuildPrompt renders the context entries and the question into the text
// sent to the generation model.
func BuildPrompt(entries []models.ContextEntry, question string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n")
	if len(entries) == 0 {
		b.WriteString("(no notes matched)\n\n")
	}
	for _, e := range entries {
		b.WriteString("--- Note: ")
		b.WriteString(e.Title)
		b.WriteString(" (id: ")
		b.WriteString(e.ID)
		b.WriteString(") ---\n")
		b.WriteString(e.Content)
		b.WriteString("\n--- End of note ---\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return b.String()
}
