package answer

import (
	"fmt"
	"strings"
)

// NoContext replaces the context block when retrieval found nothing.
const NoContext = "No context available."

// BuildPrompt renders the single user prompt sent to the LLM. Context texts
// are joined with blank lines.
func BuildPrompt(domain, question string, contextTexts []string) string {
	ctx := NoContext
	if len(contextTexts) > 0 {
		ctx = strings.Join(contextTexts, "\n\n")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "As a %s expert, using the following context:\n\n", domain)
	sb.WriteString(ctx)
	fmt.Fprintf(&sb, "\n\nAnswer this question concisely and list citations: %s\n\n", question)
	sb.WriteString("Provide a response in the following format:\n")
	sb.WriteString("**Summary**: A concise summary of the answer.\n")
	sb.WriteString("**Key Points**: Exactly 3 bullet points starting with '- '.\n")
	sb.WriteString("**Guidance**: Practical guidance or next steps.\n")
	sb.WriteString("Ensure all sections are complete and do not truncate the response.")
	return sb.String()
}
