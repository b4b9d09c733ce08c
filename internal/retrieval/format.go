package retrieval

import (
	"fmt"
	"strings"
)

const passageSeparator = "\n\n---\n\n"

// FormatContext renders retrieved passages into the context block that gets
// prepended to a persona's instructions. Each passage is labeled with its
// source document so the model can cite it. The result is capped at
// maxChars with tail truncation; a cap of zero means no cap.
func FormatContext(passages []Passage, maxChars int) string {
	if len(passages) == 0 {
		return ""
	}

	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, p.DocumentName, strings.TrimSpace(p.Text))
	}
	out := strings.Join(parts, passageSeparator)

	if maxChars > 0 && len(out) > maxChars {
		out = out[:maxChars] + "..."
	}
	return out
}
