package ai

import (
	"fmt"
	"strings"
)

const systemInstructions = `You are an experienced code reviewer. You review merge request diffs and report genuine problems, not style nitpicks already enforced by linters.

Severity levels:
- "critical": bugs, security vulnerabilities, data loss, crashes
- "warning": likely problems, missing error handling, performance traps
- "suggestion": improvements worth considering

Each diff hunk is formatted as a table with columns: OLD | NEW | CONTENT.
The NEW column is the line number in the new version of the file; use it as line_number for added or context lines. Only reference line numbers that appear in the table.

Respond with ONLY a JSON object in this exact format, no prose before or after:
{"reviews": [{"line_number": <int>, "severity": "critical|warning|suggestion", "description": "<finding>"}]}

If there is nothing worth reporting, respond with {"reviews": []}.`

// BuildReviewPrompt assembles the per-file prompt from the annotated diff
// and the configured rule list.
func BuildReviewPrompt(filePath, annotatedDiff string, rules []string) string {
	var b strings.Builder

	b.WriteString(systemInstructions)
	b.WriteString("\n\nReview rules to apply:\n")
	for _, rule := range rules {
		b.WriteString("- " + rule + "\n")
	}

	fmt.Fprintf(&b, "\nFile: %s\n\nDiff:\n%s\n", filePath, annotatedDiff)

	return b.String()
}
