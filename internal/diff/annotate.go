package diff

import (
	"fmt"
	"strings"
)

// Annotate renders a unified diff as an "OLD | NEW | CONTENT" table so the
// model can cite real line numbers instead of counting diff lines.
func Annotate(diffText string) string {
	hunks := ParseHunks(diffText)
	if len(hunks) == 0 {
		return diffText
	}

	var result strings.Builder

	for i, hunk := range hunks {
		if i > 0 {
			result.WriteString("\n")
		}
		result.WriteString(annotateHunk(hunk))
	}

	return result.String()
}

func annotateHunk(hunk Hunk) string {
	var result strings.Builder

	result.WriteString(hunk.Header + "\n")
	result.WriteString("OLD | NEW | CONTENT\n")
	result.WriteString("----|-----|--------\n")

	oldLine := hunk.OldStart
	newLine := hunk.NewStart

	for _, line := range strings.Split(hunk.Content, "\n") {
		if line == "" {
			continue
		}

		prefix := line[:1]
		content := line[1:]

		var oldNum, newNum string
		switch prefix {
		case "+":
			oldNum = "   "
			newNum = fmt.Sprintf("%3d", newLine)
			newLine++
		case "-":
			oldNum = fmt.Sprintf("%3d", oldLine)
			newNum = "   "
			oldLine++
		case "\\":
			continue
		default:
			oldNum = fmt.Sprintf("%3d", oldLine)
			newNum = fmt.Sprintf("%3d", newLine)
			oldLine++
			newLine++
		}

		result.WriteString(fmt.Sprintf("%s | %s | %s%s\n", oldNum, newNum, prefix, content))
	}

	return result.String()
}
