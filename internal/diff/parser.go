package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// Hunk is a single change block in a unified diff
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Header   string
	Content  string
}

var hunkHeaderRe = regexp.MustCompile(`@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseHunks extracts hunks from a single file's unified diff text
func ParseHunks(diffText string) []Hunk {
	matches := hunkHeaderRe.FindAllStringSubmatchIndex(diffText, -1)
	if len(matches) == 0 {
		return nil
	}

	hunks := make([]Hunk, 0, len(matches))

	for i, match := range matches {
		h := Hunk{
			OldStart: atoiDefault(diffText[match[2]:match[3]], 1),
			OldCount: 1,
			NewCount: 1,
			Header:   diffText[match[0]:match[1]],
		}
		if match[4] >= 0 {
			h.OldCount = atoiDefault(diffText[match[4]:match[5]], 1)
		}
		h.NewStart = atoiDefault(diffText[match[6]:match[7]], 1)
		if match[8] >= 0 {
			h.NewCount = atoiDefault(diffText[match[8]:match[9]], 1)
		}

		var content string
		if i < len(matches)-1 {
			content = diffText[match[1]:matches[i+1][0]]
		} else {
			content = diffText[match[1]:]
		}

		// Drop the remainder of the header line
		if parts := strings.SplitN(content, "\n", 2); len(parts) > 1 {
			content = parts[1]
		} else {
			content = ""
		}

		h.Content = content
		hunks = append(hunks, h)
	}

	return hunks
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Stats counts added and removed lines in a unified diff.
// The +++/--- file header lines are excluded.
func Stats(diffText string) (additions, deletions int) {
	text := "\n" + diffText
	additions = strings.Count(text, "\n+") - strings.Count(text, "\n+++")
	deletions = strings.Count(text, "\n-") - strings.Count(text, "\n---")
	if additions < 0 {
		additions = 0
	}
	if deletions < 0 {
		deletions = 0
	}
	return additions, deletions
}

// CommentableLines returns the new-file and old-file line numbers that
// appear in the diff. Added and context lines count as new lines,
// removed and context lines as old lines.
func CommentableLines(diffText string) (newLines, oldLines map[int]bool) {
	newLines = make(map[int]bool)
	oldLines = make(map[int]bool)

	for _, hunk := range ParseHunks(diffText) {
		oldLine := hunk.OldStart
		newLine := hunk.NewStart

		for _, line := range strings.Split(hunk.Content, "\n") {
			if line == "" {
				continue
			}
			switch line[0] {
			case '+':
				newLines[newLine] = true
				newLine++
			case '-':
				oldLines[oldLine] = true
				oldLine++
			case '\\':
				// "\ No newline at end of file"
			default:
				newLines[newLine] = true
				oldLines[oldLine] = true
				newLine++
				oldLine++
			}
		}
	}

	return newLines, oldLines
}
