package review

import (
	"fmt"
	"strings"

	"github.com/mergelens/mergelens/pkg/models"
)

// Score rates an MR from 1 to 10. Critical findings cost 2 points each,
// warnings half a point; suggestions are free.
func Score(stats models.ReviewStats) float64 {
	score := 10.0 - 2.0*float64(stats.Critical) - 0.5*float64(stats.Warning)
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Summarize renders the review result as the markdown summary posted on
// the MR and shown in the UI.
func Summarize(result *models.ReviewResult) string {
	var b strings.Builder

	b.WriteString("## AI Code Review\n\n")
	fmt.Fprintf(&b, "**Score: %.1f/10**\n\n", result.Score)
	fmt.Fprintf(&b, "Reviewed %d file(s)", result.Stats.FilesReviewed)
	if result.Stats.FilesSkipped > 0 {
		fmt.Fprintf(&b, " (%d skipped)", result.Stats.FilesSkipped)
	}
	b.WriteString("\n\n")

	total := result.Stats.Critical + result.Stats.Warning + result.Stats.Suggestion
	if total == 0 {
		b.WriteString("No issues found.\n")
	} else {
		fmt.Fprintf(&b, "| Severity | Count |\n|----------|-------|\n")
		fmt.Fprintf(&b, "| critical | %d |\n", result.Stats.Critical)
		fmt.Fprintf(&b, "| warning | %d |\n", result.Stats.Warning)
		fmt.Fprintf(&b, "| suggestion | %d |\n", result.Stats.Suggestion)

		for _, file := range result.Files {
			if len(file.Comments) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n### %s\n", file.FilePath)
			for _, comment := range file.Comments {
				fmt.Fprintf(&b, "- line %d **[%s]**: %s\n", comment.Line, comment.Severity, comment.Description)
			}
		}
	}

	if len(result.FileErrors) > 0 {
		fmt.Fprintf(&b, "\n%d file(s) could not be reviewed.\n", len(result.FileErrors))
	}

	return b.String()
}
