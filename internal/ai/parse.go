package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/pkg/models"
)

type reviewResponse struct {
	Reviews []struct {
		LineNumber  int    `json:"line_number"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
	} `json:"reviews"`
}

// ParseReviewResponse extracts review comments from an LLM response.
// Models wrap JSON in code fences or prose and emit slightly broken JSON
// often enough that parsing falls back to a repair pass.
func ParseReviewResponse(filePath, response string) ([]models.ReviewComment, error) {
	jsonText := extractJSON(response)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var parsed reviewResponse
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(jsonText)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse repaired response: %w", err)
		}
		log.Debug().Str("file", filePath).Msg("Review response required JSON repair")
	}

	comments := make([]models.ReviewComment, 0, len(parsed.Reviews))
	for _, review := range parsed.Reviews {
		severity, ok := normalizeSeverity(review.Severity)
		if !ok {
			log.Debug().
				Str("file", filePath).
				Str("severity", review.Severity).
				Msg("Dropping review comment with unknown severity")
			continue
		}
		if strings.TrimSpace(review.Description) == "" {
			continue
		}

		comments = append(comments, models.ReviewComment{
			FilePath:    filePath,
			Line:        review.LineNumber,
			Severity:    severity,
			Description: strings.TrimSpace(review.Description),
		})
	}

	return comments, nil
}

// extractJSON locates the outermost JSON object, stripping code fences and
// any prose around it.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```"); idx >= 0 {
		rest := response[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			response = rest[:end]
		} else {
			response = rest
		}
	}

	start := strings.Index(response, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]

		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return response[start : i+1]
				}
			}
		}
	}

	// Unbalanced braces: return the tail and let the repair pass close it
	return response[start:]
}

func normalizeSeverity(severity string) (models.CommentSeverity, bool) {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical", "error", "blocker":
		return models.SeverityCritical, true
	case "warning", "warn", "major":
		return models.SeverityWarning, true
	case "suggestion", "info", "minor", "nit":
		return models.SeveritySuggestion, true
	default:
		return "", false
	}
}
