package redact

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Redactor masks credentials in diff text before it leaves the process
type Redactor struct {
	detector *detect.Detector
}

// New creates a redactor backed by the default gitleaks ruleset
func New() (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret detector: %w", err)
	}
	return &Redactor{detector: detector}, nil
}

// Redact replaces every detected secret with a [REDACTED:<rule>] marker
// and returns the redacted text plus the number of findings.
func (r *Redactor) Redact(text string) (string, int) {
	findings := r.detector.DetectString(text)
	if len(findings) == 0 {
		return text, 0
	}

	redacted := text
	for _, finding := range findings {
		if finding.Secret == "" {
			continue
		}
		marker := fmt.Sprintf("[REDACTED:%s]", finding.RuleID)
		redacted = strings.ReplaceAll(redacted, finding.Secret, marker)
	}

	log.Debug().
		Int("findings", len(findings)).
		Msg("Redacted secrets from diff text")

	return redacted, len(findings)
}
