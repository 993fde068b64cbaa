package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Settings configures the reviewer's LLM backend
type Settings struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Reviewer generates review comments for annotated diffs
type Reviewer struct {
	llm      llms.Model
	settings Settings
}

// NewReviewer builds a reviewer for the configured provider
func NewReviewer(settings Settings) (*Reviewer, error) {
	var model llms.Model
	var err error

	log.Debug().
		Str("provider", settings.Provider).
		Str("model", settings.Model).
		Float64("temperature", settings.Temperature).
		Msg("Creating AI reviewer")

	switch settings.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(settings.Model),
			openai.WithToken(settings.APIKey),
		}
		if settings.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(settings.BaseURL))
		}
		model, err = openai.New(opts...)

	case ProviderOllama:
		opts := []ollama.Option{
			ollama.WithModel(settings.Model),
		}
		if settings.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(settings.BaseURL))
		}
		model, err = ollama.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider: %s", settings.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", settings.Provider, err)
	}

	return &Reviewer{llm: model, settings: settings}, nil
}

// Generate runs a single prompt through the model
func (r *Reviewer) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(r.settings.Temperature),
	}
	if r.settings.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(r.settings.MaxTokens))
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, r.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	return response, nil
}

// Validate checks that the provider is reachable with the configured
// credentials. Ollama is validated by listing its models; hosted providers
// by a minimal generation call.
func (r *Reviewer) Validate(ctx context.Context) error {
	if r.settings.Provider == ProviderOllama {
		tags, err := FetchOllamaModels(ctx, r.settings.BaseURL)
		if err != nil {
			return fmt.Errorf("ollama is not reachable: %w", err)
		}
		for _, m := range tags {
			if m.Name == r.settings.Model || strings.SplitN(m.Name, ":", 2)[0] == r.settings.Model {
				return nil
			}
		}
		return fmt.Errorf("model %q is not available on the ollama server", r.settings.Model)
	}

	_, err := llms.GenerateFromSinglePrompt(ctx, r.llm, "ping", llms.WithMaxTokens(1))
	if err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}
	return nil
}

// IsFatal reports whether an AI error should abort a whole review run
// instead of skipping the current file. Bad credentials, exhausted quota,
// missing models, and unreachable servers will fail every file the same way.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	fatalMarkers := []string{
		"invalid api key",
		"incorrect api key",
		"invalid_api_key",
		"authentication",
		"unauthorized",
		"401",
		"quota",
		"insufficient_quota",
		"billing",
		"model_not_found",
		"does not exist",
		"connection refused",
		"no such host",
	}

	for _, marker := range fatalMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
