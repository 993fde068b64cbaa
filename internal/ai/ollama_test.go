package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func ollamaStub(t *testing.T, models ...string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		var entries []string
		for _, name := range models {
			entries = append(entries, `{"name": "`+name+`", "size": 1}`)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models": [` + strings.Join(entries, ",") + `]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchOllamaModels(t *testing.T) {
	server := ollamaStub(t, "qwen2.5-coder:7b", "llama3")

	models, err := FetchOllamaModels(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(models))
	}
	if models[0].Name != "qwen2.5-coder:7b" {
		t.Errorf("Expected first model name, got %q", models[0].Name)
	}
}

func TestFetchOllamaModels_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := FetchOllamaModels(context.Background(), server.URL); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}

func TestValidate_OllamaModelPresent(t *testing.T) {
	server := ollamaStub(t, "qwen2.5-coder:7b")

	reviewer, err := NewReviewer(Settings{
		Provider: ProviderOllama,
		BaseURL:  server.URL,
		Model:    "qwen2.5-coder",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Tag-qualified names match their bare model name
	if err := reviewer.Validate(context.Background()); err != nil {
		t.Errorf("Expected validation to pass, got: %v", err)
	}
}

func TestValidate_OllamaModelMissing(t *testing.T) {
	server := ollamaStub(t, "llama3")

	reviewer, err := NewReviewer(Settings{
		Provider: ProviderOllama,
		BaseURL:  server.URL,
		Model:    "qwen2.5-coder",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	err = reviewer.Validate(context.Background())
	if err == nil {
		t.Fatal("Expected validation to fail for a missing model")
	}
	if !strings.Contains(err.Error(), "not available") {
		t.Errorf("Expected a missing-model error, got: %v", err)
	}
}

func TestValidate_OllamaUnreachable(t *testing.T) {
	reviewer, err := NewReviewer(Settings{
		Provider: ProviderOllama,
		BaseURL:  "http://127.0.0.1:1",
		Model:    "qwen2.5-coder",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	err = reviewer.Validate(context.Background())
	if err == nil {
		t.Fatal("Expected validation to fail for an unreachable server")
	}
	if !IsFatal(err) {
		t.Errorf("Expected an unreachable server to classify as fatal, got: %v", err)
	}
}
