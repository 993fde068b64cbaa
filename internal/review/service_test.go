package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mergelens/mergelens/internal/gitlab"
	"github.com/mergelens/mergelens/pkg/models"
)

const serviceTestDiff = "@@ -1,2 +1,3 @@\n package main\n+var debug = true\n func main() {\n"

// fakeGenerator returns canned responses per prompt, in call order
type fakeGenerator struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return `{"reviews": []}`, nil
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return response, nil
}

// gitlabStub serves the MR detail and changes endpoints for project 1 MR 5
func gitlabStub(t *testing.T, changes []models.DiffFile) *gitlab.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/1/merge_requests/5", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         100,
			"iid":        5,
			"project_id": 1,
			"diff_refs": map[string]string{
				"base_sha":  "base",
				"start_sha": "start",
				"head_sha":  "head",
			},
		})
	})
	mux.HandleFunc("/api/v4/projects/1/merge_requests/5/changes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"changes": changes})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gitlab.NewClient(gitlab.Options{BaseURL: server.URL, Token: "test-token"})
	require.NoError(t, err)
	return client
}

func TestReviewMergeRequest_CountsFindings(t *testing.T) {
	client := gitlabStub(t, []models.DiffFile{
		{NewPath: "main.go", Diff: serviceTestDiff},
	})
	generator := &fakeGenerator{responses: []string{
		`{"reviews": [{"line_number": 2, "severity": "critical", "description": "debug flag left on"}]}`,
	}}

	service := NewService(client, generator, nil, nil, Limits{})
	result, err := service.ReviewMergeRequest(context.Background(), 1, 5, false)
	require.NoError(t, err)

	require.Equal(t, 1, result.Stats.FilesReviewed)
	require.Equal(t, 1, result.Stats.Critical)
	require.Equal(t, 8.0, result.Score)
	require.Len(t, result.Files, 1)
	require.Equal(t, "main.go", result.Files[0].FilePath)
	require.Nil(t, result.PostedAt)
	require.Contains(t, result.Summary, "debug flag left on")
}

func TestReviewMergeRequest_EmptyChanges(t *testing.T) {
	client := gitlabStub(t, nil)
	generator := &fakeGenerator{}

	service := NewService(client, generator, nil, nil, Limits{})
	result, err := service.ReviewMergeRequest(context.Background(), 1, 5, false)
	require.NoError(t, err)

	require.Equal(t, 0, result.Stats.FilesReviewed)
	require.Equal(t, 10.0, result.Score)
	require.Equal(t, 0, generator.calls)
	require.Contains(t, result.Summary, "No issues found")
}

func TestReviewMergeRequest_PerFileFailureIsRecorded(t *testing.T) {
	client := gitlabStub(t, []models.DiffFile{
		{NewPath: "broken.go", Diff: serviceTestDiff},
		{NewPath: "fine.go", Diff: serviceTestDiff},
	})
	generator := &fakeGenerator{responses: []string{
		"I refuse to answer in JSON.",
		`{"reviews": []}`,
	}}

	service := NewService(client, generator, nil, nil, Limits{})
	result, err := service.ReviewMergeRequest(context.Background(), 1, 5, false)
	require.NoError(t, err)

	require.Equal(t, 1, result.Stats.FilesReviewed)
	require.Contains(t, result.FileErrors, "broken.go")
	require.Equal(t, 10.0, result.Score)
}

func TestReviewMergeRequest_FatalErrorAborts(t *testing.T) {
	client := gitlabStub(t, []models.DiffFile{
		{NewPath: "a.go", Diff: serviceTestDiff},
		{NewPath: "b.go", Diff: serviceTestDiff},
	})
	generator := &fakeGenerator{err: errors.New("Incorrect API key provided")}

	service := NewService(client, generator, nil, nil, Limits{})
	_, err := service.ReviewMergeRequest(context.Background(), 1, 5, false)

	require.Error(t, err)
	require.Contains(t, err.Error(), "review aborted")
	require.Equal(t, 1, generator.calls, "a fatal error must stop after the first file")
}

func TestReviewMergeRequest_SkipsOversizedAndDeletedFiles(t *testing.T) {
	client := gitlabStub(t, []models.DiffFile{
		{NewPath: "huge.go", Diff: serviceTestDiff + strings.Repeat("+x\n", 200)},
		{NewPath: "gone.go", Diff: serviceTestDiff, DeletedFile: true},
		{NewPath: "small.go", Diff: serviceTestDiff},
	})
	generator := &fakeGenerator{}

	service := NewService(client, generator, nil, nil, Limits{MaxDiffBytes: 100})
	result, err := service.ReviewMergeRequest(context.Background(), 1, 5, false)
	require.NoError(t, err)

	require.Equal(t, 2, result.Stats.FilesSkipped)
	require.Equal(t, 1, result.Stats.FilesReviewed)
}

func TestReviewMergeRequest_CapsFileCount(t *testing.T) {
	client := gitlabStub(t, []models.DiffFile{
		{NewPath: "a.go", Diff: serviceTestDiff},
		{NewPath: "b.go", Diff: serviceTestDiff},
		{NewPath: "c.go", Diff: serviceTestDiff},
	})
	generator := &fakeGenerator{}

	service := NewService(client, generator, nil, nil, Limits{MaxFiles: 1})
	result, err := service.ReviewMergeRequest(context.Background(), 1, 5, false)
	require.NoError(t, err)

	require.Equal(t, 1, result.Stats.FilesReviewed)
	require.Equal(t, 2, result.Stats.FilesSkipped)
	require.Equal(t, 1, generator.calls)
}

func TestReviewFile_DropsCommentsOutsideDiff(t *testing.T) {
	client := gitlabStub(t, nil)
	generator := &fakeGenerator{responses: []string{
		`{"reviews": [
			{"line_number": 2, "severity": "warning", "description": "in the diff"},
			{"line_number": 99, "severity": "warning", "description": "hallucinated"}
		]}`,
	}}

	service := NewService(client, generator, nil, nil, Limits{})
	comments, err := service.ReviewFile(context.Background(), models.DiffFile{
		NewPath: "main.go",
		Diff:    serviceTestDiff,
	})
	require.NoError(t, err)

	require.Len(t, comments, 1)
	require.Equal(t, 2, comments[0].Line)
}
