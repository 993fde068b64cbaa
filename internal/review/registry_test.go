package review

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mergelens/mergelens/pkg/models"
)

func TestTaskRegistry_Lifecycle(t *testing.T) {
	registry := NewTaskRegistry(time.Hour)

	id := registry.Create()
	if id == "" {
		t.Fatal("Expected a task id")
	}

	task, ok := registry.Get(id)
	if !ok {
		t.Fatal("Expected to find the created task")
	}
	if task.Status != StatusRunning {
		t.Errorf("Expected running, got %s", task.Status)
	}

	result := &models.ReviewResult{Score: 8.5}
	registry.Complete(id, result)

	task, _ = registry.Get(id)
	if task.Status != StatusCompleted {
		t.Errorf("Expected completed, got %s", task.Status)
	}
	if task.Result == nil || task.Result.Score != 8.5 {
		t.Error("Expected the result to be attached")
	}
}

func TestTaskRegistry_Fail(t *testing.T) {
	registry := NewTaskRegistry(time.Hour)
	id := registry.Create()

	registry.Fail(id, "provider unreachable")

	task, _ := registry.Get(id)
	if task.Status != StatusError {
		t.Errorf("Expected error status, got %s", task.Status)
	}
	if task.Err != "provider unreachable" {
		t.Errorf("Expected error message, got %q", task.Err)
	}
}

func TestTaskRegistry_TerminalStatesAreFinal(t *testing.T) {
	registry := NewTaskRegistry(time.Hour)
	id := registry.Create()

	registry.Complete(id, &models.ReviewResult{Score: 10})
	registry.Fail(id, "too late")

	task, _ := registry.Get(id)
	if task.Status != StatusCompleted {
		t.Errorf("Completed task must not transition again, got %s", task.Status)
	}
}

func TestTaskRegistry_UnknownTask(t *testing.T) {
	registry := NewTaskRegistry(time.Hour)
	if _, ok := registry.Get("nope"); ok {
		t.Error("Expected unknown id to miss")
	}
}

func TestTaskRegistry_SweepsOldTasks(t *testing.T) {
	registry := NewTaskRegistry(time.Millisecond)
	old := registry.Create()

	time.Sleep(5 * time.Millisecond)

	// Creating a new task triggers the sweep
	fresh := registry.Create()

	if _, ok := registry.Get(old); ok {
		t.Error("Expected the old task to be swept")
	}
	if _, ok := registry.Get(fresh); !ok {
		t.Error("Expected the fresh task to survive")
	}
}

func TestTaskRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewTaskRegistry(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := registry.Create()
			registry.Complete(id, &models.ReviewResult{})
			registry.Get(id)
		}()
	}
	wg.Wait()
}

func TestScore(t *testing.T) {
	cases := []struct {
		stats models.ReviewStats
		want  float64
	}{
		{models.ReviewStats{}, 10},
		{models.ReviewStats{Critical: 1}, 8},
		{models.ReviewStats{Warning: 2}, 9},
		{models.ReviewStats{Critical: 2, Warning: 3}, 4.5},
		{models.ReviewStats{Critical: 10}, 1},
		{models.ReviewStats{Suggestion: 50}, 10},
	}

	for _, tc := range cases {
		if got := Score(tc.stats); got != tc.want {
			t.Errorf("Score(%+v) = %v, want %v", tc.stats, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	result := &models.ReviewResult{
		Score: 7.5,
		Stats: models.ReviewStats{FilesReviewed: 2, Critical: 1, Warning: 1},
		Files: []models.FileReview{
			{
				FilePath: "main.go",
				Comments: []models.ReviewComment{
					{FilePath: "main.go", Line: 4, Severity: models.SeverityCritical, Description: "nil deref"},
				},
			},
		},
	}

	summary := Summarize(result)

	for _, want := range []string{"Score: 7.5/10", "main.go", "line 4", "nil deref", "| critical | 1 |"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Expected summary to contain %q, got:\n%s", want, summary)
		}
	}
}

func TestSummarize_NoIssues(t *testing.T) {
	result := &models.ReviewResult{Score: 10, Stats: models.ReviewStats{FilesReviewed: 1}}

	if !strings.Contains(Summarize(result), "No issues found") {
		t.Error("Expected the clean summary text")
	}
}
