package gitlab

import (
	"testing"
	"time"

	"github.com/mergelens/mergelens/pkg/models"
)

func TestProjectCache(t *testing.T) {
	cache := newProjectCache(time.Minute)

	if _, _, ok := cache.get(1); ok {
		t.Error("Expected miss for unknown project")
	}

	cache.put(1, "proj", "group/proj")

	name, path, ok := cache.get(1)
	if !ok {
		t.Fatal("Expected hit after put")
	}
	if name != "proj" || path != "group/proj" {
		t.Errorf("Got %q/%q", name, path)
	}
}

func TestProjectCache_Expiry(t *testing.T) {
	cache := newProjectCache(time.Millisecond)
	cache.put(1, "proj", "group/proj")

	time.Sleep(5 * time.Millisecond)

	if _, _, ok := cache.get(1); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestDedupeMergeRequests(t *testing.T) {
	mrs := []models.MergeRequest{
		{ProjectID: 1, IID: 10, Title: "a"},
		{ProjectID: 1, IID: 10, Title: "a again"},
		{ProjectID: 2, IID: 10, Title: "b"},
		{ProjectID: 1, IID: 11, Title: "c"},
	}

	result := dedupeMergeRequests(mrs)

	if len(result) != 3 {
		t.Fatalf("Expected 3 unique MRs, got %d", len(result))
	}
	if result[0].Title != "a" {
		t.Error("First occurrence should win")
	}
}
