package jobqueue

import (
	"testing"
)

func TestReviewArgsKind(t *testing.T) {
	if got := (ReviewArgs{}).Kind(); got != "mr_review" {
		t.Errorf("Expected kind mr_review, got %q", got)
	}
}

func TestReviewArgsNeverRetries(t *testing.T) {
	opts := (ReviewArgs{}).InsertOpts()
	if opts.MaxAttempts != 1 {
		t.Errorf("A failed review must not re-run, got MaxAttempts %d", opts.MaxAttempts)
	}
}

func TestDefaultQueueConfig(t *testing.T) {
	qc := DefaultQueueConfig()
	if qc.MaxWorkers <= 0 {
		t.Error("Expected a positive worker count")
	}

	queues := qc.RiverQueueConfig()
	if len(queues) != 1 {
		t.Fatalf("Expected a single queue, got %d", len(queues))
	}
	for _, q := range queues {
		if q.MaxWorkers != qc.MaxWorkers {
			t.Errorf("Expected %d workers, got %d", qc.MaxWorkers, q.MaxWorkers)
		}
	}
}
