package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds the tunable parameters for the review queue
type QueueConfig struct {
	// MaxWorkers caps how many reviews run concurrently. Reviews are
	// LLM-bound, so a handful is plenty.
	MaxWorkers int

	// JobTimeout bounds a single review job, covering every LLM call
	// for the MR.
	JobTimeout time.Duration
}

// DefaultQueueConfig returns the standard queue configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 2,
		JobTimeout: 15 * time.Minute,
	}
}

// RiverQueueConfig converts the config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
