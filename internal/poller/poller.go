// Package poller periodically scans for new merge requests assigned to
// the configured GitLab token and queues automated reviews for them.
// It is disabled unless a poll interval is configured.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/internal/gitlab"
	"github.com/mergelens/mergelens/internal/jobqueue"
	"github.com/mergelens/mergelens/pkg/models"
)

// Poller watches related merge requests and enqueues a review the
// first time it sees each head SHA. The seen set is rebuilt from every
// listing, so it stays bounded by the number of open MRs.
type Poller struct {
	client   *gitlab.Client
	queue    *jobqueue.Queue
	userID   int64
	interval time.Duration

	seen map[string]struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a poller. userID attributes the queued reviews in history.
func New(client *gitlab.Client, queue *jobqueue.Queue, userID int64, interval time.Duration) *Poller {
	return &Poller{
		client:   client,
		queue:    queue,
		userID:   userID,
		interval: interval,
		seen:     make(map[string]struct{}),
		stop:     make(chan struct{}),
	}
}

// Start launches the polling loop
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
	log.Info().Dur("interval", p.interval).Msg("MR poller started")
}

// Stop signals the loop to exit and waits for it
func (p *Poller) Stop() {
	close(p.stop)
	p.wg.Wait()
	log.Info().Msg("MR poller stopped")
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First scan primes the seen set so a restart does not re-review
	// every open MR.
	p.scan(true)

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.scan(false)
		}
	}
}

// scan lists related MRs and enqueues reviews for unseen head SHAs.
// When prime is set, SHAs are recorded without queuing work.
func (p *Poller) scan(prime bool) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mrs, err := p.client.RelatedMergeRequests(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Poller failed to list merge requests")
		return
	}

	fresh, next := selectUnseen(p.seen, mrs)
	p.seen = next

	if prime {
		return
	}

	for _, mr := range fresh {
		taskID, err := p.queue.EnqueueReview(ctx, p.userID, mr.ProjectID, mr.IID, true)
		if err != nil {
			log.Warn().
				Err(err).
				Int("project_id", mr.ProjectID).
				Int("mr_iid", mr.IID).
				Msg("Poller failed to enqueue review")
			continue
		}

		log.Info().
			Str("task_id", taskID).
			Int("project_id", mr.ProjectID).
			Int("mr_iid", mr.IID).
			Str("sha", mr.SHA).
			Msg("Queued automatic review")
	}
}

// selectUnseen splits a listing into the MRs whose head SHA has not
// been seen and the seen set for the next scan. MRs that left the
// listing are evicted; re-pushing an MR changes its SHA and makes it
// fresh again.
func selectUnseen(seen map[string]struct{}, mrs []models.MergeRequest) ([]models.MergeRequest, map[string]struct{}) {
	next := make(map[string]struct{}, len(mrs))
	var fresh []models.MergeRequest

	for _, mr := range mrs {
		if mr.SHA == "" {
			continue
		}
		if _, dup := next[mr.SHA]; dup {
			continue
		}
		next[mr.SHA] = struct{}{}

		if _, ok := seen[mr.SHA]; !ok {
			fresh = append(fresh, mr)
		}
	}

	return fresh, next
}
