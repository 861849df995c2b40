// Package scheduler periodically enumerates feeds and dispatches one sync
// task per feed.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/richardbrodie/mercury/internal/store"
)

// FeedLister enumerates every known feed with its subscriber set.
type FeedLister interface {
	ListFeedsWithSubscribers(ctx context.Context) ([]store.FeedSubscribers, error)
}

// FeedSyncer runs one synchronization pass for a feed.
type FeedSyncer interface {
	SyncFeed(ctx context.Context, feedID int64, url string, subscribers []int64) (int, error)
}

// Scheduler drives a fixed-period timer. Each tick dispatches every known
// feed to the syncer through a bounded pool of workers. Ticks never wait
// for tasks from earlier cycles.
type Scheduler struct {
	store    FeedLister
	syncer   FeedSyncer
	interval time.Duration
	sem      chan struct{}
}

// New creates a scheduler. A zero interval defaults to 300 seconds, a zero
// worker count to 8.
func New(st FeedLister, syncer FeedSyncer, interval time.Duration, workers int) *Scheduler {
	if interval == 0 {
		interval = 300 * time.Second
	}
	if workers <= 0 {
		workers = 8
	}
	return &Scheduler{
		store:    st,
		syncer:   syncer,
		interval: interval,
		sem:      make(chan struct{}, workers),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial sync...")
	s.dispatch(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (sync every %s)\n", s.interval)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

// dispatch fans out one sync task per feed and returns without waiting for
// them. A stuck task occupies one worker slot but never blocks the next
// tick. Task failures are isolated to their feed.
func (s *Scheduler) dispatch(ctx context.Context) {
	feeds, err := s.store.ListFeedsWithSubscribers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: list feeds: %v\n", err)
		return
	}

	for _, f := range feeds {
		go func(f store.FeedSubscribers) {
			select {
			case s.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-s.sem }()

			n, err := s.syncer.SyncFeed(ctx, f.FeedID, f.URL, f.Subscribers)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  sync %s: %v\n", f.URL, err)
				return
			}
			if n > 0 {
				fmt.Fprintf(os.Stderr, "  %s: %d new items\n", f.URL, n)
			}
		}(f)
	}
}
