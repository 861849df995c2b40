// Package syncer implements the per-feed synchronization pipeline and the
// subscribe workflow.
package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/richardbrodie/mercury/internal/store"
	"github.com/richardbrodie/mercury/pkg/fetch"
)

// Fetcher retrieves and decodes one remote feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.FetchedFeed, error)
}

// Syncer drives the fetch, reconcile, persist and fan-out stages for a
// single feed. The stages run strictly in order; concurrency lives one
// level up, in the scheduler.
type Syncer struct {
	store   store.Store
	fetcher Fetcher
	rec     *Reconciler
	fan     *Fanout
}

func New(st store.Store, f Fetcher) *Syncer {
	return &Syncer{
		store:   st,
		fetcher: f,
		rec:     NewReconciler(st),
		fan:     NewFanout(st),
	}
}

// SyncFeed runs one synchronization pass for a feed and returns the number
// of newly inserted items. Any error aborts only this feed's pass.
func (s *Syncer) SyncFeed(ctx context.Context, feedID int64, url string, subscribers []int64) (int, error) {
	ff, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}

	s.refreshFeedMeta(ctx, feedID, url, ff)

	inserted, err := s.rec.Reconcile(ctx, feedID, ff.Items)
	if err != nil {
		return 0, err
	}

	ids := make([]int64, len(inserted))
	for i, it := range inserted {
		ids[i] = it.ID
	}
	if err := s.fan.Write(ctx, ids, subscribers); err != nil {
		return 0, err
	}
	return len(inserted), nil
}

// Subscribe resolves or creates the feed for url, attaches one subscriber
// and backfills visibility for the feed's existing backlog. A freshly
// created feed has no backlog; the next sync cycle's fan-out covers it.
// No rollback happens on partial failure.
func (s *Syncer) Subscribe(ctx context.Context, userID int64, url string) error {
	var backlog []int64

	feed, err := s.store.FindFeedByURL(ctx, url)
	switch {
	case errors.Is(err, store.ErrNotFound):
		ff, ferr := s.fetcher.Fetch(ctx, url)
		if ferr != nil {
			return ferr
		}
		feed = &store.Feed{
			Title:       ff.Title,
			Description: ff.Description,
			SiteLink:    ff.SiteLink,
			FeedLink:    url,
			UpdatedAt:   time.Now().UTC(),
		}
		if err := s.store.InsertFeed(ctx, feed); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		backlog, err = s.store.ListItemIDs(ctx, feed.ID)
		if err != nil {
			return err
		}
	}

	if err := s.store.InsertSubscription(ctx, userID, feed.ID); err != nil {
		if !errors.Is(err, store.ErrDuplicateSubscription) {
			return err
		}
		// The subscriber already has visibility records for this feed.
		log.Printf("syncer: subscribe failure: feed %d by user %d: %v", feed.ID, userID, err)
		return nil
	}

	// Pre-existing items appear as unseen backlog for the new subscriber.
	return s.fan.Write(ctx, backlog, []int64{userID})
}

// refreshFeedMeta updates stored channel metadata when the fetched document
// differs. Best effort: a failure here never aborts the sync pass.
func (s *Syncer) refreshFeedMeta(ctx context.Context, feedID int64, url string, ff *fetch.FetchedFeed) {
	cur, err := s.store.FindFeedByURL(ctx, url)
	if err != nil || cur.ID != feedID {
		return
	}
	if cur.Title == ff.Title && cur.Description == ff.Description && cur.SiteLink == ff.SiteLink {
		return
	}
	cur.Title = ff.Title
	cur.Description = ff.Description
	cur.SiteLink = ff.SiteLink
	cur.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFeedMeta(ctx, cur); err != nil {
		log.Printf("syncer: refresh feed %d metadata: %v", feedID, err)
	}
}
