package syncer

import (
	"context"
	"log"
	"time"

	"github.com/richardbrodie/mercury/internal/store"
	"github.com/richardbrodie/mercury/pkg/fetch"
)

// Reconciler diffs a freshly fetched item list against the stored items of
// the same feed and issues the resulting writes.
type Reconciler struct {
	store store.Store
}

func NewReconciler(st store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// Reconcile classifies every fetched item as new, updated or unchanged.
// Updated items are rewritten in place; new items are inserted and returned
// with their generated ids. Unchanged items cause no write. Only true
// insertions are reported, so fan-out never fires for updates.
func (r *Reconciler) Reconcile(ctx context.Context, feedID int64, fetched []fetch.FetchedItem) ([]store.Item, error) {
	if len(fetched) == 0 {
		return nil, nil
	}

	// Documents occasionally repeat a guid. The first occurrence wins;
	// inserting both would trip the (feed_id, guid) unique constraint.
	fetched = dedupeByGUID(fetched)

	guids := make([]string, len(fetched))
	for i, fi := range fetched {
		guids[i] = fi.GUID
	}

	existing, err := r.store.FindExistingByGUID(ctx, feedID, guids)
	if err != nil {
		return nil, err
	}
	byGUID := make(map[string]store.ItemStub, len(existing))
	for _, stub := range existing {
		byGUID[stub.GUID] = stub
	}

	var candidates []store.Item
	updated := 0
	for _, fi := range fetched {
		stub, dup := byGUID[fi.GUID]
		if !dup {
			candidates = append(candidates, toItem(feedID, fi))
			continue
		}
		if timesEqual(fi.PublishedAt, stub.PublishedAt) {
			continue
		}
		if err := r.store.UpdateItem(ctx, stub.ID, toItem(feedID, fi)); err != nil {
			return nil, err
		}
		updated++
	}
	if updated > 0 {
		log.Printf("syncer: feed %d: %d updated items", feedID, updated)
	}

	if len(candidates) == 0 {
		return nil, nil
	}
	return r.store.InsertItems(ctx, candidates)
}

func dedupeByGUID(fetched []fetch.FetchedItem) []fetch.FetchedItem {
	seen := make(map[string]struct{}, len(fetched))
	out := make([]fetch.FetchedItem, 0, len(fetched))
	for _, fi := range fetched {
		if _, dup := seen[fi.GUID]; dup {
			continue
		}
		seen[fi.GUID] = struct{}{}
		out = append(out, fi)
	}
	return out
}

func toItem(feedID int64, fi fetch.FetchedItem) store.Item {
	return store.Item{
		FeedID:      feedID,
		GUID:        fi.GUID,
		Link:        fi.Link,
		Title:       fi.Title,
		Summary:     fi.Summary,
		Content:     fi.Content,
		PublishedAt: fi.PublishedAt,
		UpdatedAt:   fi.UpdatedAt,
	}
}

// timesEqual compares two optional timestamps; two absent dates are equal.
func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
