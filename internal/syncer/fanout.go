package syncer

import (
	"context"

	"github.com/richardbrodie/mercury/internal/store"
)

// Fanout creates per-subscriber visibility records for newly inserted items.
type Fanout struct {
	store store.Store
}

func NewFanout(st store.Store) *Fanout {
	return &Fanout{store: st}
}

// Write bulk-inserts the (subscriber, item, seen=false) product. Either
// list being empty is a valid no-op, not an error.
func (f *Fanout) Write(ctx context.Context, itemIDs, subscribers []int64) error {
	if len(itemIDs) == 0 || len(subscribers) == 0 {
		return nil
	}
	recs := make([]store.SubscribedItem, 0, len(itemIDs)*len(subscribers))
	for _, uid := range subscribers {
		for _, iid := range itemIDs {
			recs = append(recs, store.SubscribedItem{UserID: uid, ItemID: iid, Seen: false})
		}
	}
	return f.store.InsertSubscribedItems(ctx, recs)
}
