package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/richardbrodie/mercury/internal/store"
	"github.com/richardbrodie/mercury/pkg/fetch"
)

// fakeStore is an in-memory store.Store for pipeline tests.
type fakeStore struct {
	feeds    map[int64]*store.Feed
	items    map[int64]store.Item
	subs     map[[2]int64]bool
	subItems []store.SubscribedItem

	nextFeedID int64
	nextItemID int64

	updateCalls int
	insertCalls int

	failFetchLookup error
	failInsertItems error
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		feeds: make(map[int64]*store.Feed),
		items: make(map[int64]store.Item),
		subs:  make(map[[2]int64]bool),
	}
}

func (f *fakeStore) addFeed(url string) *store.Feed {
	f.nextFeedID++
	fd := &store.Feed{ID: f.nextFeedID, FeedLink: url, UpdatedAt: time.Now().UTC()}
	f.feeds[fd.ID] = fd
	return fd
}

func (f *fakeStore) addItem(feedID int64, guid string, publishedAt *time.Time) store.Item {
	f.nextItemID++
	it := store.Item{ID: f.nextItemID, FeedID: feedID, GUID: guid, PublishedAt: publishedAt}
	f.items[it.ID] = it
	return it
}

func (f *fakeStore) ListFeedsWithSubscribers(ctx context.Context) ([]store.FeedSubscribers, error) {
	var out []store.FeedSubscribers
	for _, fd := range f.feeds {
		fs := store.FeedSubscribers{FeedID: fd.ID, URL: fd.FeedLink}
		for pair := range f.subs {
			if pair[1] == fd.ID {
				fs.Subscribers = append(fs.Subscribers, pair[0])
			}
		}
		out = append(out, fs)
	}
	return out, nil
}

func (f *fakeStore) FindFeedByURL(ctx context.Context, url string) (*store.Feed, error) {
	for _, fd := range f.feeds {
		if fd.FeedLink == url {
			cp := *fd
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) InsertFeed(ctx context.Context, fd *store.Feed) error {
	f.nextFeedID++
	fd.ID = f.nextFeedID
	cp := *fd
	f.feeds[fd.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateFeedMeta(ctx context.Context, fd *store.Feed) error {
	cp := *fd
	f.feeds[fd.ID] = &cp
	return nil
}

func (f *fakeStore) FindExistingByGUID(ctx context.Context, feedID int64, guids []string) ([]store.ItemStub, error) {
	if f.failFetchLookup != nil {
		return nil, f.failFetchLookup
	}
	wanted := make(map[string]bool, len(guids))
	for _, g := range guids {
		wanted[g] = true
	}
	var stubs []store.ItemStub
	for _, it := range f.items {
		if it.FeedID == feedID && wanted[it.GUID] {
			stubs = append(stubs, store.ItemStub{ID: it.ID, GUID: it.GUID, PublishedAt: it.PublishedAt})
		}
	}
	return stubs, nil
}

func (f *fakeStore) InsertItems(ctx context.Context, items []store.Item) ([]store.Item, error) {
	if f.failInsertItems != nil {
		return nil, f.failInsertItems
	}
	f.insertCalls++
	out := make([]store.Item, 0, len(items))
	for _, it := range items {
		f.nextItemID++
		it.ID = f.nextItemID
		f.items[it.ID] = it
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeStore) UpdateItem(ctx context.Context, id int64, it store.Item) error {
	f.updateCalls++
	cur, ok := f.items[id]
	if !ok {
		return fmt.Errorf("no item %d", id)
	}
	cur.Title = it.Title
	cur.Link = it.Link
	cur.Summary = it.Summary
	cur.Content = it.Content
	cur.PublishedAt = it.PublishedAt
	cur.UpdatedAt = it.UpdatedAt
	f.items[id] = cur
	return nil
}

func (f *fakeStore) ListItemIDs(ctx context.Context, feedID int64) ([]int64, error) {
	var ids []int64
	for _, it := range f.items {
		if it.FeedID == feedID {
			ids = append(ids, it.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) InsertSubscription(ctx context.Context, userID, feedID int64) error {
	key := [2]int64{userID, feedID}
	if f.subs[key] {
		return store.ErrDuplicateSubscription
	}
	f.subs[key] = true
	return nil
}

func (f *fakeStore) InsertSubscribedItems(ctx context.Context, recs []store.SubscribedItem) error {
	f.subItems = append(f.subItems, recs...)
	return nil
}

func (f *fakeStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	panic("not used")
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	panic("not used")
}

func (f *fakeStore) EnsureAdminUser(ctx context.Context, password string) error {
	panic("not used")
}

func (f *fakeStore) ListSubscribedFeeds(ctx context.Context, userID int64) ([]store.SubscribedFeed, error) {
	panic("not used")
}

func (f *fakeStore) ListSubscribedItems(ctx context.Context, userID, feedID int64, olderThan *time.Time) ([]store.UserItem, error) {
	panic("not used")
}

func (f *fakeStore) GetSubscribedItem(ctx context.Context, userID, itemID int64) (*store.UserItem, error) {
	panic("not used")
}

func (f *fakeStore) MarkItemSeen(ctx context.Context, subscribedItemID int64) error {
	panic("not used")
}

func (f *fakeStore) Close() error { return nil }

// fakeFetcher serves canned feeds by URL.
type fakeFetcher struct {
	feeds map[string]*fetch.FetchedFeed
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetch.FetchedFeed, error) {
	if f.err != nil {
		return nil, f.err
	}
	ff, ok := f.feeds[url]
	if !ok {
		return nil, &fetch.Error{Kind: fetch.KindRequest, URL: url, Err: fmt.Errorf("no such feed")}
	}
	return ff, nil
}

func ts(h int) *time.Time {
	t := time.Date(2024, 5, 1, h, 0, 0, 0, time.UTC)
	return &t
}
