package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardbrodie/mercury/pkg/fetch"
)

const feedURL = "http://example.com/rss"

func TestSyncFeedFansOutNewItemsToSubscribers(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)
	st.addItem(feed.ID, "old", ts(8))

	ftch := &fakeFetcher{feeds: map[string]*fetch.FetchedFeed{
		feedURL: {Items: []fetch.FetchedItem{
			{GUID: "old", PublishedAt: ts(8)},
			{GUID: "fresh", Title: "new entry", PublishedAt: ts(9)},
		}},
	}}

	sy := New(st, ftch)
	n, err := sy.SyncFeed(context.Background(), feed.ID, feedURL, []int64{7, 8})

	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// One visibility record per subscriber, only for the inserted item.
	require.Len(t, st.subItems, 2)
	users := map[int64]bool{}
	for _, si := range st.subItems {
		assert.False(t, si.Seen)
		assert.Equal(t, st.items[si.ItemID].GUID, "fresh")
		users[si.UserID] = true
	}
	assert.True(t, users[7])
	assert.True(t, users[8])
}

func TestSyncFeedDocumentRepeatingGUIDStillFansOut(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)

	ftch := &fakeFetcher{feeds: map[string]*fetch.FetchedFeed{
		feedURL: {Items: []fetch.FetchedItem{
			{GUID: "dup", Title: "first copy", PublishedAt: ts(9)},
			{GUID: "dup", Title: "second copy", PublishedAt: ts(10)},
		}},
	}}

	sy := New(st, ftch)
	n, err := sy.SyncFeed(context.Background(), feed.ID, feedURL, []int64{7})

	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The subscriber still gets exactly one visibility record.
	require.Len(t, st.subItems, 1)
	assert.Equal(t, int64(7), st.subItems[0].UserID)
	assert.Equal(t, "first copy", st.items[st.subItems[0].ItemID].Title)
}

func TestSyncFeedUpdatedItemsNotFannedOut(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)
	st.addItem(feed.ID, "g1", ts(8))

	ftch := &fakeFetcher{feeds: map[string]*fetch.FetchedFeed{
		feedURL: {Items: []fetch.FetchedItem{{GUID: "g1", PublishedAt: ts(9)}}},
	}}

	sy := New(st, ftch)
	n, err := sy.SyncFeed(context.Background(), feed.ID, feedURL, []int64{7})

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, st.updateCalls)
	assert.Empty(t, st.subItems)
}

func TestSyncFeedZeroSubscribers(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)

	ftch := &fakeFetcher{feeds: map[string]*fetch.FetchedFeed{
		feedURL: {Items: []fetch.FetchedItem{{GUID: "g1", PublishedAt: ts(9)}}},
	}}

	sy := New(st, ftch)
	n, err := sy.SyncFeed(context.Background(), feed.ID, feedURL, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, st.subItems)
}

func TestSyncFeedFetchFailureLeavesStoreUntouched(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)
	st.addItem(feed.ID, "g1", ts(8))

	ftch := &fakeFetcher{err: &fetch.Error{Kind: fetch.KindTimeout, URL: feedURL}}

	sy := New(st, ftch)
	_, err := sy.SyncFeed(context.Background(), feed.ID, feedURL, []int64{7})

	var ferr *fetch.Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, fetch.KindTimeout, ferr.Kind)

	assert.Len(t, st.items, 1)
	assert.Zero(t, st.updateCalls)
	assert.Empty(t, st.subItems)
}

func TestSyncFeedRerunIsIdempotent(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)

	ftch := &fakeFetcher{feeds: map[string]*fetch.FetchedFeed{
		feedURL: {Items: []fetch.FetchedItem{
			{GUID: "g1", PublishedAt: ts(9)},
			{GUID: "g2", PublishedAt: ts(10)},
		}},
	}}

	sy := New(st, ftch)

	n, err := sy.SyncFeed(context.Background(), feed.ID, feedURL, []int64{7})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = sy.SyncFeed(context.Background(), feed.ID, feedURL, []int64{7})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Len(t, st.items, 2)
	assert.Len(t, st.subItems, 2)
	assert.Zero(t, st.updateCalls)
}

func TestSyncFeedRefreshesChannelMetadata(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)

	ftch := &fakeFetcher{feeds: map[string]*fetch.FetchedFeed{
		feedURL: {Title: "Example Blog", SiteLink: "http://example.com"},
	}}

	sy := New(st, ftch)
	_, err := sy.SyncFeed(context.Background(), feed.ID, feedURL, nil)

	require.NoError(t, err)
	assert.Equal(t, "Example Blog", st.feeds[feed.ID].Title)
	assert.Equal(t, "http://example.com", st.feeds[feed.ID].SiteLink)
}

func TestSubscribeExistingFeedBackfillsBacklog(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)
	for i := 0; i < 3; i++ {
		st.addItem(feed.ID, "g"+string(rune('a'+i)), ts(8+i))
	}

	sy := New(st, &fakeFetcher{})
	require.NoError(t, sy.Subscribe(context.Background(), 7, feedURL))

	assert.True(t, st.subs[[2]int64{7, feed.ID}])
	require.Len(t, st.subItems, 3)
	for _, si := range st.subItems {
		assert.Equal(t, int64(7), si.UserID)
		assert.False(t, si.Seen)
	}
}

func TestSubscribeUnknownURLCreatesFeedOnly(t *testing.T) {
	st := newFakeStore()
	ftch := &fakeFetcher{feeds: map[string]*fetch.FetchedFeed{
		feedURL: {
			Title: "Example Blog",
			Items: []fetch.FetchedItem{{GUID: "g1", PublishedAt: ts(9)}},
		},
	}}

	sy := New(st, ftch)
	require.NoError(t, sy.Subscribe(context.Background(), 7, feedURL))

	// The feed row exists with fetched metadata but no items yet; the
	// first sync cycle's fan-out covers them.
	feed, err := st.FindFeedByURL(context.Background(), feedURL)
	require.NoError(t, err)
	assert.Equal(t, "Example Blog", feed.Title)
	assert.True(t, st.subs[[2]int64{7, feed.ID}])
	assert.Empty(t, st.items)
	assert.Empty(t, st.subItems)
}

func TestSubscribeUnreachableURLFails(t *testing.T) {
	st := newFakeStore()
	sy := New(st, &fakeFetcher{})

	err := sy.Subscribe(context.Background(), 7, "http://nowhere.invalid/rss")

	var ferr *fetch.Error
	require.ErrorAs(t, err, &ferr)
	assert.Empty(t, st.feeds)
	assert.Empty(t, st.subs)
}

func TestSubscribeDuplicateIsNonFatal(t *testing.T) {
	st := newFakeStore()
	feed := st.addFeed(feedURL)
	st.addItem(feed.ID, "g1", ts(9))

	sy := New(st, &fakeFetcher{})
	require.NoError(t, sy.Subscribe(context.Background(), 7, feedURL))
	require.NoError(t, sy.Subscribe(context.Background(), 7, feedURL))

	// No second batch of visibility records.
	assert.Len(t, st.subItems, 1)
}
