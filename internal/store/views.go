package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// subscribedItemsPageSize caps one page of the item listing.
const subscribedItemsPageSize = 50

// ListSubscribedFeeds returns the feeds a user follows with their unseen
// item counts, ordered by title.
func (s *SQLStore) ListSubscribedFeeds(ctx context.Context, userID int64) ([]SubscribedFeed, error) {
	query := `
		SELECT f.id, f.title, f.description, f.site_link, f.feed_link, f.updated_at,
		       COALESCE(SUM(CASE WHEN si.id IS NOT NULL AND NOT si.seen THEN 1 ELSE 0 END), 0) AS unseen_count
		FROM feeds f
		JOIN subscribed_feeds sf ON sf.feed_id = f.id
		LEFT JOIN items i ON i.feed_id = f.id
		LEFT JOIN subscribed_items si ON si.item_id = i.id AND si.user_id = sf.user_id
		WHERE sf.user_id = ?
		GROUP BY f.id, f.title, f.description, f.site_link, f.feed_link, f.updated_at
		ORDER BY f.title ASC`

	var feeds []SubscribedFeed
	if err := s.db.SelectContext(ctx, &feeds, s.db.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("list subscribed feeds for user %d: %w", userID, err)
	}
	return feeds, nil
}

// ListSubscribedItems pages one user's view of a feed, newest first. A
// non-nil olderThan restricts the page to items published before it.
func (s *SQLStore) ListSubscribedItems(ctx context.Context, userID, feedID int64, olderThan *time.Time) ([]UserItem, error) {
	query := `
		SELECT i.id, i.feed_id, i.guid, i.link, i.title, i.summary, i.content,
		       i.published_at, i.updated_at, si.id AS subscribed_item_id, si.seen
		FROM items i
		JOIN subscribed_items si ON si.item_id = i.id
		WHERE si.user_id = ? AND i.feed_id = ?`
	args := []any{userID, feedID}

	if olderThan != nil {
		query += " AND i.published_at < ?"
		args = append(args, *olderThan)
	}

	query += " ORDER BY i.published_at DESC LIMIT ?"
	args = append(args, subscribedItemsPageSize)

	var items []UserItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list subscribed items for user %d feed %d: %w", userID, feedID, err)
	}
	return items, nil
}

// GetSubscribedItem returns one item in a user's view and flips its seen
// flag. The returned record reflects the state before the flip.
func (s *SQLStore) GetSubscribedItem(ctx context.Context, userID, itemID int64) (*UserItem, error) {
	query := `
		SELECT i.id, i.feed_id, i.guid, i.link, i.title, i.summary, i.content,
		       i.published_at, i.updated_at, si.id AS subscribed_item_id, si.seen
		FROM items i
		JOIN subscribed_items si ON si.item_id = i.id
		WHERE si.user_id = ? AND i.id = ?`

	var it UserItem
	err := s.db.GetContext(ctx, &it, s.db.Rebind(query), userID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscribed item %d for user %d: %w", itemID, userID, err)
	}

	if err := s.MarkItemSeen(ctx, it.SubscribedItemID); err != nil {
		return nil, err
	}
	return &it, nil
}

// MarkItemSeen flips a visibility record to seen. This is the only mutable
// field of a subscribed item.
func (s *SQLStore) MarkItemSeen(ctx context.Context, subscribedItemID int64) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE subscribed_items SET seen = ? WHERE id = ?"),
		true, subscribedItemID)
	if err != nil {
		return fmt.Errorf("mark subscribed item %d seen: %w", subscribedItemID, err)
	}
	return nil
}
