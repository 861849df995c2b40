// Package store is the persistence gateway for feeds, items, users and
// per-user visibility records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateSubscription is returned when a (user, feed) pair already
// exists. Callers treat it as non-fatal.
var ErrDuplicateSubscription = errors.New("duplicate subscription")

// Feed is a remote syndication source, identified by its fetch URL.
type Feed struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	SiteLink    string    `db:"site_link"`
	FeedLink    string    `db:"feed_link"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Item is one entry within a feed. An item belongs to exactly one feed for
// its lifetime and is never deleted.
type Item struct {
	ID          int64      `db:"id"`
	FeedID      int64      `db:"feed_id"`
	GUID        string     `db:"guid"`
	Link        string     `db:"link"`
	Title       string     `db:"title"`
	Summary     string     `db:"summary"`
	Content     string     `db:"content"`
	PublishedAt *time.Time `db:"published_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// ItemStub is the slice of an item the reconciler needs for duplicate
// detection.
type ItemStub struct {
	ID          int64      `db:"id"`
	GUID        string     `db:"guid"`
	PublishedAt *time.Time `db:"published_at"`
}

// FeedSubscribers pairs a feed with the users currently subscribed to it.
// Subscribers may legitimately be empty.
type FeedSubscribers struct {
	FeedID      int64
	URL         string
	Subscribers []int64
}

// User is consumed by the sync pipeline only as an identifier.
type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
}

// SubscribedItem is the per-user visibility record for an item. Its absence
// means the item is invisible to that user.
type SubscribedItem struct {
	UserID int64 `db:"user_id"`
	ItemID int64 `db:"item_id"`
	Seen   bool  `db:"seen"`
}

// SubscribedFeed is a feed as seen by one subscriber.
type SubscribedFeed struct {
	Feed
	UnseenCount int `db:"unseen_count"`
}

// UserItem is an item joined with its visibility record for one user.
type UserItem struct {
	Item
	SubscribedItemID int64 `db:"subscribed_item_id"`
	Seen             bool  `db:"seen"`
}

// Store is the persistence contract consumed by the sync pipeline and the
// HTTP API. Every write is a single atomic statement; the pipeline performs
// no multi-statement transactions.
type Store interface {
	// Sync pipeline operations.
	ListFeedsWithSubscribers(ctx context.Context) ([]FeedSubscribers, error)
	FindFeedByURL(ctx context.Context, url string) (*Feed, error)
	InsertFeed(ctx context.Context, f *Feed) error
	UpdateFeedMeta(ctx context.Context, f *Feed) error
	FindExistingByGUID(ctx context.Context, feedID int64, guids []string) ([]ItemStub, error)
	InsertItems(ctx context.Context, items []Item) ([]Item, error)
	UpdateItem(ctx context.Context, id int64, it Item) error
	ListItemIDs(ctx context.Context, feedID int64) ([]int64, error)
	InsertSubscription(ctx context.Context, userID, feedID int64) error
	InsertSubscribedItems(ctx context.Context, recs []SubscribedItem) error

	// Users.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	EnsureAdminUser(ctx context.Context, password string) error

	// Read side, consumed by the HTTP API.
	ListSubscribedFeeds(ctx context.Context, userID int64) ([]SubscribedFeed, error)
	ListSubscribedItems(ctx context.Context, userID, feedID int64, olderThan *time.Time) ([]UserItem, error)
	GetSubscribedItem(ctx context.Context, userID, itemID int64) (*UserItem, error)
	MarkItemSeen(ctx context.Context, subscribedItemID int64) error

	Close() error
}

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// New opens the database and runs migrations. driver is "sqlite" or
// "postgres"; dsn is a file path or a postgres connection string.
func New(driver, dsn string) (*SQLStore, error) {
	var schema string
	switch driver {
	case "sqlite":
		schema = schemaSQLite
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	case "postgres":
		schema = schemaPostgres
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	// Concurrent sync tasks acquire-and-release per call against this pool.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ListFeedsWithSubscribers returns every feed with its current subscriber
// set. A feed nobody follows is returned with an empty set, not omitted.
func (s *SQLStore) ListFeedsWithSubscribers(ctx context.Context) ([]FeedSubscribers, error) {
	type pair struct {
		FeedID int64 `db:"feed_id"`
		UserID int64 `db:"user_id"`
	}
	var pairs []pair
	if err := s.db.SelectContext(ctx, &pairs,
		"SELECT feed_id, user_id FROM subscribed_feeds"); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	byFeed := make(map[int64][]int64)
	for _, p := range pairs {
		byFeed[p.FeedID] = append(byFeed[p.FeedID], p.UserID)
	}

	type feedRow struct {
		ID       int64  `db:"id"`
		FeedLink string `db:"feed_link"`
	}
	var feeds []feedRow
	if err := s.db.SelectContext(ctx, &feeds,
		"SELECT id, feed_link FROM feeds ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	out := make([]FeedSubscribers, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, FeedSubscribers{
			FeedID:      f.ID,
			URL:         f.FeedLink,
			Subscribers: byFeed[f.ID],
		})
	}
	return out, nil
}

func (s *SQLStore) FindFeedByURL(ctx context.Context, url string) (*Feed, error) {
	var f Feed
	err := s.db.GetContext(ctx, &f,
		s.db.Rebind("SELECT id, title, description, site_link, feed_link, updated_at FROM feeds WHERE feed_link = ?"),
		url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find feed %s: %w", url, err)
	}
	return &f, nil
}

// InsertFeed persists f and fills in its generated id.
func (s *SQLStore) InsertFeed(ctx context.Context, f *Feed) error {
	id, err := s.insertReturningID(ctx,
		"INSERT INTO feeds (title, description, site_link, feed_link, updated_at) VALUES (?, ?, ?, ?, ?)",
		f.Title, f.Description, f.SiteLink, f.FeedLink, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert feed %s: %w", f.FeedLink, err)
	}
	f.ID = id
	return nil
}

func (s *SQLStore) UpdateFeedMeta(ctx context.Context, f *Feed) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE feeds SET title = ?, description = ?, site_link = ?, updated_at = ? WHERE id = ?"),
		f.Title, f.Description, f.SiteLink, f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("update feed %d: %w", f.ID, err)
	}
	return nil
}

// FindExistingByGUID returns stored (id, guid, published_at) stubs for the
// given guids, scoped to one feed so identical guids in different feeds
// never collide.
func (s *SQLStore) FindExistingByGUID(ctx context.Context, feedID int64, guids []string) ([]ItemStub, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT id, guid, published_at FROM items WHERE feed_id = ? AND guid IN (?)",
		feedID, guids)
	if err != nil {
		return nil, fmt.Errorf("build guid lookup: %w", err)
	}
	var stubs []ItemStub
	if err := s.db.SelectContext(ctx, &stubs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find existing items for feed %d: %w", feedID, err)
	}
	return stubs, nil
}

// InsertItems persists the given items and returns them with generated ids.
// Each row is its own atomic insert.
func (s *SQLStore) InsertItems(ctx context.Context, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		id, err := s.insertReturningID(ctx,
			"INSERT INTO items (feed_id, guid, link, title, summary, content, published_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			it.FeedID, it.GUID, it.Link, it.Title, it.Summary, it.Content, it.PublishedAt, it.UpdatedAt)
		if err != nil {
			return out, fmt.Errorf("insert item %s: %w", it.GUID, err)
		}
		it.ID = id
		out = append(out, it)
	}
	return out, nil
}

// UpdateItem overwrites the mutable fields of the stored row in place.
func (s *SQLStore) UpdateItem(ctx context.Context, id int64, it Item) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE items SET title = ?, link = ?, summary = ?, content = ?, published_at = ?, updated_at = ? WHERE id = ?"),
		it.Title, it.Link, it.Summary, it.Content, it.PublishedAt, it.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	return nil
}

func (s *SQLStore) ListItemIDs(ctx context.Context, feedID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		s.db.Rebind("SELECT id FROM items WHERE feed_id = ?"), feedID)
	if err != nil {
		return nil, fmt.Errorf("list item ids for feed %d: %w", feedID, err)
	}
	return ids, nil
}

func (s *SQLStore) InsertSubscription(ctx context.Context, userID, feedID int64) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO subscribed_feeds (user_id, feed_id) VALUES (?, ?)"),
		userID, feedID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subscribe user %d to feed %d: %w", userID, feedID, ErrDuplicateSubscription)
		}
		return fmt.Errorf("subscribe user %d to feed %d: %w", userID, feedID, err)
	}
	return nil
}

// InsertSubscribedItems bulk-creates visibility records. An empty batch is
// a no-op.
func (s *SQLStore) InsertSubscribedItems(ctx context.Context, recs []SubscribedItem) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx,
		"INSERT INTO subscribed_items (user_id, item_id, seen) VALUES (:user_id, :item_id, :seen)",
		recs)
	if err != nil {
		return fmt.Errorf("insert %d subscribed items: %w", len(recs), err)
	}
	return nil
}

// insertReturningID runs a single-row insert and reports the generated id.
// lib/pq has no LastInsertId, so postgres goes through RETURNING.
func (s *SQLStore) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		err := s.db.QueryRowxContext(ctx, s.db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// isUniqueViolation matches the constraint errors of both drivers. Neither
// exposes a shared sentinel.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
