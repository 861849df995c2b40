package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS feeds (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    title        TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    site_link    TEXT NOT NULL DEFAULT '',
    feed_link    TEXT NOT NULL UNIQUE,
    updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    feed_id      INTEGER NOT NULL REFERENCES feeds(id),
    guid         TEXT NOT NULL,
    link         TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL DEFAULT '',
    published_at DATETIME,
    updated_at   DATETIME,
    UNIQUE(feed_id, guid)
);

CREATE INDEX IF NOT EXISTS idx_items_feed ON items(feed_id);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribed_feeds (
    user_id INTEGER NOT NULL REFERENCES users(id),
    feed_id INTEGER NOT NULL REFERENCES feeds(id),
    PRIMARY KEY (user_id, feed_id)
);

CREATE TABLE IF NOT EXISTS subscribed_items (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id),
    item_id INTEGER NOT NULL REFERENCES items(id),
    seen    BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE(user_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_subscribed_items_user ON subscribed_items(user_id);
CREATE INDEX IF NOT EXISTS idx_subscribed_items_item ON subscribed_items(item_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS feeds (
    id           BIGSERIAL PRIMARY KEY,
    title        TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    site_link    TEXT NOT NULL DEFAULT '',
    feed_link    TEXT NOT NULL UNIQUE,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id           BIGSERIAL PRIMARY KEY,
    feed_id      BIGINT NOT NULL REFERENCES feeds(id),
    guid         TEXT NOT NULL,
    link         TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ,
    updated_at   TIMESTAMPTZ,
    UNIQUE(feed_id, guid)
);

CREATE INDEX IF NOT EXISTS idx_items_feed ON items(feed_id);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);

CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribed_feeds (
    user_id BIGINT NOT NULL REFERENCES users(id),
    feed_id BIGINT NOT NULL REFERENCES feeds(id),
    PRIMARY KEY (user_id, feed_id)
);

CREATE TABLE IF NOT EXISTS subscribed_items (
    id      BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    item_id BIGINT NOT NULL REFERENCES items(id),
    seen    BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE(user_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_subscribed_items_user ON subscribed_items(user_id);
CREATE INDEX IF NOT EXISTS idx_subscribed_items_item ON subscribed_items(item_id);
`
