package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id             INTEGER PRIMARY KEY,
    username       TEXT NOT NULL,
    password_hash  TEXT NOT NULL,
    role           TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    first_name     TEXT NOT NULL DEFAULT '',
    last_name      TEXT NOT NULL DEFAULT '',
    location       TEXT NOT NULL DEFAULT '',
    bio            TEXT NOT NULL DEFAULT '',
    avatar_url     TEXT NOT NULL DEFAULT '',
    points_balance INTEGER NOT NULL DEFAULT 0 CHECK (points_balance >= 0),
    rating_sum     INTEGER NOT NULL DEFAULT 0,
    rating_count   INTEGER NOT NULL DEFAULT 0,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at     DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id                INTEGER PRIMARY KEY,
    owner_id          INTEGER NOT NULL REFERENCES users(id),
    title             TEXT NOT NULL,
    description       TEXT NOT NULL,
    brand             TEXT,
    location          TEXT,
    category          TEXT NOT NULL CHECK (category IN ('tops', 'bottoms', 'dresses', 'outerwear', 'shoes', 'accessories')),
    size              TEXT NOT NULL CHECK (size IN ('XS', 'S', 'M', 'L', 'XL', 'XXL', 'One Size')),
    condition         TEXT NOT NULL CHECK (condition IN ('new', 'like-new', 'good', 'fair', 'poor')),
    points_value      INTEGER NOT NULL CHECK (points_value > 0),
    available         INTEGER NOT NULL DEFAULT 1 CHECK (available IN (0, 1)),
    moderation_status TEXT NOT NULL DEFAULT 'pending' CHECK (moderation_status IN ('pending', 'approved', 'rejected')),
    rejection_reason  TEXT CHECK (moderation_status = 'rejected' OR rejection_reason IS NULL),
    views             INTEGER NOT NULL DEFAULT 0 CHECK (views >= 0),
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);
CREATE INDEX IF NOT EXISTS idx_items_catalog ON items(moderation_status, available) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS item_images (
    item_id  INTEGER NOT NULL REFERENCES items(id),
    position INTEGER NOT NULL,
    url      TEXT NOT NULL,
    PRIMARY KEY (item_id, position)
);

CREATE TABLE IF NOT EXISTS item_likes (
    item_id    INTEGER NOT NULL REFERENCES items(id),
    user_id    INTEGER NOT NULL REFERENCES users(id),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (item_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_item_likes_user ON item_likes(user_id);

CREATE TABLE IF NOT EXISTS swaps (
    id                INTEGER PRIMARY KEY,
    requester_id      INTEGER NOT NULL REFERENCES users(id),
    owner_id          INTEGER NOT NULL REFERENCES users(id),
    requested_item_id INTEGER NOT NULL REFERENCES items(id),
    mode              TEXT NOT NULL CHECK (mode IN ('direct', 'points')),
    points_offered    INTEGER NOT NULL DEFAULT 0 CHECK (points_offered >= 0),
    message           TEXT,
    status            TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled', 'completed')),
    reason            TEXT,
    cancelled_by      INTEGER REFERENCES users(id),
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    accepted_at       DATETIME,
    rejected_at       DATETIME,
    cancelled_at      DATETIME,
    completed_at      DATETIME,
    CHECK (requester_id <> owner_id)
);

CREATE INDEX IF NOT EXISTS idx_swaps_requester ON swaps(requester_id);
CREATE INDEX IF NOT EXISTS idx_swaps_owner ON swaps(owner_id);

-- One row per item committed to a swap. active is cleared when the swap
-- reaches a terminal status; the partial index allows one active commitment
-- per item.
CREATE TABLE IF NOT EXISTS swap_items (
    swap_id INTEGER NOT NULL REFERENCES swaps(id),
    item_id INTEGER NOT NULL REFERENCES items(id),
    role    TEXT NOT NULL CHECK (role IN ('requested', 'offered')),
    active  INTEGER NOT NULL DEFAULT 1 CHECK (active IN (0, 1)),
    PRIMARY KEY (swap_id, item_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_swap_items_active
    ON swap_items(item_id) WHERE active = 1;

CREATE TABLE IF NOT EXISTS transfers (
    id             INTEGER PRIMARY KEY,
    swap_id        INTEGER NOT NULL REFERENCES swaps(id),
    item_id        INTEGER REFERENCES items(id),
    from_user_id   INTEGER NOT NULL REFERENCES users(id),
    to_user_id     INTEGER NOT NULL REFERENCES users(id),
    points         INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
    transferred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ratings (
    swap_id    INTEGER NOT NULL REFERENCES swaps(id),
    rater_id   INTEGER NOT NULL REFERENCES users(id),
    ratee_id   INTEGER NOT NULL REFERENCES users(id),
    score      INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (swap_id, rater_id)
);

CREATE TABLE IF NOT EXISTS images (
    key         TEXT PRIMARY KEY,
    data        BLOB NOT NULL,
    mime        TEXT NOT NULL,
    uploaded_by INTEGER REFERENCES users(id),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
