package threadcache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteKV implements KV on modernc.org/sqlite, giving the thread cache
// durability across restarts on a single host.
type SQLiteKV struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) a SQLite KV database at dsn and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "threadcache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "threadcache: exec %s", pragma)
		}
	}

	const migration = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv(expires_at);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "threadcache: migrate sqlite")
	}

	return &SQLiteKV{db: db, now: time.Now}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "threadcache: sqlite get")
	}
	if expiresAt.Valid && s.now().After(expiresAt.Time) {
		return nil, nil
	}
	return value, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiry(ttl),
	)
	return eris.Wrap(err, "threadcache: sqlite set")
}

func (s *SQLiteKV) Del(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return eris.Wrap(err, "threadcache: sqlite del")
}

func (s *SQLiteKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE kv SET expires_at = ? WHERE key = ?`, s.expiry(ttl), key,
	)
	return eris.Wrap(err, "threadcache: sqlite expire")
}

// Update runs the read-modify-write inside a transaction so concurrent
// merges on one thread serialize instead of losing updates. SQLite
// transactions are deferred, so the transaction opens with a placeholder
// insert: the write lock is held before the read instead of being upgraded
// after it, which would let two readers race.
func (s *SQLiteKV) Update(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "threadcache: sqlite begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, []byte{}, s.expiry(ttl),
	); err != nil {
		return eris.Wrap(err, "threadcache: sqlite update lock")
	}

	var old []byte
	var expiresAt sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&old, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		old = nil
	} else if err != nil {
		return eris.Wrap(err, "threadcache: sqlite update read")
	} else if expiresAt.Valid && s.now().After(expiresAt.Time) {
		old = nil
	}
	if len(old) == 0 {
		// Placeholder or missing rows both mean no prior value.
		old = nil
	}

	next, err := fn(old)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, next, s.expiry(ttl),
	); err != nil {
		return eris.Wrap(err, "threadcache: sqlite update write")
	}

	return eris.Wrap(tx.Commit(), "threadcache: sqlite commit")
}

func (s *SQLiteKV) Close() error { return s.db.Close() }

func (s *SQLiteKV) expiry(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return s.now().Add(ttl).UTC()
}
