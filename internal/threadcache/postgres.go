package threadcache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the KV store uses. Narrow so tests can
// substitute pgxmock.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresKV implements KV on pgx, for deployments where the thread cache
// is shared across processes. Update takes a row lock so two queries on the
// same conversation serialize their merges.
type PostgresKV struct {
	pool Pool
	now  func() time.Time
}

// NewPostgres creates a PostgresKV with a connection pool and runs the
// schema migration.
func NewPostgres(ctx context.Context, connString string) (*PostgresKV, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "threadcache: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "threadcache: ping")
	}

	kv := &PostgresKV{pool: pool, now: time.Now}
	if err := kv.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return kv, nil
}

// NewPostgresWithPool wraps an existing pool, for tests.
func NewPostgresWithPool(pool Pool) *PostgresKV {
	return &PostgresKV{pool: pool, now: time.Now}
}

func (p *PostgresKV) migrate(ctx context.Context) error {
	const migration = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv(expires_at);
`
	_, err := p.pool.Exec(ctx, migration)
	return eris.Wrap(err, "threadcache: migrate postgres")
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT value, expires_at FROM kv WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "threadcache: postgres get")
	}
	if expiresAt != nil && p.now().After(*expiresAt) {
		return nil, nil
	}
	return value, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, p.expiry(ttl),
	)
	return eris.Wrap(err, "threadcache: postgres set")
}

func (p *PostgresKV) Del(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key)
	return eris.Wrap(err, "threadcache: postgres del")
}

func (p *PostgresKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE kv SET expires_at = $1 WHERE key = $2`, p.expiry(ttl), key,
	)
	return eris.Wrap(err, "threadcache: postgres expire")
}

// Update locks the row with SELECT ... FOR UPDATE for the duration of the
// read-modify-write. A bare FOR UPDATE locks nothing when the row does not
// exist yet, so the first write for a key is preceded by an empty
// placeholder insert; concurrent first updates then serialize on the
// primary key instead of overwriting each other.
func (p *PostgresKV) Update(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "threadcache: postgres begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`,
		key, []byte{}, p.expiry(ttl),
	); err != nil {
		return eris.Wrap(err, "threadcache: postgres update lock")
	}

	var old []byte
	var expiresAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT value, expires_at FROM kv WHERE key = $1 FOR UPDATE`, key,
	).Scan(&old, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		old = nil
	} else if err != nil {
		return eris.Wrap(err, "threadcache: postgres update read")
	} else if expiresAt != nil && p.now().After(*expiresAt) {
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

	if _, err := tx.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, next, p.expiry(ttl),
	); err != nil {
		return eris.Wrap(err, "threadcache: postgres update write")
	}

	return eris.Wrap(tx.Commit(ctx), "threadcache: postgres commit")
}

func (p *PostgresKV) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresKV) expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := p.now().Add(ttl).UTC()
	return &t
}
