package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS easyfetch_cache (
	key           TEXT PRIMARY KEY,
	data          BYTEA,
	headers       JSONB,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	server_date   BIGINT NOT NULL DEFAULT 0,
	ttl           BIGINT NOT NULL DEFAULT 0,
	soft_ttl      BIGINT NOT NULL DEFAULT 0,
	received_at   BIGINT NOT NULL DEFAULT 0
)`

// PostgresCache is a Store shared between processes through Postgres.
type PostgresCache struct {
	databaseURL string
	timeout     time.Duration

	pool    *pgxpool.Pool
	once    sync.Once
	initErr error
}

// NewPostgresCache creates a store for the given database URL. The pool is
// created and the table migrated by Initialize.
func NewPostgresCache(databaseURL string) *PostgresCache {
	return &PostgresCache{databaseURL: databaseURL, timeout: 5 * time.Second}
}

// NewPostgresCacheWithPool uses an existing pool.
func NewPostgresCacheWithPool(pool *pgxpool.Pool) *PostgresCache {
	return &PostgresCache{pool: pool, timeout: 5 * time.Second}
}

func (p *PostgresCache) Initialize() error {
	p.once.Do(func() {
		p.initErr = p.open()
	})
	return p.initErr
}

func (p *PostgresCache) open() error {
	ctx, cancel := p.ctx()
	defer cancel()
	if p.pool == nil {
		config, err := pgxpool.ParseConfig(p.databaseURL)
		if err != nil {
			return fmt.Errorf("failed to parse database URL: %w", err)
		}
		config.MaxConns = 8
		config.MinConns = 1
		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		p.pool = pool
	}
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	if _, err := p.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS easyfetch_cache_ttl_idx ON easyfetch_cache (ttl)`); err != nil {
		return fmt.Errorf("failed to create cache index: %w", err)
	}
	return nil
}

func (p *PostgresCache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.timeout)
}

func (p *PostgresCache) Get(key string) (*Entry, error) {
	if err := p.Initialize(); err != nil {
		return nil, err
	}
	ctx, cancel := p.ctx()
	defer cancel()
	var entry Entry
	var headers []byte
	var serverDate, ttl, softTTL, receivedAt int64
	err := p.pool.QueryRow(ctx, `SELECT
		key, data, headers, etag, last_modified, server_date, ttl, soft_ttl, received_at
		FROM easyfetch_cache WHERE key = $1`, key).Scan(
		&entry.Key, &entry.Data, &headers, &entry.ETag, &entry.LastModified,
		&serverDate, &ttl, &softTTL, &receivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.Headers, err = decodeHeaders(headers); err != nil {
		return nil, err
	}
	entry.ServerDate = fromMillis(serverDate)
	entry.TTL = fromMillis(ttl)
	entry.SoftTTL = fromMillis(softTTL)
	entry.ReceivedAt = fromMillis(receivedAt)
	return &entry, nil
}

func (p *PostgresCache) Put(key string, entry Entry) error {
	if err := p.Initialize(); err != nil {
		return err
	}
	headers, err := encodeHeaders(entry.Headers)
	if err != nil {
		return err
	}
	ctx, cancel := p.ctx()
	defer cancel()
	_, err = p.pool.Exec(ctx, `INSERT INTO easyfetch_cache
		(key, data, headers, etag, last_modified, server_date, ttl, soft_ttl, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			headers = EXCLUDED.headers,
			etag = EXCLUDED.etag,
			last_modified = EXCLUDED.last_modified,
			server_date = EXCLUDED.server_date,
			ttl = EXCLUDED.ttl,
			soft_ttl = EXCLUDED.soft_ttl,
			received_at = EXCLUDED.received_at`,
		key, entry.Data, headers, entry.ETag, entry.LastModified,
		toMillis(entry.ServerDate), toMillis(entry.TTL), toMillis(entry.SoftTTL), toMillis(entry.ReceivedAt))
	return err
}

func (p *PostgresCache) Remove(key string) error {
	if err := p.Initialize(); err != nil {
		return err
	}
	ctx, cancel := p.ctx()
	defer cancel()
	_, err := p.pool.Exec(ctx, `DELETE FROM easyfetch_cache WHERE key = $1`, key)
	return err
}

func (p *PostgresCache) Clear() error {
	if err := p.Initialize(); err != nil {
		return err
	}
	ctx, cancel := p.ctx()
	defer cancel()
	_, err := p.pool.Exec(ctx, `DELETE FROM easyfetch_cache`)
	return err
}

func (p *PostgresCache) Keys(prefix string, cb func(string)) error {
	if err := p.Initialize(); err != nil {
		return err
	}
	ctx, cancel := p.ctx()
	defer cancel()
	rows, err := p.pool.Query(ctx,
		`SELECT key FROM easyfetch_cache WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		cb(key)
	}
	return rows.Err()
}

// Close releases the pool.
func (p *PostgresCache) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
