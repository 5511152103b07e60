package cache

import (
	"database/sql"
	"errors"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		data BLOB,
		headers BLOB,
		etag TEXT,
		last_modified TEXT,
		server_date INTEGER,
		ttl INTEGER,
		soft_ttl INTEGER,
		received_at INTEGER
	)`

// SQLiteCache is a Store persisted in a SQLite database file.
type SQLiteCache struct {
	filename   string
	db         *sql.DB
	writeMutex sync.Mutex
	once       sync.Once
	initErr    error
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
// The database is opened and migrated by Initialize.
func NewSQLiteCache(filename string) *SQLiteCache {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	return &SQLiteCache{filename: filename}
}

func (s *SQLiteCache) Initialize() error {
	s.once.Do(func() {
		s.initErr = s.open()
	})
	return s.initErr
}

func (s *SQLiteCache) open() error {
	db, err := sql.Open("sqlite", s.filename)
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		sqliteSchema,
		"CREATE INDEX IF NOT EXISTS ttl_idx ON cache (ttl)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return err
		}
	}
	s.db = db
	return nil
}

func (s *SQLiteCache) ready() error {
	return s.Initialize()
}

func (s *SQLiteCache) Get(key string) (*Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var entry Entry
	var headers []byte
	var serverDate, ttl, softTTL, receivedAt int64
	err := s.db.QueryRow(`SELECT
		key, data, headers, etag, last_modified, server_date, ttl, soft_ttl, received_at
		FROM cache WHERE key = ?`, key).Scan(
		&entry.Key, &entry.Data, &headers, &entry.ETag, &entry.LastModified,
		&serverDate, &ttl, &softTTL, &receivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteCache) Put(key string, entry Entry) error {
	if err := s.ready(); err != nil {
		return err
	}
	headers, err := encodeHeaders(entry.Headers)
	if err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.Exec(`INSERT OR REPLACE INTO cache
		(key, data, headers, etag, last_modified, server_date, ttl, soft_ttl, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, entry.Data, headers, entry.ETag, entry.LastModified,
		toMillis(entry.ServerDate), toMillis(entry.TTL), toMillis(entry.SoftTTL), toMillis(entry.ReceivedAt))
	return err
}

func (s *SQLiteCache) Remove(key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

func (s *SQLiteCache) Clear() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache")
	return err
}

func (s *SQLiteCache) Keys(prefix string, cb func(string)) error {
	if err := s.ready(); err != nil {
		return err
	}
	rows, err := s.db.Query(`SELECT key FROM cache WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(prefix))
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

// Close releases the database handle.
func (s *SQLiteCache) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
