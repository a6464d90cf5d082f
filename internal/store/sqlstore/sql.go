// Package sqlstore implements store.Store on a SQL database.
// Supported dialects: postgres, mysql, sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/store"
)

const DefaultTable = "ratelimit_counters"

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Store keeps one row per key. expires_at is unix milliseconds, 0 for no expiry.
//
// Update makes sure the row exists (insert-or-ignore of an expired placeholder),
// then reads it with SELECT ... FOR UPDATE inside a transaction. The row lock
// serializes concurrent Updates of the same key on postgres and mysql. sqlite
// has no row locks; the store limits the pool to one connection so that
// transactions run one at a time.
type Store struct {
	db      *sql.DB
	dialect string
	table   string
	now     func() time.Time
}

type Option func(*Store)

func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithClock replaces the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// DialectForDriver maps a database/sql driver name to a dialect.
func DialectForDriver(driver string) (string, error) {
	switch driver {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported sql driver: %s (supported: postgres, mysql, sqlite3)", driver)
}

// New creates the counter table if needed.
func New(ctx context.Context, db *sql.DB, dialect string, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case DialectPostgres, DialectMySQL:
	case DialectSQLite:
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		table:   DefaultTable,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	payloadType := "BLOB"
	if s.dialect == DialectPostgres {
		payloadType = "BYTEA"
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    counter_key VARCHAR(512) NOT NULL PRIMARY KEY,
    payload %s,
    expires_at BIGINT NOT NULL DEFAULT 0
)`, s.table, payloadType)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s table: %w", s.table, err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *Store) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := s.rebind(fmt.Sprintf(
		`SELECT payload FROM %s WHERE counter_key = ? AND (expires_at = 0 OR expires_at > ?)`, s.table))

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, key, s.nowMillis()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	return payload, true, nil
}

func (s *Store) upsertQuery() string {
	switch s.dialect {
	case DialectPostgres:
		return fmt.Sprintf(`INSERT INTO %s (counter_key, payload, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (counter_key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`, s.table)
	case DialectMySQL:
		return fmt.Sprintf(`INSERT INTO %s (counter_key, payload, expires_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), expires_at = VALUES(expires_at)`, s.table)
	default:
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (counter_key, payload, expires_at) VALUES (?, ?, ?)`, s.table)
	}
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), key, value, s.deadline(ttl)); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	query := s.rebind(fmt.Sprintf(
		`DELETE FROM %s WHERE counter_key IN (%s) AND (expires_at = 0 OR expires_at > ?)`, s.table, placeholders))

	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, k)
	}
	args = append(args, s.nowMillis())

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, unavailable("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("delete", err)
	}
	return n, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := s.Get(ctx, key)
	return found, err
}

// Keys translates the glob to LIKE: * becomes %, ? becomes _. LIKE ignores case
// on sqlite and most mysql collations, so rows are matched again in Go.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	query := s.rebind(fmt.Sprintf(
		`SELECT counter_key FROM %s WHERE counter_key LIKE ? ESCAPE '!' AND (expires_at = 0 OR expires_at > ?) ORDER BY counter_key`, s.table))

	rows, err := s.db.QueryContext(ctx, query, globToLike(pattern), s.nowMillis())
	if err != nil {
		return nil, unavailable("keys", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, unavailable("keys", err)
		}
		if store.MatchPattern(pattern, k) {
			keys = append(keys, k)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("keys", err)
	}
	return keys, nil
}

func (s *Store) ensureRowQuery() string {
	switch s.dialect {
	case DialectPostgres:
		return fmt.Sprintf(`INSERT INTO %s (counter_key, payload, expires_at) VALUES ($1, NULL, 1) ON CONFLICT (counter_key) DO NOTHING`, s.table)
	case DialectMySQL:
		return fmt.Sprintf(`INSERT IGNORE INTO %s (counter_key, payload, expires_at) VALUES (?, NULL, 1)`, s.table)
	default:
		return fmt.Sprintf(`INSERT OR IGNORE INTO %s (counter_key, payload, expires_at) VALUES (?, NULL, 1)`, s.table)
	}
}

func (s *Store) Update(ctx context.Context, key string, fn store.UpdateFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.ensureRowQuery(), key); err != nil {
		return unavailable("update", err)
	}

	lock := ""
	if s.dialect != DialectSQLite {
		lock = " FOR UPDATE"
	}
	query := s.rebind(fmt.Sprintf(`SELECT payload, expires_at FROM %s WHERE counter_key = ?%s`, s.table, lock))

	var payload []byte
	var expiresAt int64
	if err = tx.QueryRowContext(ctx, query, key).Scan(&payload, &expiresAt); err != nil {
		return unavailable("update", err)
	}

	found := expiresAt == 0 || expiresAt > s.nowMillis()
	if !found {
		payload = nil
	}

	next, ttl, write, err := fn(payload, found)
	if err != nil {
		return err
	}

	if write {
		update := s.rebind(fmt.Sprintf(`UPDATE %s SET payload = ?, expires_at = ? WHERE counter_key = ?`, s.table))
		if _, err = tx.ExecContext(ctx, update, next, s.deadline(ttl), key); err != nil {
			return unavailable("update", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// DeleteExpired removes rows past their deadline, placeholders included.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE expires_at > 0 AND expires_at <= ?`, s.table))

	res, err := s.db.ExecContext(ctx, query, s.nowMillis())
	if err != nil {
		return 0, unavailable("delete expired", err)
	}
	return res.RowsAffected()
}

// Close does not close the database handle, which may be shared.
func (s *Store) Close() error {
	return nil
}

func (s *Store) Dialect() string {
	return s.dialect
}

func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		case '%', '_', '!':
			b.WriteRune('!')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("sql %s: %w: %w", op, store.ErrStoreUnavailable, err)
}
