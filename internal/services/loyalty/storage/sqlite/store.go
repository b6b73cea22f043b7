// Package sqlite provides SQLite-backed loyalty persistence.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/selo-app/selo/internal/platform/storage/sqlitemigrate"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
	"github.com/selo-app/selo/internal/services/loyalty/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed loyalty persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a loyalty SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	// modernc.org/sqlite takes pragmas via _pragma=name(value). Immediate
	// transactions grab the write lock up front so concurrent writers queue
	// on busy_timeout instead of failing with SQLITE_BUSY at commit.
	dsn := cleanPath + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// millis converts a time to the unix millisecond representation rows store.
func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := millis(*t)
	return &ms
}

func timeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timePtrFromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := timeFromMillis(*ms)
	return &t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

var _ storage.Store = (*Store)(nil)
