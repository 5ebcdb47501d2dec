// Package cache stores answers keyed by a normalized-question hash.
//
// The store is a single SQLite table. Lookups and writes are independent
// statements, so a concurrent "check, compute, insert" sequence may compute
// the same answer twice; the last write wins.
package cache

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned by Get when no entry exists for the question.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one cached answer.
type Entry struct {
	QuestionHash string
	Question     string
	Answer       string
	Sources      []string
}

// Cache is the answer cache contract used by the orchestrator.
type Cache interface {
	Get(ctx context.Context, question string) (*Entry, error)
	Put(ctx context.Context, question, answer string, sources []string) error
}

const schema = `
CREATE TABLE IF NOT EXISTS qa_cache (
	question_hash TEXT PRIMARY KEY,
	question TEXT,
	answer TEXT,
	sources TEXT
)`

// SQLiteCache implements Cache on a SQLite file.
type SQLiteCache struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens or creates the cache database at path.
func Open(path string, logger *zap.Logger) (*SQLiteCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating qa_cache table: %w", err)
	}

	logger.Debug("answer cache opened", zap.String("path", path))
	return &SQLiteCache{db: db, path: path, logger: logger}, nil
}

// Get returns the entry for question or ErrNotFound.
func (c *SQLiteCache) Get(ctx context.Context, question string) (*Entry, error) {
	key := Key(question)
	e := Entry{QuestionHash: key}
	var sources string
	row := c.db.QueryRowContext(ctx,
		"SELECT question, answer, sources FROM qa_cache WHERE question_hash = ?", key)
	if err := row.Scan(&e.Question, &e.Answer, &sources); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
		return nil, fmt.Errorf("decoding cached sources: %w", err)
	}
	if e.Sources == nil {
		e.Sources = []string{}
	}
	return &e, nil
}

// Put inserts or replaces the entry for question.
func (c *SQLiteCache) Put(ctx context.Context, question, answer string, sources []string) error {
	if sources == nil {
		sources = []string{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO qa_cache (question_hash, question, answer, sources) VALUES (?, ?, ?, ?)",
		Key(question), question, answer, string(encoded))
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (c *SQLiteCache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Key is the hex md5 of the normalized question.
func Key(question string) string {
	sum := md5.Sum([]byte(Normalize(question)))
	return hex.EncodeToString(sum[:])
}

// Normalize lowercases question, trims it and collapses whitespace runs.
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}
