// Package history records executed ledger operations in a local SQLite
// database so the operator can review what was run against which wallet.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("history: store is closed")

// maxOutput bounds the stored client output per entry.
const maxOutput = 64 * 1024

// Entry is one executed operation.
type Entry struct {
	ID        uuid.UUID
	Wallet    string
	Kind      string
	Argv      []string
	ExitCode  int
	Output    string
	Duration  time.Duration
	CreatedAt time.Time
}

// Store is the SQLite-backed history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and migrates it.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger.With("component", "history")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record inserts e. A zero ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s.db == nil {
		return ErrClosed
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if len(e.Output) > maxOutput {
		e.Output = e.Output[:maxOutput]
	}

	argv, err := json.Marshal(e.Argv)
	if err != nil {
		return fmt.Errorf("encode argv: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (id, wallet, kind, argv, exit_code, output, created_ns, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Wallet, e.Kind, string(argv), e.ExitCode, e.Output,
		e.CreatedAt.UnixNano(), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}

	s.logger.DebugContext(ctx, "operation recorded", "id", e.ID, "wallet", e.Wallet, "kind", e.Kind)
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, wallet, kind, argv, exit_code, output, created_ns, duration_ms
		FROM operations ORDER BY created_ns DESC LIMIT ?`, limit)
}

// ForWallet returns up to limit entries for one wallet, newest first.
func (s *Store) ForWallet(ctx context.Context, wallet string, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, wallet, kind, argv, exit_code, output, created_ns, duration_ms
		FROM operations WHERE wallet = ? ORDER BY created_ns DESC LIMIT ?`, wallet, limit)
}

// Get returns the entry with the given ID, or nil if there is none.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	entries, err := s.query(ctx, `
		SELECT id, wallet, kind, argv, exit_code, output, created_ns, duration_ms
		FROM operations WHERE id = ?`, id.String())
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                Entry
			id, argv         string
			output           sql.NullString
			createdNs, durMs int64
		)
		if err := rows.Scan(&id, &e.Wallet, &e.Kind, &argv, &e.ExitCode, &output, &createdNs, &durMs); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse operation id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(argv), &e.Argv); err != nil {
			return nil, fmt.Errorf("decode argv: %w", err)
		}
		e.Output = output.String
		e.CreatedAt = time.Unix(0, createdNs)
		e.Duration = time.Duration(durMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
