// SPDX-License-Identifier: MIT

// Package journal stores every classified scan outcome in SQLite so an
// operator can review what was scanned at the gate.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/cache"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/metrics"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/persistence/sqlite"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS scan_journal (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	operation   TEXT NOT NULL,
	token       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	purchaser   TEXT NOT NULL DEFAULT '',
	fallback    INTEGER NOT NULL DEFAULT 0,
	at_ms       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_journal_at ON scan_journal(at_ms);
CREATE INDEX IF NOT EXISTS idx_scan_journal_token ON scan_journal(token);
`

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("journal: store closed")

// Entry is one journaled outcome.
type Entry struct {
	ID        string
	SessionID string
	RequestID string
	Operation scan.OperationKind
	Token     string
	State     scan.State
	Message   string
	Title     string
	Purchaser string
	Fallback  bool
	At        time.Time
}

// NewEntry builds an entry for outcome o with a fresh ID. At is left zero
// and filled by Record.
func NewEntry(sessionID string, kind scan.OperationKind, token string, o scan.Outcome) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Operation: kind,
		Token:     token,
		State:     o.State,
		Message:   o.Message,
		Fallback:  o.Fallback,
	}
	if o.Ticket != nil {
		e.Title = o.Ticket.Title
		e.Purchaser = o.Ticket.Purchaser
		if e.Token == "" {
			e.Token = o.Ticket.Token
		}
	}
	return e
}

// Stats counts outcomes over a trailing window.
type Stats struct {
	Since     time.Time      `json:"since"`
	Window    string         `json:"window"`
	Total     int            `json:"total"`
	Outcomes  map[string]int `json:"outcomes"`
	Fallbacks int            `json:"fallbacks"`
}

// Options configures a Store.
type Options struct {
	// Cache holds computed Stats. Defaults to no caching.
	Cache    cache.Cache
	StatsTTL time.Duration
	// Retention bounds how long entries are kept by Prune. Zero keeps
	// everything.
	Retention time.Duration
	Now       func() time.Time
}

// Store is the SQLite-backed journal. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	path      string
	cache     cache.Cache
	statsTTL  time.Duration
	retention time.Duration
	now       func() time.Time
}

// Open opens (creating if needed) the journal at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, schemaVersion, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration failed: %w", err)
	}

	if opts.Cache == nil {
		opts.Cache = cache.NewNoOpCache()
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		db:        db,
		path:      path,
		cache:     opts.Cache,
		statsTTL:  opts.StatsTTL,
		retention: opts.Retention,
		now:       opts.Now,
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Record stores e. A zero At is set to the current time and an empty ID to
// a new UUID.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO scan_journal (id, session_id, request_id, operation, token, outcome, message, title, purchaser, fallback, at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.RequestID, string(e.Operation), e.Token, e.State.String(),
		e.Message, e.Title, e.Purchaser, e.Fallback, e.At.UnixMilli(),
	)
	if err != nil {
		metrics.IncJournalWriteError()
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Filter narrows Recent and Export.
type Filter struct {
	Since time.Time
	Token string
	State *scan.State
	Limit int
}

// Recent returns entries newest first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "at_ms >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if tok := strings.TrimSpace(f.Token); tok != "" {
		where = append(where, "token = ?")
		args = append(args, tok)
	}
	if f.State != nil {
		where = append(where, "outcome = ?")
		args = append(args, f.State.String())
	}

	query := `SELECT id, session_id, request_id, operation, token, outcome, message, title, purchaser, fallback, at_ms FROM scan_journal`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at_ms DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			operation string
			outcome   string
			atMS      int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.RequestID, &operation, &e.Token, &outcome,
			&e.Message, &e.Title, &e.Purchaser, &e.Fallback, &atMS); err != nil {
			return nil, fmt.Errorf("journal: scan row: %w", err)
		}
		e.Operation = scan.OperationKind(operation)
		e.State = scan.ParseState(outcome)
		e.At = time.UnixMilli(atMS)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts outcomes over the trailing window. Results are served from
// the configured cache for StatsTTL.
func (s *Store) Stats(ctx context.Context, window time.Duration) (Stats, error) {
	key := "journal:stats:" + window.String()
	if v, ok := s.cache.Get(key); ok {
		if raw, ok := v.([]byte); ok {
			var st Stats
			if err := json.Unmarshal(raw, &st); err == nil {
				metrics.IncStatsCache(true)
				return st, nil
			}
		}
	}
	metrics.IncStatsCache(false)

	since := s.now().Add(-window)
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*), SUM(fallback) FROM scan_journal WHERE at_ms >= ? GROUP BY outcome`,
		since.UnixMilli(),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("journal: stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	st := Stats{
		Since:    since.UTC(),
		Window:   window.String(),
		Outcomes: map[string]int{},
	}
	for _, state := range []scan.State{scan.StateInvalid, scan.StateReady, scan.StateValidated, scan.StateAlreadyValidated} {
		st.Outcomes[state.String()] = 0
	}
	for rows.Next() {
		var (
			outcome   string
			count     int
			fallbacks int
		)
		if err := rows.Scan(&outcome, &count, &fallbacks); err != nil {
			return Stats{}, fmt.Errorf("journal: stats row: %w", err)
		}
		st.Outcomes[outcome] += count
		st.Total += count
		st.Fallbacks += fallbacks
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if raw, err := json.Marshal(st); err == nil {
		s.cache.Set(key, raw, s.statsTTL)
	}
	return st, nil
}

// Prune deletes entries older than the retention period and returns how
// many were removed. It is a no-op without retention.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_journal WHERE at_ms < ?`, s.now().Add(-s.retention).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database. The cache is owned by the caller.
func (s *Store) Close() error {
	return s.db.Close()
}
