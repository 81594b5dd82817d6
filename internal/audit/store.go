package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS url_verdicts (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	source TEXT NOT NULL,
	url TEXT NOT NULL,
	valid INTEGER NOT NULL,
	reason TEXT,
	hops INTEGER,
	latency_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_verdicts_reason ON url_verdicts(reason);
CREATE INDEX IF NOT EXISTS idx_verdicts_timestamp ON url_verdicts(timestamp);
`

// TimeFormat is fixed-width so stored timestamps sort lexically.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// write is either an entry to insert or a flush marker.
type write struct {
	entry Entry
	flush chan struct{}
}

// Store manages the SQLite verdict log.
type Store struct {
	db     *sql.DB
	writes chan write
	done   chan struct{}
	logger *slog.Logger

	// mu guards closed; senders hold it for reading so Close cannot close
	// writes under them.
	mu     sync.RWMutex
	closed bool
}

// NewStore opens (or creates) the SQLite audit database.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("setting WAL mode: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("creating schema: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &Store{
		db:     db,
		writes: make(chan write, 256),
		done:   make(chan struct{}),
		logger: logger,
	}

	go s.writeLoop()
	return s, nil
}

// Log enqueues an entry for async writing. Missing IDs and timestamps are
// filled in. A full buffer drops the entry rather than blocking validation.
func (s *Store) Log(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimeFormat)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Debug("audit store closed, dropping entry", "id", entry.ID, "url", entry.URL)
		return
	}
	select {
	case s.writes <- write{entry: entry}:
	default:
		s.logger.Warn("audit write buffer full, dropping entry", "id", entry.ID, "url", entry.URL)
	}
}

// Flush blocks until every entry logged before the call is written.
func (s *Store) Flush() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	ack := make(chan struct{})
	s.writes <- write{flush: ack}
	<-ack
}

// Query returns entries matching the given filters, newest first.
func (s *Store) Query(opts QueryOpts) ([]Entry, error) {
	query := "SELECT id, timestamp, source, url, valid, reason, hops, latency_ms FROM url_verdicts WHERE 1=1"
	var args []any

	if opts.Reason != "" {
		query += " AND reason = ?"
		args = append(args, opts.Reason)
	}
	if opts.OnlyInvalid {
		query += " AND valid = 0"
	}
	if opts.OnlyValid {
		query += " AND valid = 1"
	}
	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	if opts.Since != "" {
		since, err := normalizeSince(opts.Since)
		if err != nil {
			return nil, err
		}
		query += " AND timestamp >= ?"
		args = append(args, since)
	}

	query += " ORDER BY timestamp DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	} else {
		query += " LIMIT 50"
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var reason sql.NullString
		var hops, latency sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Source, &e.URL, &e.Valid, &reason, &hops, &latency); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.Reason = reason.String
		e.Hops = int(hops.Int64)
		e.LatencyMs = latency.Int64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts verdicts overall and per reason, most frequent first.
func (s *Store) Stats() (*Stats, error) {
	rows, err := s.db.Query(`
		SELECT CASE WHEN valid = 1 THEN 'valid' ELSE reason END AS r, COUNT(*)
		FROM url_verdicts GROUP BY r ORDER BY COUNT(*) DESC, r`)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	st := &Stats{}
	for rows.Next() {
		var rs ReasonStat
		var reason sql.NullString
		if err := rows.Scan(&reason, &rs.Count); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		rs.Reason = reason.String
		st.Total += rs.Count
		if rs.Reason == "valid" {
			st.Valid += rs.Count
		} else {
			st.Rejected += rs.Count
		}
		st.Reasons = append(st.Reasons, rs)
	}
	return st, rows.Err()
}

// PurgeOlderThan deletes entries older than days and returns how many
// were removed. days <= 0 keeps everything.
func (s *Store) PurgeOlderThan(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(TimeFormat)
	res, err := s.db.Exec("DELETE FROM url_verdicts WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging audit log: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.writes)
	s.mu.Unlock()
	<-s.done
	return s.db.Close()
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for w := range s.writes {
		if w.flush != nil {
			close(w.flush)
			continue
		}
		e := w.entry
		_, err := s.db.Exec(
			`INSERT INTO url_verdicts (id, timestamp, source, url, valid, reason, hops, latency_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Timestamp, e.Source, e.URL, e.Valid, e.Reason, e.Hops, e.LatencyMs,
		)
		if err != nil {
			s.logger.Error("audit write failed", "id", e.ID, "error", err)
		}
	}
}

// normalizeSince accepts RFC 3339 or a bare date and rewrites it in
// TimeFormat so the comparison is lexical-safe.
func normalizeSince(since string) (string, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, since); err == nil {
			return t.UTC().Format(TimeFormat), nil
		}
	}
	return "", fmt.Errorf("invalid since %q: want RFC 3339 or YYYY-MM-DD", since)
}
