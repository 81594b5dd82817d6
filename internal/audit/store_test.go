package audit

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewStore(dbPath, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *Store) {
	t.Helper()
	entries := []Entry{
		{Source: "api", URL: "https://img.example.com/a.png", Valid: true, Hops: 1, LatencyMs: 12},
		{Source: "api", URL: "http://img.example.com/a.png", Reason: "ProtocolNotAllowed"},
		{Source: "preflight", URL: "https://169.254.169.254/", Reason: "IpNotAllowed"},
		{Source: "preflight", URL: "https://10.0.0.1/", Reason: "IpNotAllowed"},
		{Source: "mcp", URL: "https://cdn.example.com/b.png", Valid: true, Hops: 2},
	}
	for _, e := range entries {
		store.Log(e)
	}
	store.Flush()
}

func TestLogAndQuery(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	all, err := store.Query(QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d entries, want 5", len(all))
	}
	for _, e := range all {
		if e.ID == "" || e.Timestamp == "" {
			t.Errorf("entry missing id or timestamp: %+v", e)
		}
	}

	tests := []struct {
		name string
		opts QueryOpts
		want int
	}{
		{"by reason", QueryOpts{Reason: "IpNotAllowed"}, 2},
		{"invalid only", QueryOpts{OnlyInvalid: true}, 3},
		{"valid only", QueryOpts{OnlyValid: true}, 2},
		{"by source", QueryOpts{Source: "preflight"}, 2},
		{"limit", QueryOpts{Limit: 1}, 1},
		{"since yesterday", QueryOpts{Since: time.Now().AddDate(0, 0, -1).Format("2006-01-02")}, 5},
		{"since future", QueryOpts{Since: time.Now().Add(time.Hour).Format(time.RFC3339)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestQueryFieldsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	store.Log(Entry{ID: "v1", Timestamp: "2026-01-02T03:04:05.000Z", Source: "cli",
		URL: "https://img.example.com/x.png", Valid: true, Hops: 3, LatencyMs: 42})
	store.Flush()

	got, err := store.Query(QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	want := Entry{ID: "v1", Timestamp: "2026-01-02T03:04:05.000Z", Source: "cli",
		URL: "https://img.example.com/x.png", Valid: true, Hops: 3, LatencyMs: 42}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
}

func TestQueryInvalidSince(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Query(QueryOpts{Since: "last tuesday"}); err == nil {
		t.Error("expected error for malformed since")
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	st, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 5 || st.Valid != 2 || st.Rejected != 3 {
		t.Errorf("stats = %+v, want total 5 valid 2 rejected 3", st)
	}
	counts := map[string]int{}
	for _, r := range st.Reasons {
		counts[r.Reason] = r.Count
	}
	if counts["IpNotAllowed"] != 2 || counts["valid"] != 2 || counts["ProtocolNotAllowed"] != 1 {
		t.Errorf("unexpected reason counts: %v", counts)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().UTC().AddDate(0, 0, -40).Format(TimeFormat)
	store.Log(Entry{Timestamp: old, Source: "api", URL: "https://old.example.com/", Valid: true})
	store.Log(Entry{Source: "api", URL: "https://new.example.com/", Valid: true})
	store.Flush()

	n, err := store.PurgeOlderThan(30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	left, _ := store.Query(QueryOpts{})
	if len(left) != 1 || left[0].URL != "https://new.example.com/" {
		t.Errorf("remaining entries = %+v", left)
	}

	if n, _ := store.PurgeOlderThan(0); n != 0 {
		t.Errorf("retention 0 purged %d", n)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "close.db")
	store, err := NewStore(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		store.Log(Entry{Source: "api", URL: "https://img.example.com/a.png", Valid: true})
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Query(QueryOpts{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("got %d entries after reopen, want 20", len(got))
	}
}

func TestLogAfterClose(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	// Late writers from in-flight requests must not panic on the closed queue.
	store.Log(Entry{Source: "api", URL: "https://img.example.com/a.png", Valid: true})
	store.Flush()
	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
