package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/deckguard/deckguard/internal/audit"
	"github.com/deckguard/deckguard/internal/urlguard"
)

type noRedirect struct{}

func (noRedirect) Probe(context.Context, string) urlguard.ProbeResult {
	return urlguard.ProbeResult{Kind: urlguard.ProbeNoRedirect}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	benchGuard(logger)
	benchAudit(logger)
}

// benchGuard measures batch validation with resolution and probing stubbed
// out, so the numbers are the classification and chain overhead alone.
func benchGuard(logger *slog.Logger) {
	guard := urlguard.New(urlguard.Options{
		Resolver: urlguard.StaticResolver{
			"cdn.example.com": {"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"},
			"rebind.example":  {"93.184.216.34", "10.0.0.1"},
			"assets.example":  {"151.101.1.69"},
		},
		Prober: noRedirect{},
		Logger: logger,
	})

	inputs := []string{
		"https://cdn.example.com/logo.png",
		"https://assets.example/chart.svg",
		"https://rebind.example/x.png",
		"http://cdn.example.com/logo.png",
		"https://169.254.169.254/latest/meta-data/",
		"https://0x7f.1/a.png",
		"https://[::ffff:127.0.0.1]/a.png",
		"https://localhost/a.png",
	}

	fmt.Println("=== GUARD (static resolver, no-op probe) ===")
	fmt.Println()
	for _, batch := range []int{1, 10, 100} {
		urls := make([]string, batch)
		for i := range urls {
			urls[i] = inputs[i%len(inputs)]
		}
		iters := 2000 / batch
		start := time.Now()
		for range iters {
			guard.ValidateImageURLs(context.Background(), urls)
		}
		elapsed := time.Since(start)
		perURL := float64(elapsed.Microseconds()) / float64(iters*batch)
		fmt.Printf("  batch %-4d %8.1f µs/url  %8.0f urls/sec\n", batch, perURL, 1e6/perURL)
	}
	fmt.Println()
}

// benchAudit fills the verdict log at increasing scale and times the
// queries behind `deckguard logs`.
func benchAudit(logger *slog.Logger) {
	dir, _ := os.MkdirTemp("", "deckguard-bench-*")
	defer func() { _ = os.RemoveAll(dir) }()

	store, err := audit.NewStore(filepath.Join(dir, "bench.db"), logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = store.Close() }()

	reasons := []string{"", "", "", "", "IpNotAllowed", "ProtocolNotAllowed", "HostnameNotAllowed", "TooManyRedirects"}
	sources := []string{"api", "preflight", "mcp", "cli"}
	scales := []int{1000, 10000, 50000, 100000}

	fmt.Println("=== AUDIT SCALING (url_verdicts) ===")
	fmt.Println()

	written := 0
	for _, target := range scales {
		toWrite := target - written
		if toWrite <= 0 {
			continue
		}

		start := time.Now()
		for i := 0; i < toWrite; i++ {
			idx := written + i
			// 5K rows within 24h, rest older (simulates steady-state with retention)
			var ts time.Time
			if idx < 5000 {
				ts = time.Now().Add(-time.Duration(idx) * time.Second)
			} else {
				ts = time.Now().Add(-48*time.Hour - time.Duration(idx)*time.Second)
			}
			reason := reasons[idx%len(reasons)]
			store.Log(audit.Entry{
				Timestamp: ts.UTC().Format(audit.TimeFormat),
				Source:    sources[idx%len(sources)],
				URL:       fmt.Sprintf("https://cdn-%d.example.com/img-%d.png", idx%50, idx),
				Valid:     reason == "",
				Reason:    reason,
				Hops:      1 + idx%3,
				LatencyMs: int64(idx % 50),
			})
			// Stay under the write buffer so nothing is dropped.
			if i%200 == 199 {
				store.Flush()
			}
		}
		store.Flush()
		written = target
		fillTime := time.Since(start)
		insertRate := float64(toWrite) / fillTime.Seconds()

		since := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
		type benchmark struct {
			name string
			fn   func()
		}
		benchmarks := []benchmark{
			{"Recent 50", func() { _, _ = store.Query(audit.QueryOpts{Limit: 50}) }},
			{"Stats (all rows)", func() { _, _ = store.Stats() }},
			{"Rejected only", func() { _, _ = store.Query(audit.QueryOpts{OnlyInvalid: true, Limit: 50}) }},
			{"By reason", func() { _, _ = store.Query(audit.QueryOpts{Reason: "IpNotAllowed", Limit: 50}) }},
			{"Last 24h", func() { _, _ = store.Query(audit.QueryOpts{Since: since, Limit: 500}) }},
		}

		fi, _ := os.Stat(filepath.Join(dir, "bench.db"))
		wal, _ := os.Stat(filepath.Join(dir, "bench.db-wal"))
		dbMB := float64(fi.Size()) / (1024 * 1024)
		walMB := float64(0)
		if wal != nil {
			walMB = float64(wal.Size()) / (1024 * 1024)
		}

		fmt.Printf("--- %dk rows (5k in 24h) | %.0f MB | %.0f ins/sec ---\n",
			written/1000, dbMB+walMB, insertRate)

		iters := 20
		for _, b := range benchmarks {
			start := time.Now()
			for range iters {
				b.fn()
			}
			elapsed := time.Since(start)
			avgMs := float64(elapsed.Microseconds()) / float64(iters) / 1000.0
			fmt.Printf("  %-22s %7.1f ms\n", b.name, avgMs)
		}
		fmt.Println()
	}
}
