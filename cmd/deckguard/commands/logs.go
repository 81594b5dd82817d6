package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/deckguard/deckguard/internal/audit"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var reason, source, since string
	var invalid, valid, stats bool
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the verdict audit log",
		Example: `  deckguard logs
  deckguard logs --invalid
  deckguard logs --reason IpNotAllowed
  deckguard logs --source api --since 1h
  deckguard logs --stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, "error")

			store, err := audit.NewStore(cfg.Audit.Path, logger)
			if err != nil {
				return fmt.Errorf("opening audit db: %w", err)
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			out := cmd.OutOrStdout()
			if stats {
				st, err := store.Stats()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Total: %d  Valid: %d  Rejected: %d\n\n", st.Total, st.Valid, st.Rejected)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "REASON\tCOUNT\n") //nolint:errcheck // CLI output
				for _, r := range st.Reasons {
					fmt.Fprintf(tw, "%s\t%d\n", r.Reason, r.Count) //nolint:errcheck // CLI output
				}
				return tw.Flush()
			}

			var sinceTime string
			if since != "" {
				dur, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", since, err)
				}
				sinceTime = time.Now().Add(-dur).UTC().Format(time.RFC3339)
			}

			entries, err := store.Query(audit.QueryOpts{
				Reason:      reason,
				OnlyInvalid: invalid,
				OnlyValid:   valid,
				Source:      source,
				Since:       sinceTime,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No audit entries found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "TIME\tSOURCE\tVERDICT\tHOPS\tLATENCY\tURL\n") //nolint:errcheck // CLI output
			for _, e := range entries {
				verdict := "valid"
				if !e.Valid {
					verdict = e.Reason
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%dms\t%s\n", //nolint:errcheck // CLI output
					e.Timestamp, e.Source, verdict, e.Hops, e.LatencyMs, e.URL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "filter by rejection reason (IpNotAllowed, ProtocolNotAllowed, ...)")
	cmd.Flags().StringVar(&source, "source", "", "filter by source (api, preflight, mcp, cli)")
	cmd.Flags().BoolVar(&invalid, "invalid", false, "show only rejected URLs")
	cmd.Flags().BoolVar(&valid, "valid", false, "show only accepted URLs")
	cmd.Flags().StringVar(&since, "since", "", "show entries since duration (e.g. 1h, 30m)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	cmd.Flags().BoolVar(&stats, "stats", false, "show verdict counts per reason")
	cmd.MarkFlagsMutuallyExclusive("invalid", "valid")
	return cmd
}
