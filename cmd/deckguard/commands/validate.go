package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/deckguard/deckguard/internal/preflight"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <url>...",
		Short: "Validate image URLs",
		Example: `  deckguard validate https://cdn.example.com/logo.png
  deckguard validate --json https://a.example/x.png https://b.example/y.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, "error")

			factory := newGuardFactory(nil, logger)
			defer factory.Close() //nolint:errcheck // best-effort cleanup

			checker := preflight.NewChecker(factory.build(cfg), preflight.Options{Source: "cli", Logger: logger})
			results := checker.Validate(context.Background(), args)

			out := cmd.OutOrStdout()
			rejected := 0
			if asJSON {
				list := make([]jsonResult, len(results))
				for i, r := range results {
					list[i] = toJSONResult(r.URL, r.Verdict, r.Hops)
					if !r.Verdict.Valid {
						rejected++
					}
				}
				if err := printJSON(out, list); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					printVerdict(out, r.URL, r.Verdict, r.Hops)
					if !r.Verdict.Valid {
						rejected++
					}
				}
			}

			if rejected > 0 {
				return fmt.Errorf("%d of %d URLs rejected", rejected, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}
