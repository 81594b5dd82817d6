package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/deckguard/deckguard/internal/audit"
	"github.com/deckguard/deckguard/internal/preflight"
	"github.com/deckguard/deckguard/internal/safefile"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var asJSON, record bool

	cmd := &cobra.Command{
		Use:   "check <deck.md>",
		Short: "Preflight the images of a Markdown deck",
		Long: `Extracts every external image of the deck and validates it, following
redirects. Exits non-zero when any image would be refused at export.
Pass "-" to read the deck from stdin.`,
		Example: `  deckguard check slides.md
  cat slides.md | deckguard check -
  deckguard check --record slides.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readDeck(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, "error")

			factory := newGuardFactory(nil, logger)
			defer factory.Close() //nolint:errcheck // best-effort cleanup

			opts := preflight.Options{Source: "cli", Logger: logger}
			if record {
				store, err := audit.NewStore(cfg.Audit.Path, logger)
				if err != nil {
					return fmt.Errorf("opening audit db: %w", err)
				}
				defer store.Close() //nolint:errcheck // best-effort cleanup
				opts.Audit = store
			}

			res := preflight.NewChecker(factory.build(cfg), opts).Check(context.Background(), src)

			out := cmd.OutOrStdout()
			if asJSON {
				images := make([]jsonResult, len(res.Images))
				for i, img := range res.Images {
					images[i] = toJSONResult(img.URL, img.Verdict, img.Hops)
				}
				report := struct {
					OK     bool         `json:"ok"`
					Error  string       `json:"error,omitempty"`
					Images []jsonResult `json:"images"`
				}{OK: res.OK, Images: images}
				if res.Err != nil {
					report.Error = res.Err.Error()
				}
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				if len(res.Images) == 0 {
					fmt.Fprintln(out, "No external images found.")
				}
				for _, img := range res.Images {
					printVerdict(out, img.URL, img.Verdict, img.Hops)
				}
			}

			if res.Err != nil {
				return res.Err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&record, "record", false, "record verdicts in the audit log")
	return cmd
}

func readDeck(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := safefile.ReadAllMax(stdin, safefile.MaxDeckBytes)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := safefile.ReadFileMax(path, safefile.MaxDeckBytes)
	if err != nil {
		return nil, fmt.Errorf("reading deck: %w", err)
	}
	return data, nil
}
