package commands

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"

	"github.com/deckguard/deckguard/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "deckguard",
		Short: "Image URL guard for slide deck export",
		Long: "deckguard vets the external images of Markdown slide decks before export. " +
			"Only HTTPS URLs that resolve to public addresses, across every redirect, are fetched.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "deckguard.yaml", "config file path")

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newValidateCmd(),
		newLogsCmd(),
		newVerifyCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads --config, falling back to defaults when the file does
// not exist. A file that exists but does not parse is an error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Defaults(), nil
	}
	return cfg, err
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
