package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/deckguard/deckguard/internal/urlguard"
	"github.com/fatih/color"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failMark = color.New(color.FgRed, color.Bold).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
)

// printVerdict writes one line per URL, followed by the redirect hops that
// were walked.
func printVerdict(w io.Writer, url string, v urlguard.Verdict, hops []urlguard.Hop) {
	if v.Valid {
		fmt.Fprintf(w, "  %s %s\n", okMark("✓"), url)
	} else {
		fmt.Fprintf(w, "  %s %s\n      %s: %s\n", failMark("✗"), url, v.Reason, v.Message())
	}
	for _, h := range hops {
		if h.Target != "" {
			fmt.Fprintf(w, "      %s\n", dim(fmt.Sprintf("hop %d → %s", h.Index, h.Target)))
		}
	}
}

type jsonResult struct {
	URL     string         `json:"url"`
	Valid   bool           `json:"valid"`
	Reason  string         `json:"reason,omitempty"`
	Message string         `json:"message,omitempty"`
	Hops    []urlguard.Hop `json:"hops,omitempty"`
}

func toJSONResult(url string, v urlguard.Verdict, hops []urlguard.Hop) jsonResult {
	return jsonResult{URL: url, Valid: v.Valid, Reason: string(v.Reason), Message: v.Message(), Hops: hops}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
