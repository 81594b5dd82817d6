package audit

// Entry is one recorded URL verdict.
type Entry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"` // api, preflight, mcp, cli
	URL       string `json:"url"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Hops      int    `json:"hops"`
	LatencyMs int64  `json:"latency_ms"`
}

// ReasonStat is the number of verdicts recorded for one reason. Valid
// verdicts are grouped under the reason "valid".
type ReasonStat struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Stats summarises the audit log.
type Stats struct {
	Total    int          `json:"total"`
	Valid    int          `json:"valid"`
	Rejected int          `json:"rejected"`
	Reasons  []ReasonStat `json:"reasons"`
}

// QueryOpts holds filters for audit log queries.
type QueryOpts struct {
	Reason      string
	OnlyInvalid bool
	OnlyValid   bool
	Source      string
	Since       string
	Limit       int
}
