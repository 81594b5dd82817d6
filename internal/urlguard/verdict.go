package urlguard

import "encoding/json"

// Reason classifies why a URL failed validation.
type Reason string

const (
	ReasonMissingURL         Reason = "MissingUrl"
	ReasonEmptyURL           Reason = "EmptyUrl"
	ReasonInvalidCharacters  Reason = "InvalidCharacters"
	ReasonInvalidFormat      Reason = "InvalidFormat"
	ReasonURLTooLong         Reason = "UrlTooLong"
	ReasonProtocolNotAllowed Reason = "ProtocolNotAllowed"
	ReasonHostnameNotAllowed Reason = "HostnameNotAllowed"
	ReasonIPNotAllowed       Reason = "IpNotAllowed"
	ReasonResolutionFailure  Reason = "ResolutionFailure"
	ReasonTooManyRedirects   Reason = "TooManyRedirects"
	ReasonRedirectLoop       Reason = "RedirectLoop"
	ReasonValidationError    Reason = "ValidationError"
)

var reasonMessages = map[Reason]string{
	ReasonMissingURL:         "URL is missing",
	ReasonEmptyURL:           "URL is empty",
	ReasonInvalidCharacters:  "URL contains control characters",
	ReasonInvalidFormat:      "URL format is invalid",
	ReasonURLTooLong:         "URL exceeds maximum length",
	ReasonProtocolNotAllowed: "only HTTPS URLs are allowed",
	ReasonHostnameNotAllowed: "hostname is not allowed",
	ReasonIPNotAllowed:       "URL points to a private or reserved IP address",
	ReasonResolutionFailure:  "hostname could not be resolved",
	ReasonTooManyRedirects:   "too many redirects",
	ReasonRedirectLoop:       "redirect loop detected",
	ReasonValidationError:    "URL validation failed",
}

// Reasons lists every failure reason in a stable order.
func Reasons() []Reason {
	return []Reason{
		ReasonMissingURL, ReasonEmptyURL, ReasonInvalidCharacters, ReasonInvalidFormat,
		ReasonURLTooLong, ReasonProtocolNotAllowed, ReasonHostnameNotAllowed, ReasonIPNotAllowed,
		ReasonResolutionFailure, ReasonTooManyRedirects, ReasonRedirectLoop, ReasonValidationError,
	}
}

// Message returns the human-readable description of the reason.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return reasonMessages[ReasonValidationError]
}

// Verdict is the outcome of validating one URL. A valid verdict never
// carries a reason and an invalid one always carries exactly one.
type Verdict struct {
	Valid  bool
	Reason Reason
}

// Accept returns a passing verdict.
func Accept() Verdict { return Verdict{Valid: true} }

// Reject returns a failing verdict. An empty reason is coerced to
// ValidationError so a rejection is never reasonless.
func Reject(r Reason) Verdict {
	if r == "" {
		r = ReasonValidationError
	}
	return Verdict{Reason: r}
}

// Message is the human-readable failure text, or "" for valid verdicts.
func (v Verdict) Message() string {
	if v.Valid {
		return ""
	}
	return v.Reason.Message()
}

// Label is the metric/audit label for the verdict.
func (v Verdict) Label() string {
	if v.Valid {
		return "valid"
	}
	return string(v.Reason)
}

type verdictJSON struct {
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON renders {"valid":false,"reason":"IpNotAllowed","message":"..."}.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(verdictJSON{Valid: v.Valid, Reason: v.Reason, Message: v.Message()})
}

// UnmarshalJSON accepts the MarshalJSON form and re-applies the invariant.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw verdictJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Valid {
		*v = Accept()
	} else {
		*v = Reject(raw.Reason)
	}
	return nil
}
