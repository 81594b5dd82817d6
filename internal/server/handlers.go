package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/deckguard/deckguard/internal/urlguard"
)

// maxBatch bounds the URLs accepted by one /v1/validate call.
const maxBatch = 100

type validateRequest struct {
	URLs []any `json:"urls"`
}

// URLResult is one entry of a validate or preflight response.
type URLResult struct {
	URL     string         `json:"url"`
	Valid   bool           `json:"valid"`
	Reason  string         `json:"reason,omitempty"`
	Message string         `json:"message,omitempty"`
	Hops    []urlguard.Hop `json:"hops,omitempty"`
}

type validateResponse struct {
	Results []URLResult `json:"results"`
}

type preflightRequest struct {
	Markdown string `json:"markdown"`
}

type preflightResponse struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	Images []URLResult `json:"images"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URLs == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "urls is required"})
		return
	}
	if len(req.URLs) > maxBatch {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "too many urls (max 100)"})
		return
	}

	results := s.checker.Load().ValidateValues(r.Context(), req.URLs)
	resp := validateResponse{Results: make([]URLResult, len(results))}
	for i, res := range results {
		resp.Results[i] = toURLResult(res.URL, res.Verdict, res.Hops)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	var req preflightRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := s.checker.Load().Check(r.Context(), []byte(req.Markdown))
	resp := preflightResponse{OK: res.OK, Images: make([]URLResult, len(res.Images))}
	for i, img := range res.Images {
		resp.Images[i] = toURLResult(img.URL, img.Verdict, img.Hops)
	}
	status := http.StatusOK
	if !res.OK {
		resp.Error = res.Err.Error()
		status = http.StatusUnprocessableEntity
		s.logger.Info("preflight rejected deck",
			"request_id", RequestIDFrom(r.Context()),
			"url", res.Err.URL,
			"reason", res.Err.Reason,
		)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func toURLResult(url string, v urlguard.Verdict, hops []urlguard.Hop) URLResult {
	return URLResult{
		URL:     url,
		Valid:   v.Valid,
		Reason:  string(v.Reason),
		Message: v.Message(),
		Hops:    hops,
	}
}

// decodeJSON reads a JSON body into v, writing the error response itself
// when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log is best-effort; header already sent so we cannot change the status code.
		slog.Default().Error("writeJSON: encode failed", "error", err)
	}
}
