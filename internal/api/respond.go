package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lugondev/swapforge/internal/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Kind reported for requests rejected by the rate limiter.
const kindRateLimited = "rate_limited"

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindValidation, errors.KindUserRejected:
		return http.StatusBadRequest
	case errors.KindInsufficientFunds:
		return http.StatusForbidden
	case errors.KindNotConnected, errors.KindNotFound, errors.KindConfiguration:
		return http.StatusNotFound
	case errors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.GetLogger().Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", errors.KindOf(err),
			"error", err,
		)
	}
	writeJSON(w, status, errorBody{Error: errors.MessageOf(err), Kind: string(errors.KindOf(err))})
}

// decode reads a JSON body into v, bounded by the server's body limit.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.Validation("Request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.Validation("Request body is too large")
		}
		return errors.DecodeFailed("request body", err)
	}
	return nil
}

// flexUint accepts a JSON number or a numeric string, as HTML forms send both.
type flexUint uint64

func (u *flexUint) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unsigned integer %q", s)
	}
	*u = flexUint(n)
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Validation(fmt.Sprintf("Invalid %s", name))
	}
	return n, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Validation(fmt.Sprintf("Invalid %s", name))
	}
	return b, nil
}
