package csrf

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Machine-readable error codes returned in the JSON body of rejected
// requests. The code distinguishes missing vs mismatched tokens; the
// message distinguishes the exact cause (cookie vs header) for debugging.
const (
	CodeTokenMissing  = "CSRF_TOKEN_MISSING"
	CodeTokenInvalid  = "CSRF_TOKEN_INVALID"
	CodeTokenNotFound = "CSRF_TOKEN_NOT_FOUND"
)

var (
	ErrTokenMissing  = errors.New("csrf: token missing")
	ErrTokenInvalid  = errors.New("csrf: token mismatch")
	ErrTokenNotFound = errors.New("csrf: no token issued")
)

// ErrorResponse is the wire format of every CSRF rejection.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}
