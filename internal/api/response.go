package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes caps request bodies. Policy updates are small.
const maxBodyBytes = 64 << 10

// Response is the envelope for every JSON body.
type Response struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("api: encoding response", "error", err)
	}
}

func JSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

// JSONWithMessage sends data and a human-readable message together.
func JSONWithMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Data: data, Message: message})
}

// JSONErrorCode sends an error with its code and optional detail data.
func JSONErrorCode(w http.ResponseWriter, status int, code, message string, data any) {
	writeJSON(w, status, Response{Error: message, Code: code, Data: data})
}

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected with a MALFORMED_BODY error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return NewCodedError(http.StatusBadRequest, CodeMalformedBody, fmt.Sprintf("malformed request body: %v", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return NewCodedError(http.StatusBadRequest, CodeMalformedBody, "request body must contain a single JSON object")
	}
	return nil
}
