package web

// errors.go turns handler errors into JSON responses. The technical error is
// logged with the request id; the client gets the mapped user message and
// its support code.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/assetinventory/internal/files"
	"github.com/JonMunkholm/assetinventory/internal/importer"
	"github.com/JonMunkholm/assetinventory/internal/inventory"
	"github.com/JonMunkholm/assetinventory/internal/logging"
	"github.com/JonMunkholm/assetinventory/internal/store"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var (
		parseErr *importer.ParseError
		cycleErr *inventory.CycleError
	)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, importer.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrHasChildren), errors.Is(err, inventory.ErrInvalidState),
		errors.Is(err, importer.ErrRunInProgress), errors.As(err, &cycleErr):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrValidation), errors.Is(err, inventory.ErrConfirmation), errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrFileTooLarge), errors.Is(err, files.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrTooManyImports), errors.Is(err, files.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message. A zero status
// is derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := importer.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable && errors.Is(err, importer.ErrTooManyImports) {
		w.Header().Set("Retry-After", "30")
	}
	respondErrorJSON(w, msg, status)
}

func respondErrorJSON(w http.ResponseWriter, msg importer.UserMessage, status int) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v with status. Encoding errors are logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a JSON request body into v. An empty body leaves v
// unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", inventory.ErrValidation, err)
	}
	return nil
}
