package importer

// messages.go maps technical errors to user-facing messages with a support
// code. Patterns are matched case-insensitively with strings.Contains and
// the first match wins, so specific patterns come before general ones.
//
//	FILE001 file too large        FILE002 invalid csv         FILE003 empty file
//	FILE004 no data rows          FILE005 no file provided    FILE006 storage disabled
//	VAL001  required field        VAL002  invalid date        VAL003  invalid number
//	VAL004  confirmation          VAL005  invalid request
//	RUN001  import cancelled      RUN002  too many imports    RUN003  run not found
//	RUN004  invalid transition    RUN005  request cancelled   RUN006  timeout
//	RUN007  run still in progress
//	STORE001 duplicate            STORE002 not found          STORE003 children exist
//	STORE004 connection           STORE005 rate limited by store
//	STORE006 invalid asset state  STORE007 parent cycle
//	RATE001 rate limit            ERR000  fallback

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is a user-friendly error with guidance and a support code.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Files
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller files", "FILE001"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Upload a CSV file with a header and data rows", "FILE003"}},
	{"no data rows", UserMessage{"No valid data found in the CSV file", "Check the file has at least one row below the header", "FILE004"}},
	{"invalid csv", UserMessage{"The file is not a valid CSV", "Download the template and compare the format", "FILE002"}},
	{"no file provided", UserMessage{"No file was selected", "Select a CSV file to import", "FILE005"}},
	{"attachment storage is not configured", UserMessage{"File attachments are not available", "Ask an administrator to configure storage", "FILE006"}},

	// Rows
	{"is required", UserMessage{"A required field is empty", "Every row needs a name and an asset ID", "VAL001"}},
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY or Jan 15, 2024", "VAL002"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Use a plain non-negative amount such as 1200.00", "VAL003"}},
	{"confirmation text does not match", UserMessage{"Confirmation text does not match", "Type the confirmation text exactly as shown", "VAL004"}},
	{"invalid record", UserMessage{"The request is invalid", "Check the submitted fields and try again", "VAL005"}},

	// Runs
	{"import cancelled", UserMessage{"Import was cancelled", "Start a new import when ready", "RUN001"}},
	{"too many imports", UserMessage{"Too many imports in progress", "Wait a moment and try again", "RUN002"}},
	{"import run not found", UserMessage{"Import session not found", "The import may have expired. Start a new import", "RUN003"}},
	{"invalid import run transition", UserMessage{"Import steps were run out of order", "Start a new import", "RUN004"}},
	{"still in progress", UserMessage{"The import is still running", "Wait for the import to finish", "RUN007"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "RUN005"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "RUN006"}},

	// Store
	{"duplicate key", UserMessage{"A record with this ID already exists", "Remove duplicate asset IDs and retry the failed rows", "STORE001"}},
	{"record not found", UserMessage{"Record not found", "Refresh and try again", "STORE002"}},
	{"has child records", UserMessage{"This record still has children", "Move or delete the child records first", "STORE003"}},
	{"not in a valid state", UserMessage{"The asset cannot do that in its current status", "Refresh to see the current status", "STORE006"}},
	{"cycle in parent chain", UserMessage{"A record cannot be placed under its own descendant", "Choose a different parent", "STORE007"}},
	{"connection refused", UserMessage{"Unable to reach the database", "Please try again in a few moments", "STORE004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "STORE004"}},
	{"too many requests", UserMessage{"The store is throttling requests", "Retry the failed rows later", "STORE005"}},

	// Rate limiting
	{"rate limit", UserMessage{"Too many requests", "Wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a user-friendly message. Unmatched errors map to
// ERR000; nil maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: X). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err. Returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
