package core

// error_messages.go maps technical errors to user-facing messages with
// support codes.
//
// Codes by category:
//
//	FILE001-FILE006  uploaded file problems (size, format, empty, unreadable)
//	MAP001-MAP003    mapping edits (unknown target, transform or column)
//	VAL001-VAL004    validation gating and row selection
//	IMP001-IMP007    import sessions and commit runs
//	DB001-DB006      record store failures
//	REQ001, RATE001  malformed or throttled HTTP requests
//	ERR000           fallback; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller chunks", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Check the delimiter and quoting of the file", "FILE002"}},
	{"open workbook", UserMessage{"Spreadsheet could not be read", "Save the workbook as .xlsx and upload it again", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV or Excel file to upload", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file has no header or data rows", "Upload a file with a header row and at least one item", "FILE005"}},
	{"unsupported file format", UserMessage{"This file type is not supported", "Upload a .csv, .xlsx or .xls file", "FILE006"}},

	// Mapping
	{"unknown target field", UserMessage{"The selected target field does not exist", "Pick a field from the article schema", "MAP001"}},
	{"unknown transform", UserMessage{"The selected transform is not supported", "Use none, uppercase, lowercase, number, boolean or date", "MAP002"}},
	{"unknown source column", UserMessage{"The column is not present in the uploaded file", "Pick a column from the file headers", "MAP003"}},

	// Validation and selection
	{"unresolved validation errors", UserMessage{"Some rows still have validation errors", "Fix the rows, import only valid rows, or enable skipping duplicates", "VAL001"}},
	{"no rows selected", UserMessage{"No rows were selected for import", "Select at least one row", "VAL002"}},
	{"out of range", UserMessage{"A selected row does not exist", "Refresh the preview and select rows again", "VAL003"}},
	{"invalid selection", UserMessage{"The row selection is not valid", "Choose all, valid or selected rows", "VAL004"}},
	{"invalid preview filter", UserMessage{"The preview filter is not valid", "Use all, valid, errors, warnings or duplicates", "VAL004"}},

	// Import sessions
	{"import cancelled", UserMessage{"Import was cancelled", "Rows processed before cancelling were kept", "IMP001"}},
	{"too many imports", UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP002"}},
	{"import session not found", UserMessage{"Import session not found", "The session may have expired. Please upload the file again", "IMP003"}},
	{"import already running", UserMessage{"An import is already running for this file", "Wait for it to finish or cancel it", "IMP004"}},
	{"default branch is required", UserMessage{"No default branch selected", "Choose the branch the articles belong to", "IMP005"}},
	{"unknown branch", UserMessage{"The selected branch does not exist", "Choose a branch from the list", "IMP006"}},
	{"no commit result", UserMessage{"This import has not been committed yet", "Start the import first", "IMP007"}},

	// Record store
	{"duplicate key", UserMessage{"An article with this name already exists", "Enable skipping duplicates or updating existing articles", "DB001"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate names", "DB001"}},
	{"record not found", UserMessage{"The article to update no longer exists", "Reload existing articles and try again", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB003"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB004"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB005"}},
	{"context deadline exceeded", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP001"}},

	// Requests
	{"invalid request", UserMessage{"The request could not be understood", "Check the request body and parameters", "REQ001"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
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

// UserError pairs a technical error with its user-facing message.
// Error returns the user message; Unwrap returns the technical error for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
