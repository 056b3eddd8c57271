package regen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies the kind of validation failure.
type ErrorCode string

const (
	// CodeUnknownTables means a requested table is not in the catalog.
	CodeUnknownTables ErrorCode = "UNKNOWN_TABLES"

	// CodeMissingParents means requested activities are absent from the parent table.
	CodeMissingParents ErrorCode = "MISSING_PARENTS"

	// CodeInvalidActivityID means an activity identifier is not a positive integer.
	CodeInvalidActivityID ErrorCode = "INVALID_ACTIVITY_ID"
)

// maxListedIDs caps how many missing identifiers an error message names.
const maxListedIDs = 5

// ValidationError is returned before any mutation when a regeneration
// request is malformed. It is never retried or corrected silently.
type ValidationError struct {
	Code    ErrorCode
	Message string

	// Tables holds the offending table names for CodeUnknownTables.
	Tables []string

	// MissingIDs holds every absent activity for CodeMissingParents.
	MissingIDs []int64

	// Remedies lists what the caller can do about it.
	Remedies []string
}

func (e *ValidationError) Error() string {
	switch len(e.Remedies) {
	case 0:
		return e.Message
	case 1:
		return fmt.Sprintf("%s (%s)", e.Message, e.Remedies[0])
	default:
		return fmt.Sprintf("%s. Either %s", e.Message, strings.Join(e.Remedies, ", or "))
	}
}

// IsValidationError reports whether err is a *ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func unknownTablesError(unknown, available []string) *ValidationError {
	return &ValidationError{
		Code:    CodeUnknownTables,
		Message: fmt.Sprintf("unknown table(s): %s", strings.Join(unknown, ", ")),
		Tables:  unknown,
		Remedies: []string{
			fmt.Sprintf("choose from: %s", strings.Join(available, ", ")),
		},
	}
}

func missingParentsError(parent string, missing []int64) *ValidationError {
	listed := missing
	if len(listed) > maxListedIDs {
		listed = listed[:maxListedIDs]
	}
	parts := make([]string, len(listed))
	for i, id := range listed {
		parts[i] = fmt.Sprintf("%d", id)
	}
	msg := fmt.Sprintf("%d activity ID(s) not found in %s table: %s", len(missing), parent, strings.Join(parts, ", "))
	if extra := len(missing) - len(listed); extra > 0 {
		msg += fmt.Sprintf(" (and %d more)", extra)
	}

	return &ValidationError{
		Code:       CodeMissingParents,
		Message:    msg,
		MissingIDs: missing,
		Remedies: []string{
			fmt.Sprintf("include %q in the tables to regenerate", parent),
			"regenerate those activities first",
		},
	}
}

func invalidIDsError(invalid []int64) *ValidationError {
	parts := make([]string, len(invalid))
	for i, id := range invalid {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return &ValidationError{
		Code:       CodeInvalidActivityID,
		Message:    fmt.Sprintf("activity IDs must be positive integers, got: %s", strings.Join(parts, ", ")),
		MissingIDs: invalid,
	}
}
