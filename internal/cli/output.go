package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/activitydb/internal/migrate"
	"github.com/roach88/activitydb/internal/regen"
	"github.com/roach88/activitydb/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation failure (unknown tables, missing parent activities, out-of-order step)
	ExitCommandError = 2 // Command error (locked database, failed migration, bad config)
)

// Error codes reported in CLI output besides the regen.ErrorCode values.
const (
	ErrCodeGeneric          = "ERROR"
	ErrCodeConfig           = "CONFIG_ERROR"
	ErrCodeDatabaseLocked   = "DATABASE_LOCKED"
	ErrCodeUnknownMigration = "UNKNOWN_MIGRATION"
	ErrCodeOutOfOrder       = "OUT_OF_ORDER"
	ErrCodeHistoryMismatch  = "HISTORY_MISMATCH"
	ErrCodeMigrationFailed  = "MIGRATION_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the command already wrote the error to its output.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitCommandError if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// IsReported reports whether err was already written to the command output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "MISSING_PARENTS", "DATABASE_LOCKED", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %+v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// validationDetails is the JSON detail payload of a regen.ValidationError.
type validationDetails struct {
	Tables     []string `json:"tables,omitempty"`
	MissingIDs []int64  `json:"missing_ids,omitempty"`
	Remedies   []string `json:"remedies,omitempty"`
}

// classify maps an error to its output code and exit code.
func classify(err error) (code string, exit int, details any) {
	var ve *regen.ValidationError
	var he *migrate.HistoryError
	switch {
	case errors.As(err, &ve):
		return string(ve.Code), ExitFailure, validationDetails{
			Tables:     ve.Tables,
			MissingIDs: ve.MissingIDs,
			Remedies:   ve.Remedies,
		}
	case errors.Is(err, migrate.ErrUnknownMigration):
		return ErrCodeUnknownMigration, ExitFailure, nil
	case errors.Is(err, migrate.ErrOutOfOrder):
		return ErrCodeOutOfOrder, ExitFailure, nil
	case errors.As(err, &he):
		return ErrCodeHistoryMismatch, ExitCommandError, nil
	case store.IsContention(err):
		return ErrCodeDatabaseLocked, ExitCommandError, nil
	default:
		return ErrCodeGeneric, ExitCommandError, nil
	}
}

// report writes err through the formatter and returns the matching ExitError.
// fallback replaces ErrCodeGeneric for errors no other code describes.
func report(f *OutputFormatter, fallback string, err error) error {
	code, exit, details := classify(err)
	if code == ErrCodeGeneric && fallback != "" {
		code = fallback
	}

	message := err.Error()
	if code == ErrCodeDatabaseLocked {
		message += "; another process is writing to the database, retry when it has finished"
	}

	_ = f.Error(code, message, details)
	exitErr := WrapExitError(exit, code, err)
	exitErr.Reported = true
	return exitErr
}
