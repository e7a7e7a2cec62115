package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the command ran and the answer is no: absent object, bad memento, failed scenario
	ExitCommandError = 2 // the command could not run: bad flags, missing catalog, unreadable database
)

// ExitError is returned by commands to choose the process exit code.
type ExitError struct {
	Code     int
	Message  string // usually an E-code
	Err      error
	Reported bool // already written through an OutputFormatter
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors without an ExitError
// in their chain exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// Reported reports whether err was already written to the user, so the
// caller should only set the exit code.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// Response is the JSON envelope every command writes with --format json.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a JSON Response.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose diagnostics; Writer when nil
	Verbose   bool
}

// JSON reports whether results are written as JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Emit writes data as an "ok" Response in JSON mode and calls text
// otherwise.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer)) error {
	if f.JSON() {
		return f.Success(data)
	}
	text(f.Writer)
	return nil
}

// Success writes data as an "ok" Response, or prints it as text.
func (f *OutputFormatter) Success(data any) error {
	if !f.JSON() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
}

// Error writes an "error" Response, or an "Error [code]: message" line.
// Details are printed in text mode only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ErrorBody{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// VerboseLog prints a diagnostic line in verbose mode. It never goes to
// Writer when ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
