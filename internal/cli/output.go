package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pensionledger/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected transaction or failed audit
	ExitCommandError = 2 // Command error (bad flags, database unreadable, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the failure was already written to the
	// command's output, so callers need not print it again.
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

// reportedExit wraps err as an ExitError whose details the command has
// already written.
func reportedExit(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err, Reported: true}
}

// IsReported reports whether err is an ExitError already written to the
// command's output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitCommandError if the error is not an
// ExitError (cobra flag and argument errors).
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // ir error code: "NotFound", "InvalidAmount", ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	return f.Result(data, func(w io.Writer) {
		fmt.Fprintln(w, data)
	})
}

// Result outputs data as a JSON envelope, or calls text to render it for
// humans.
func (f *OutputFormatter) Result(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	text(f.Writer)
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
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
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

// Text renderers.

func writeRecords(w io.Writer, records []ir.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECIPIENT\tAMOUNT\tSTATUS\tLAST UPDATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.RecipientName, r.Amount, r.Status, ir.FormatTimestamp(r.LastUpdated))
	}
	tw.Flush()
}

func writeRecord(w io.Writer, r ir.Record) {
	fmt.Fprintf(w, "ID:           %s\n", r.ID)
	fmt.Fprintf(w, "Recipient:    %s\n", r.RecipientName)
	fmt.Fprintf(w, "Amount:       %s\n", r.Amount)
	fmt.Fprintf(w, "Status:       %s\n", r.Status)
	fmt.Fprintf(w, "Last updated: %s\n", ir.FormatTimestamp(r.LastUpdated))
}

func writeHistory(w io.Writer, entries []ir.HistoryEntry) {
	for i, e := range entries {
		fmt.Fprintf(w, "[%d] %s  %s\n", i, ir.FormatTimestamp(e.Timestamp), e.TxID)
		if e.IsDelete {
			fmt.Fprintln(w, "    DELETE")
		} else if e.Value != nil {
			fmt.Fprintf(w, "    %s  %s  %s\n", e.Value.RecipientName, e.Value.Amount, e.Value.Status)
		}
		fmt.Fprintf(w, "    chain: %s\n", e.ChainHash)
	}
}

func writeAudit(w io.Writer, r ir.AuditResult) {
	status := "VALID"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "%s: %s (%d entries)\n", r.ID, status, len(r.Entries))
	fmt.Fprintf(w, "  head: %s\n", r.FinalChainHash)
	if d := r.Divergence; d != nil {
		fmt.Fprintf(w, "  divergence at entry %d (tx %s): %s\n", d.Index, d.TxID, d.Field)
		fmt.Fprintf(w, "    expected: %s\n", d.Expected)
		fmt.Fprintf(w, "    actual:   %s\n", d.Actual)
	}
}
